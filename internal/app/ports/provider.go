package ports

import (
	"context"
	"errors"
	"fmt"

	"fleetpilot/internal/domain/fleet"
)

type LaunchSpec struct {
	ImageID          string
	InstanceType     string
	KeyName          string
	SubnetID         string
	SecurityGroupIDs []string
	Tags             map[string]string
	LaunchedBy       string
}

type VolumeSpec struct {
	SizeGiB          int32
	VolumeType       string
	AvailabilityZone string
}

type ImageSpec struct {
	InstanceID   string
	InstanceName string
	Name         string
	Description  string
	NoReboot     bool
	CreatedBy    string
}

type AlarmSpec struct {
	AlarmName         string
	InstanceID        string
	MetricName        string
	Statistic         string
	Threshold         float64
	PeriodSeconds     int32
	EvaluationPeriods int32
	Description       string
	ActionARNs        []string
}

type Provider interface {
	ListInstances(ctx context.Context, state string) ([]fleet.Instance, error)
	DescribeInstance(ctx context.Context, instanceID string) (fleet.Instance, error)
	LaunchInstance(ctx context.Context, spec LaunchSpec) (fleet.Instance, error)
	StartInstance(ctx context.Context, instanceID string) (fleet.StateChange, error)
	StopInstance(ctx context.Context, instanceID string) (fleet.StateChange, error)
	TerminateInstance(ctx context.Context, instanceID string) (fleet.StateChange, error)
	ModifyInstanceType(ctx context.Context, instanceID, instanceType string) error

	ListVolumes(ctx context.Context, instanceID string) ([]fleet.Volume, error)
	DescribeVolume(ctx context.Context, volumeID string) (fleet.Volume, error)
	CreateVolume(ctx context.Context, spec VolumeSpec) (fleet.Volume, error)
	AttachVolume(ctx context.Context, volumeID, instanceID, device string) (fleet.VolumeAttachment, error)
	DetachVolume(ctx context.Context, volumeID string) (fleet.VolumeAttachment, error)
	DeleteVolume(ctx context.Context, volumeID string) error

	CreateImage(ctx context.Context, spec ImageSpec) (fleet.Image, error)
	ListImages(ctx context.Context, instanceID string) ([]fleet.Image, error)

	PutAlarm(ctx context.Context, spec AlarmSpec) error
	ListAlarms(ctx context.Context, instanceID string) ([]fleet.Alarm, error)
	DeleteAlarm(ctx context.Context, alarmName string) error
}

type ProviderErrorKind string

const (
	ProviderNotFound         ProviderErrorKind = "not_found"
	ProviderInvalidState     ProviderErrorKind = "invalid_state"
	ProviderPermissionDenied ProviderErrorKind = "permission_denied"
	ProviderRateLimited      ProviderErrorKind = "rate_limited"
	ProviderUnknown          ProviderErrorKind = "unknown"
)

type ProviderError struct {
	Kind ProviderErrorKind
	Op   string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderErrorKindOf returns ProviderUnknown for errors that are not
// *ProviderError.
func ProviderErrorKindOf(err error) ProviderErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ProviderUnknown
}
