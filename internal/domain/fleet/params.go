package fleet

import (
	"encoding/json"
	"fmt"
)

// Params is the decoded, typed parameter set of one catalogue action.
type Params interface {
	Action() ActionName
}

// Invocation is a resolved action ready for policy checks and dispatch.
type Invocation struct {
	Action Action
	Params Params
	Raw    map[string]any
}

type ListInstancesParams struct {
	State string `json:"state,omitempty"`
}

type LaunchInstanceParams struct {
	ImageID          string            `json:"ami_id"`
	InstanceType     string            `json:"instance_type"`
	KeyName          string            `json:"key_name,omitempty"`
	SubnetID         string            `json:"subnet_id,omitempty"`
	SecurityGroupIDs []string          `json:"security_group_ids,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
	DryRun           bool              `json:"dry_run,omitempty"`
}

type InstanceParams struct {
	name       ActionName
	InstanceID string `json:"instance_id"`
}

type TerminateInstanceParams struct {
	InstanceID      string `json:"instance_id"`
	SkipBackupCheck bool   `json:"skip_backup_check,omitempty"`
}

type ChangeInstanceTypeParams struct {
	InstanceID      string `json:"instance_id"`
	NewInstanceType string `json:"new_instance_type"`
	CreateBackup    *bool  `json:"create_backup,omitempty"`
}

// WantsBackup defaults to true when the caller did not say otherwise.
func (p ChangeInstanceTypeParams) WantsBackup() bool {
	return p.CreateBackup == nil || *p.CreateBackup
}

type ListVolumesParams struct {
	InstanceID string `json:"instance_id,omitempty"`
}

type CreateVolumeParams struct {
	SizeGiB          int32  `json:"size"`
	VolumeType       string `json:"volume_type,omitempty"`
	AvailabilityZone string `json:"availability_zone,omitempty"`
}

type AttachVolumeParams struct {
	VolumeID   string `json:"volume_id"`
	InstanceID string `json:"instance_id"`
	Device     string `json:"device"`
}

type VolumeParams struct {
	name     ActionName
	VolumeID string `json:"volume_id"`
}

type CreateBackupParams struct {
	InstanceID  string `json:"instance_id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	NoReboot    *bool  `json:"no_reboot,omitempty"`
}

func (p CreateBackupParams) SkipReboot() bool {
	return p.NoReboot == nil || *p.NoReboot
}

type CPUAlarmParams struct {
	InstanceID  string   `json:"instance_id"`
	Threshold   *float64 `json:"threshold,omitempty"`
	AlarmName   string   `json:"alarm_name,omitempty"`
	SNSTopicARN string   `json:"sns_topic_arn,omitempty"`
}

const DefaultCPUThreshold = 80.0

func (p CPUAlarmParams) ThresholdOrDefault() float64 {
	if p.Threshold == nil {
		return DefaultCPUThreshold
	}
	return *p.Threshold
}

type StatusAlarmParams struct {
	InstanceID  string `json:"instance_id"`
	AlarmName   string `json:"alarm_name,omitempty"`
	SNSTopicARN string `json:"sns_topic_arn,omitempty"`
}

type DeleteAlarmParams struct {
	AlarmName string `json:"alarm_name"`
}

type ListLogsParams struct {
	Limit         int    `json:"limit,omitempty"`
	OperatorEmail string `json:"operator_email,omitempty"`
	Status        Status `json:"status,omitempty"`
}

const DefaultLogLimit = 50

func (ListInstancesParams) Action() ActionName      { return ActionListInstances }
func (LaunchInstanceParams) Action() ActionName     { return ActionLaunchInstance }
func (p InstanceParams) Action() ActionName         { return p.name }
func (TerminateInstanceParams) Action() ActionName  { return ActionTerminateInstance }
func (ChangeInstanceTypeParams) Action() ActionName { return ActionChangeInstanceType }
func (ListVolumesParams) Action() ActionName        { return ActionListVolumes }
func (CreateVolumeParams) Action() ActionName       { return ActionCreateVolume }
func (AttachVolumeParams) Action() ActionName       { return ActionAttachVolume }
func (p VolumeParams) Action() ActionName           { return p.name }
func (CreateBackupParams) Action() ActionName       { return ActionCreateBackup }
func (CPUAlarmParams) Action() ActionName           { return ActionCreateCPUAlarm }
func (StatusAlarmParams) Action() ActionName        { return ActionCreateStatusAlarm }
func (DeleteAlarmParams) Action() ActionName        { return ActionDeleteAlarm }
func (ListLogsParams) Action() ActionName           { return ActionListLogs }

// DecodeParams binds a validated parameter map into the typed parameters of
// the named action and fills in defaults.
func DecodeParams(name ActionName, raw map[string]any) (Params, error) {
	switch name {
	case ActionListInstances:
		return decode[ListInstancesParams](name, raw)
	case ActionLaunchInstance:
		return decode[LaunchInstanceParams](name, raw)
	case ActionStartInstance, ActionStopInstance, ActionListBackups, ActionCheckBackup, ActionListAlarms:
		p, err := decodeInto[InstanceParams](name, raw)
		if err != nil {
			return nil, err
		}
		p.name = name
		return p, nil
	case ActionTerminateInstance:
		return decode[TerminateInstanceParams](name, raw)
	case ActionChangeInstanceType:
		return decode[ChangeInstanceTypeParams](name, raw)
	case ActionListVolumes:
		return decode[ListVolumesParams](name, raw)
	case ActionCreateVolume:
		p, err := decodeInto[CreateVolumeParams](name, raw)
		if err != nil {
			return nil, err
		}
		if p.VolumeType == "" {
			p.VolumeType = "gp3"
		}
		return p, nil
	case ActionAttachVolume:
		return decode[AttachVolumeParams](name, raw)
	case ActionDetachVolume, ActionDeleteVolume:
		p, err := decodeInto[VolumeParams](name, raw)
		if err != nil {
			return nil, err
		}
		p.name = name
		return p, nil
	case ActionCreateBackup:
		return decode[CreateBackupParams](name, raw)
	case ActionCreateCPUAlarm:
		return decode[CPUAlarmParams](name, raw)
	case ActionCreateStatusAlarm:
		return decode[StatusAlarmParams](name, raw)
	case ActionDeleteAlarm:
		return decode[DeleteAlarmParams](name, raw)
	case ActionListLogs:
		p, err := decodeInto[ListLogsParams](name, raw)
		if err != nil {
			return nil, err
		}
		if p.Limit <= 0 {
			p.Limit = DefaultLogLimit
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
}

func decode[T Params](name ActionName, raw map[string]any) (Params, error) {
	p, err := decodeInto[T](name, raw)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func decodeInto[T any](name ActionName, raw map[string]any) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrInvalidParams, name, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrInvalidParams, name, err)
	}
	return out, nil
}
