package fleet

import (
	"strings"
	"time"
)

type ActionName string

const (
	ActionListInstances      ActionName = "list_instances"
	ActionLaunchInstance     ActionName = "launch_instance"
	ActionStartInstance      ActionName = "start_instance"
	ActionStopInstance       ActionName = "stop_instance"
	ActionTerminateInstance  ActionName = "terminate_instance"
	ActionChangeInstanceType ActionName = "change_instance_type"
	ActionListVolumes        ActionName = "list_volumes"
	ActionCreateVolume       ActionName = "create_volume"
	ActionAttachVolume       ActionName = "attach_volume"
	ActionDetachVolume       ActionName = "detach_volume"
	ActionDeleteVolume       ActionName = "delete_volume"
	ActionCreateBackup       ActionName = "create_ami_backup"
	ActionListBackups        ActionName = "list_amis"
	ActionCheckBackup        ActionName = "check_ami_backup"
	ActionCreateCPUAlarm     ActionName = "create_cpu_alarm"
	ActionCreateStatusAlarm  ActionName = "create_status_alarm"
	ActionListAlarms         ActionName = "list_alarms"
	ActionDeleteAlarm        ActionName = "delete_alarm"
	ActionListLogs           ActionName = "get_action_logs"
)

func NormalizeActionName(raw string) ActionName {
	return ActionName(strings.ToLower(strings.TrimSpace(raw)))
}

type Kind string

const (
	KindInstance Kind = "instance"
	KindVolume   Kind = "volume"
	KindBackup   Kind = "backup"
	KindAlarm    Kind = "alarm"
	KindLog      Kind = "log"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusSuccess, StatusFailed, StatusPending:
		return s, true
	default:
		return "", false
	}
}

// AuditRecord is immutable once appended to the ledger.
type AuditRecord struct {
	LogID         string    `json:"log_id"`
	Timestamp     time.Time `json:"timestamp"`
	Action        string    `json:"action"`
	Parameters    string    `json:"parameters"`
	Status        Status    `json:"status"`
	Result        string    `json:"result,omitempty"`
	OperatorEmail string    `json:"operator_email"`
	Query         string    `json:"query"`
	Error         string    `json:"error,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	RetainUntil   time.Time `json:"retain_until"`
}

type ConfirmationToken struct {
	Token         string     `json:"token"`
	Action        ActionName `json:"action"`
	Parameters    string     `json:"parameters"`
	OperatorEmail string     `json:"operator_email"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Consumed      bool       `json:"consumed"`
}

// Redeemable reports whether the token may still be consumed at now.
func (t ConfirmationToken) Redeemable(now time.Time) bool {
	return !t.Consumed && now.Before(t.ExpiresAt)
}

func (t ConfirmationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
