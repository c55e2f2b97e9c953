package fleet

import "time"

type Instance struct {
	InstanceID       string            `json:"instance_id"`
	InstanceType     string            `json:"instance_type"`
	State            string            `json:"state"`
	LaunchTime       time.Time         `json:"launch_time"`
	UptimeDays       int               `json:"uptime_days"`
	PrivateIPAddress string            `json:"private_ip_address,omitempty"`
	PublicIPAddress  string            `json:"public_ip_address,omitempty"`
	AvailabilityZone string            `json:"availability_zone,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
	HourlyCost       float64           `json:"hourly_cost"`
	MonthlyCost      float64           `json:"monthly_cost"`
}

// Name returns the Name tag, or "Unknown" when the instance is untagged.
func (i Instance) Name() string {
	if n := i.Tags["Name"]; n != "" {
		return n
	}
	return "Unknown"
}

type StateChange struct {
	InstanceID    string `json:"instance_id"`
	PreviousState string `json:"previous_state,omitempty"`
	CurrentState  string `json:"current_state"`
}

type Volume struct {
	VolumeID         string             `json:"volume_id"`
	SizeGiB          int32              `json:"size"`
	VolumeType       string             `json:"volume_type"`
	State            string             `json:"state"`
	AvailabilityZone string             `json:"availability_zone,omitempty"`
	Attachments      []VolumeAttachment `json:"attachments,omitempty"`
}

type VolumeAttachment struct {
	VolumeID   string `json:"volume_id"`
	InstanceID string `json:"instance_id,omitempty"`
	Device     string `json:"device,omitempty"`
	State      string `json:"state,omitempty"`
}

type Image struct {
	ImageID     string            `json:"image_id"`
	Name        string            `json:"name"`
	State       string            `json:"state"`
	CreatedAt   time.Time         `json:"creation_date"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

type Alarm struct {
	AlarmName      string  `json:"alarm_name"`
	MetricName     string  `json:"metric_name"`
	Threshold      float64 `json:"threshold"`
	State          string  `json:"state,omitempty"`
	ActionsEnabled bool    `json:"actions_enabled"`
	Description    string  `json:"description,omitempty"`
	InstanceID     string  `json:"instance_id,omitempty"`
}

// Instance states as reported by the provider.
const (
	InstanceStatePending      = "pending"
	InstanceStateRunning      = "running"
	InstanceStateStopping     = "stopping"
	InstanceStateStopped      = "stopped"
	InstanceStateShuttingDown = "shutting-down"
	InstanceStateTerminated   = "terminated"
)
