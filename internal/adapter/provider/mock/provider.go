package mock

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

// Provider is an in-memory fleet used for local mode and tests. State
// transitions complete immediately.
type Provider struct {
	mu        sync.Mutex
	now       func() time.Time
	seq       int
	instances map[string]fleet.Instance
	volumes   map[string]fleet.Volume
	images    map[string]fleet.Image
	alarms    map[string]fleet.Alarm
	failures  map[string]error
	calls     []string
}

type Seed struct {
	Instances []fleet.Instance
	Volumes   []fleet.Volume
	Images    []fleet.Image
}

func NewProvider(seed Seed, now func() time.Time) *Provider {
	if now == nil {
		now = time.Now
	}
	p := &Provider{
		now:       now,
		instances: map[string]fleet.Instance{},
		volumes:   map[string]fleet.Volume{},
		images:    map[string]fleet.Image{},
		alarms:    map[string]fleet.Alarm{},
		failures:  map[string]error{},
	}
	for _, inst := range seed.Instances {
		p.instances[inst.InstanceID] = inst
	}
	for _, vol := range seed.Volumes {
		p.volumes[vol.VolumeID] = vol
	}
	for _, img := range seed.Images {
		p.images[img.ImageID] = img
	}
	return p
}

// DemoSeed is the fleet served by the mock provider in local mode.
func DemoSeed(now time.Time) Seed {
	return Seed{
		Instances: []fleet.Instance{
			{InstanceID: "i-0a1b2c3d4e5f60001", InstanceType: "t3.micro", State: fleet.InstanceStateRunning, LaunchTime: now.Add(-72 * time.Hour), AvailabilityZone: "us-east-1a", PrivateIPAddress: "10.0.1.10", Tags: map[string]string{"Name": "web-1"}},
			{InstanceID: "i-0a1b2c3d4e5f60002", InstanceType: "t3.large", State: fleet.InstanceStateStopped, LaunchTime: now.Add(-240 * time.Hour), AvailabilityZone: "us-east-1b", PrivateIPAddress: "10.0.2.20", Tags: map[string]string{"Name": "batch-1"}},
		},
		Volumes: []fleet.Volume{
			{VolumeID: "vol-0a1b2c3d4e5f60001", SizeGiB: 20, VolumeType: "gp3", State: "in-use", AvailabilityZone: "us-east-1a", Attachments: []fleet.VolumeAttachment{{VolumeID: "vol-0a1b2c3d4e5f60001", InstanceID: "i-0a1b2c3d4e5f60001", Device: "/dev/xvda", State: "attached"}}},
			{VolumeID: "vol-0a1b2c3d4e5f60002", SizeGiB: 100, VolumeType: "gp3", State: "available", AvailabilityZone: "us-east-1b"},
		},
	}
}

// FailNext makes the next call of op return err. op is the Provider method name.
func (p *Provider) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = err
}

// Calls returns the provider methods invoked so far, in order.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

func (p *Provider) Instance(id string) (fleet.Instance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.instances[id]
	return inst, ok
}

func (p *Provider) begin(op string) error {
	p.calls = append(p.calls, op)
	if err, ok := p.failures[op]; ok {
		delete(p.failures, op)
		return err
	}
	return nil
}

func (p *Provider) nextID(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s-%017x", prefix, p.seq)
}

func notFound(op, id string) error {
	return &ports.ProviderError{Kind: ports.ProviderNotFound, Op: op, Err: fmt.Errorf("%s does not exist", id)}
}

func invalidState(op, format string, args ...any) error {
	return &ports.ProviderError{Kind: ports.ProviderInvalidState, Op: op, Err: fmt.Errorf(format, args...)}
}

func (p *Provider) ListInstances(_ context.Context, state string) ([]fleet.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("ListInstances"); err != nil {
		return nil, err
	}
	out := make([]fleet.Instance, 0, len(p.instances))
	for _, inst := range p.instances {
		if state == "" || inst.State == state {
			inst.Tags = maps.Clone(inst.Tags)
			out = append(out, inst)
		}
	}
	slices.SortFunc(out, func(a, b fleet.Instance) int { return strings.Compare(a.InstanceID, b.InstanceID) })
	return out, nil
}

func (p *Provider) DescribeInstance(_ context.Context, instanceID string) (fleet.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("DescribeInstance"); err != nil {
		return fleet.Instance{}, err
	}
	inst, ok := p.instances[instanceID]
	if !ok {
		return fleet.Instance{}, notFound("DescribeInstance", instanceID)
	}
	inst.Tags = maps.Clone(inst.Tags)
	return inst, nil
}

func (p *Provider) LaunchInstance(_ context.Context, spec ports.LaunchSpec) (fleet.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("LaunchInstance"); err != nil {
		return fleet.Instance{}, err
	}
	now := p.now().UTC()
	tags := maps.Clone(spec.Tags)
	if tags == nil {
		tags = map[string]string{}
	}
	tags["ManagedBy"] = "fleetpilot"
	tags["LaunchedBy"] = spec.LaunchedBy
	tags["LaunchedAt"] = now.Format(time.RFC3339)
	inst := fleet.Instance{
		InstanceID:       p.nextID("i"),
		InstanceType:     spec.InstanceType,
		State:            fleet.InstanceStatePending,
		LaunchTime:       now,
		AvailabilityZone: "us-east-1a",
		Tags:             tags,
	}
	p.instances[inst.InstanceID] = inst
	return inst, nil
}

func (p *Provider) transition(op, instanceID string, allowed []string, next string) (fleet.StateChange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin(op); err != nil {
		return fleet.StateChange{}, err
	}
	inst, ok := p.instances[instanceID]
	if !ok {
		return fleet.StateChange{}, notFound(op, instanceID)
	}
	if !slices.Contains(allowed, inst.State) {
		return fleet.StateChange{}, invalidState(op, "instance %s is %s", instanceID, inst.State)
	}
	prev := inst.State
	inst.State = next
	p.instances[instanceID] = inst
	return fleet.StateChange{InstanceID: instanceID, PreviousState: prev, CurrentState: next}, nil
}

func (p *Provider) StartInstance(_ context.Context, instanceID string) (fleet.StateChange, error) {
	return p.transition("StartInstance", instanceID, []string{fleet.InstanceStateStopped, fleet.InstanceStateRunning}, fleet.InstanceStateRunning)
}

func (p *Provider) StopInstance(_ context.Context, instanceID string) (fleet.StateChange, error) {
	return p.transition("StopInstance", instanceID, []string{fleet.InstanceStateRunning, fleet.InstanceStateStopped}, fleet.InstanceStateStopped)
}

func (p *Provider) TerminateInstance(_ context.Context, instanceID string) (fleet.StateChange, error) {
	return p.transition("TerminateInstance", instanceID, []string{
		fleet.InstanceStatePending, fleet.InstanceStateRunning, fleet.InstanceStateStopping,
		fleet.InstanceStateStopped, fleet.InstanceStateShuttingDown, fleet.InstanceStateTerminated,
	}, fleet.InstanceStateTerminated)
}

func (p *Provider) ModifyInstanceType(_ context.Context, instanceID, instanceType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("ModifyInstanceType"); err != nil {
		return err
	}
	inst, ok := p.instances[instanceID]
	if !ok {
		return notFound("ModifyInstanceType", instanceID)
	}
	if inst.State != fleet.InstanceStateStopped {
		return invalidState("ModifyInstanceType", "instance %s is %s", instanceID, inst.State)
	}
	inst.InstanceType = instanceType
	p.instances[instanceID] = inst
	return nil
}

func (p *Provider) ListVolumes(_ context.Context, instanceID string) ([]fleet.Volume, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("ListVolumes"); err != nil {
		return nil, err
	}
	out := make([]fleet.Volume, 0, len(p.volumes))
	for _, vol := range p.volumes {
		if instanceID != "" && !slices.ContainsFunc(vol.Attachments, func(a fleet.VolumeAttachment) bool { return a.InstanceID == instanceID }) {
			continue
		}
		vol.Attachments = slices.Clone(vol.Attachments)
		out = append(out, vol)
	}
	slices.SortFunc(out, func(a, b fleet.Volume) int { return strings.Compare(a.VolumeID, b.VolumeID) })
	return out, nil
}

func (p *Provider) DescribeVolume(_ context.Context, volumeID string) (fleet.Volume, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("DescribeVolume"); err != nil {
		return fleet.Volume{}, err
	}
	vol, ok := p.volumes[volumeID]
	if !ok {
		return fleet.Volume{}, notFound("DescribeVolume", volumeID)
	}
	vol.Attachments = slices.Clone(vol.Attachments)
	return vol, nil
}

func (p *Provider) CreateVolume(_ context.Context, spec ports.VolumeSpec) (fleet.Volume, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("CreateVolume"); err != nil {
		return fleet.Volume{}, err
	}
	az := spec.AvailabilityZone
	if az == "" {
		az = "us-east-1a"
	}
	vol := fleet.Volume{
		VolumeID:         p.nextID("vol"),
		SizeGiB:          spec.SizeGiB,
		VolumeType:       spec.VolumeType,
		State:            "available",
		AvailabilityZone: az,
	}
	p.volumes[vol.VolumeID] = vol
	return vol, nil
}

func (p *Provider) AttachVolume(_ context.Context, volumeID, instanceID, device string) (fleet.VolumeAttachment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("AttachVolume"); err != nil {
		return fleet.VolumeAttachment{}, err
	}
	vol, ok := p.volumes[volumeID]
	if !ok {
		return fleet.VolumeAttachment{}, notFound("AttachVolume", volumeID)
	}
	if _, ok := p.instances[instanceID]; !ok {
		return fleet.VolumeAttachment{}, notFound("AttachVolume", instanceID)
	}
	if len(vol.Attachments) > 0 {
		return fleet.VolumeAttachment{}, invalidState("AttachVolume", "volume %s is already attached", volumeID)
	}
	att := fleet.VolumeAttachment{VolumeID: volumeID, InstanceID: instanceID, Device: device, State: "attached"}
	vol.Attachments = []fleet.VolumeAttachment{att}
	vol.State = "in-use"
	p.volumes[volumeID] = vol
	return att, nil
}

func (p *Provider) DetachVolume(_ context.Context, volumeID string) (fleet.VolumeAttachment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("DetachVolume"); err != nil {
		return fleet.VolumeAttachment{}, err
	}
	vol, ok := p.volumes[volumeID]
	if !ok {
		return fleet.VolumeAttachment{}, notFound("DetachVolume", volumeID)
	}
	if len(vol.Attachments) == 0 {
		return fleet.VolumeAttachment{}, invalidState("DetachVolume", "volume %s is not attached", volumeID)
	}
	att := vol.Attachments[0]
	att.State = "detached"
	vol.Attachments = nil
	vol.State = "available"
	p.volumes[volumeID] = vol
	return att, nil
}

func (p *Provider) DeleteVolume(_ context.Context, volumeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("DeleteVolume"); err != nil {
		return err
	}
	vol, ok := p.volumes[volumeID]
	if !ok {
		return notFound("DeleteVolume", volumeID)
	}
	if len(vol.Attachments) > 0 {
		return invalidState("DeleteVolume", "volume %s is in use", volumeID)
	}
	delete(p.volumes, volumeID)
	return nil
}

func (p *Provider) CreateImage(_ context.Context, spec ports.ImageSpec) (fleet.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("CreateImage"); err != nil {
		return fleet.Image{}, err
	}
	if _, ok := p.instances[spec.InstanceID]; !ok {
		return fleet.Image{}, notFound("CreateImage", spec.InstanceID)
	}
	now := p.now().UTC()
	img := fleet.Image{
		ImageID:     p.nextID("ami"),
		Name:        spec.Name,
		State:       "available",
		CreatedAt:   now,
		Description: spec.Description,
		Tags: map[string]string{
			"Name":               spec.Name,
			"SourceInstanceId":   spec.InstanceID,
			"SourceInstanceName": spec.InstanceName,
			"BackupType":         "AMI",
			"CreatedBy":          spec.CreatedBy,
			"CreatedAt":          now.Format(time.RFC3339),
		},
	}
	p.images[img.ImageID] = img
	return img, nil
}

func (p *Provider) ListImages(_ context.Context, instanceID string) ([]fleet.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("ListImages"); err != nil {
		return nil, err
	}
	out := make([]fleet.Image, 0)
	for _, img := range p.images {
		if img.Tags["SourceInstanceId"] == instanceID {
			img.Tags = maps.Clone(img.Tags)
			out = append(out, img)
		}
	}
	slices.SortFunc(out, func(a, b fleet.Image) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (p *Provider) PutAlarm(_ context.Context, spec ports.AlarmSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("PutAlarm"); err != nil {
		return err
	}
	if spec.AlarmName == "" {
		return &ports.ProviderError{Kind: ports.ProviderUnknown, Op: "PutAlarm", Err: errors.New("alarm name is required")}
	}
	p.alarms[spec.AlarmName] = fleet.Alarm{
		AlarmName:      spec.AlarmName,
		MetricName:     spec.MetricName,
		Threshold:      spec.Threshold,
		State:          "INSUFFICIENT_DATA",
		ActionsEnabled: true,
		Description:    spec.Description,
		InstanceID:     spec.InstanceID,
	}
	return nil
}

// ListAlarms matches on the alarm name prefix, like the CloudWatch adapter.
func (p *Provider) ListAlarms(_ context.Context, instanceID string) ([]fleet.Alarm, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("ListAlarms"); err != nil {
		return nil, err
	}
	out := make([]fleet.Alarm, 0)
	for name, alarm := range p.alarms {
		if strings.HasPrefix(name, instanceID) {
			out = append(out, alarm)
		}
	}
	slices.SortFunc(out, func(a, b fleet.Alarm) int { return strings.Compare(a.AlarmName, b.AlarmName) })
	return out, nil
}

func (p *Provider) DeleteAlarm(_ context.Context, alarmName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("DeleteAlarm"); err != nil {
		return err
	}
	if _, ok := p.alarms[alarmName]; !ok {
		return notFound("DeleteAlarm", alarmName)
	}
	delete(p.alarms, alarmName)
	return nil
}
