package fleet

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrInvalidParams = errors.New("invalid action parameters")
)

type ParamType string

const (
	ParamString     ParamType = "string"
	ParamInteger    ParamType = "integer"
	ParamNumber     ParamType = "number"
	ParamBoolean    ParamType = "boolean"
	ParamStringList ParamType = "string_list"
	ParamStringMap  ParamType = "string_map"
)

type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
	Pattern  string
	Minimum  *float64
	Maximum  *float64
	Enum     []string
}

type Action struct {
	Name        ActionName
	Kind        Kind
	Mutating    bool
	Destructive bool
	Summary     string
	Params      []ParamSpec
}

// Registry is the fixed action catalogue. It is built once and never mutated.
type Registry struct {
	actions []Action
	index   map[ActionName]int
	schemas []*jsonschema.Schema
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(catalogue())
	if err != nil {
		panic(fmt.Sprintf("build action registry: %v", err))
	}
	return r
})

func DefaultRegistry() *Registry {
	return defaultRegistry()
}

func NewRegistry(actions []Action) (*Registry, error) {
	r := &Registry{
		actions: make([]Action, 0, len(actions)),
		index:   make(map[ActionName]int, len(actions)),
		schemas: make([]*jsonschema.Schema, 0, len(actions)),
	}
	for _, a := range actions {
		if a.Name == "" {
			return nil, errors.New("action with empty name")
		}
		if _, dup := r.index[a.Name]; dup {
			return nil, fmt.Errorf("duplicate action %s", a.Name)
		}
		if a.Destructive && !a.Mutating {
			return nil, fmt.Errorf("action %s is destructive but not mutating", a.Name)
		}
		schema, err := compileSchema(a)
		if err != nil {
			return nil, err
		}
		a.Params = slices.Clone(a.Params)
		r.index[a.Name] = len(r.actions)
		r.actions = append(r.actions, a)
		r.schemas = append(r.schemas, schema)
	}
	return r, nil
}

func (r *Registry) Lookup(name ActionName) (Action, error) {
	i, ok := r.index[name]
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	a := r.actions[i]
	a.Params = slices.Clone(a.Params)
	return a, nil
}

// Validate checks params against the action's parameter schema.
func (r *Registry) Validate(name ActionName, params map[string]any) error {
	i, ok := r.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	doc, err := normalizeParams(params)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidParams, name, err)
	}
	if err := r.schemas[i].Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidParams, name, err)
	}
	return nil
}

func (r *Registry) Actions() []Action {
	out := make([]Action, 0, len(r.actions))
	for _, a := range r.actions {
		a.Params = slices.Clone(a.Params)
		out = append(out, a)
	}
	return out
}

const (
	patternInstanceID   = `^i-[0-9a-zA-Z]+$`
	patternVolumeID     = `^vol-[0-9a-zA-Z]+$`
	patternImageID      = `^ami-[0-9a-zA-Z]+$`
	patternInstanceType = `^[a-z0-9-]+\.[a-z0-9-]+$`
	patternDevice       = `^/dev/[a-z0-9]+$`
)

func minimum(v float64) *float64 { return &v }

func catalogue() []Action {
	instanceID := ParamSpec{Name: "instance_id", Type: ParamString, Required: true, Pattern: patternInstanceID}
	optionalInstanceID := instanceID
	optionalInstanceID.Required = false
	volumeID := ParamSpec{Name: "volume_id", Type: ParamString, Required: true, Pattern: patternVolumeID}

	return []Action{
		{Name: ActionListInstances, Kind: KindInstance, Summary: "List instances with state and cost", Params: []ParamSpec{
			{Name: "state", Type: ParamString, Enum: []string{"pending", "running", "stopping", "stopped", "shutting-down", "terminated"}},
		}},
		{Name: ActionLaunchInstance, Kind: KindInstance, Mutating: true, Summary: "Launch a new instance", Params: []ParamSpec{
			{Name: "ami_id", Type: ParamString, Required: true, Pattern: patternImageID},
			{Name: "instance_type", Type: ParamString, Required: true, Pattern: patternInstanceType},
			{Name: "key_name", Type: ParamString},
			{Name: "subnet_id", Type: ParamString},
			{Name: "security_group_ids", Type: ParamStringList},
			{Name: "tags", Type: ParamStringMap},
			{Name: "dry_run", Type: ParamBoolean},
		}},
		{Name: ActionStartInstance, Kind: KindInstance, Mutating: true, Summary: "Start a stopped instance", Params: []ParamSpec{instanceID}},
		{Name: ActionStopInstance, Kind: KindInstance, Mutating: true, Summary: "Stop a running instance", Params: []ParamSpec{instanceID}},
		{Name: ActionTerminateInstance, Kind: KindInstance, Mutating: true, Destructive: true, Summary: "Terminate an instance", Params: []ParamSpec{
			instanceID,
			{Name: "skip_backup_check", Type: ParamBoolean},
		}},
		{Name: ActionChangeInstanceType, Kind: KindInstance, Mutating: true, Summary: "Change the type of a stopped instance", Params: []ParamSpec{
			instanceID,
			{Name: "new_instance_type", Type: ParamString, Required: true, Pattern: patternInstanceType},
			{Name: "create_backup", Type: ParamBoolean},
		}},
		{Name: ActionListVolumes, Kind: KindVolume, Summary: "List volumes", Params: []ParamSpec{optionalInstanceID}},
		{Name: ActionCreateVolume, Kind: KindVolume, Mutating: true, Summary: "Create a volume", Params: []ParamSpec{
			{Name: "size", Type: ParamInteger, Required: true, Minimum: minimum(1), Maximum: minimum(16384)},
			{Name: "volume_type", Type: ParamString, Enum: []string{"gp2", "gp3", "io1", "io2", "st1", "sc1", "standard"}},
			{Name: "availability_zone", Type: ParamString},
		}},
		{Name: ActionAttachVolume, Kind: KindVolume, Mutating: true, Summary: "Attach a volume to an instance", Params: []ParamSpec{
			volumeID,
			instanceID,
			{Name: "device", Type: ParamString, Required: true, Pattern: patternDevice},
		}},
		{Name: ActionDetachVolume, Kind: KindVolume, Mutating: true, Summary: "Detach a volume", Params: []ParamSpec{volumeID}},
		{Name: ActionDeleteVolume, Kind: KindVolume, Mutating: true, Destructive: true, Summary: "Delete a volume", Params: []ParamSpec{volumeID}},
		{Name: ActionCreateBackup, Kind: KindBackup, Mutating: true, Summary: "Create a machine image backup", Params: []ParamSpec{
			instanceID,
			{Name: "name", Type: ParamString},
			{Name: "description", Type: ParamString},
			{Name: "no_reboot", Type: ParamBoolean},
		}},
		{Name: ActionListBackups, Kind: KindBackup, Summary: "List machine images taken from an instance", Params: []ParamSpec{instanceID}},
		{Name: ActionCheckBackup, Kind: KindBackup, Summary: "Check whether an instance has a recent backup", Params: []ParamSpec{instanceID}},
		{Name: ActionCreateCPUAlarm, Kind: KindAlarm, Mutating: true, Summary: "Create a CPU utilization alarm", Params: []ParamSpec{
			instanceID,
			{Name: "threshold", Type: ParamNumber, Minimum: minimum(0), Maximum: minimum(100)},
			{Name: "alarm_name", Type: ParamString},
			{Name: "sns_topic_arn", Type: ParamString},
		}},
		{Name: ActionCreateStatusAlarm, Kind: KindAlarm, Mutating: true, Summary: "Create a status check alarm", Params: []ParamSpec{
			instanceID,
			{Name: "alarm_name", Type: ParamString},
			{Name: "sns_topic_arn", Type: ParamString},
		}},
		{Name: ActionListAlarms, Kind: KindAlarm, Summary: "List alarms for an instance", Params: []ParamSpec{instanceID}},
		{Name: ActionDeleteAlarm, Kind: KindAlarm, Mutating: true, Summary: "Delete an alarm", Params: []ParamSpec{
			{Name: "alarm_name", Type: ParamString, Required: true},
		}},
		{Name: ActionListLogs, Kind: KindLog, Summary: "Show recent audit log entries", Params: []ParamSpec{
			{Name: "limit", Type: ParamInteger, Minimum: minimum(1), Maximum: minimum(500)},
			{Name: "operator_email", Type: ParamString},
			{Name: "status", Type: ParamString, Enum: []string{string(StatusSuccess), string(StatusFailed), string(StatusPending)}},
		}},
	}
}
