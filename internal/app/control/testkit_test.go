package control

import (
	"context"
	"errors"
	"sync"
	"time"

	"fleetpilot/internal/adapter/provider/mock"
	"fleetpilot/internal/adapter/repo/memory"
	"fleetpilot/internal/app/confirm"
	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubResolver struct {
	mu      sync.Mutex
	intents map[string]ports.Intent
	err     error
	history []fleet.AuditRecord
}

func (r *stubResolver) Resolve(_ context.Context, query string, history []fleet.AuditRecord) (ports.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = history
	if r.err != nil {
		return ports.Intent{}, r.err
	}
	intent, ok := r.intents[query]
	if !ok {
		return ports.Intent{}, ports.ErrNoIntent
	}
	return intent, nil
}

type flakyAuditRepo struct {
	ports.AuditRepository
	appendErr error
}

func (r flakyAuditRepo) Append(ctx context.Context, rec fleet.AuditRecord) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	return r.AuditRepository.Append(ctx, rec)
}

type notification struct {
	address, subject, body string
}

type chanNotifier struct {
	ch  chan notification
	err error
}

func (n chanNotifier) Notify(_ context.Context, address, subject, body string) error {
	n.ch <- notification{address: address, subject: subject, body: body}
	return n.err
}

type outcomeRecorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *outcomeRecorder) RecordOutcome(action fleet.ActionName, status fleet.Status, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, string(action)+"/"+string(status)+"/"+reason)
}

// blockingProvider waits for the call context on StopInstance.
type blockingProvider struct {
	*mock.Provider
}

func (p blockingProvider) StopInstance(ctx context.Context, _ string) (fleet.StateChange, error) {
	<-ctx.Done()
	return fleet.StateChange{}, &ports.ProviderError{Kind: ports.ProviderUnknown, Op: "StopInstance", Err: ctx.Err()}
}

type panickingProvider struct {
	*mock.Provider
}

func (panickingProvider) StartInstance(context.Context, string) (fleet.StateChange, error) {
	panic("sdk exploded")
}

// cancellingProvider cancels the caller's context in the middle of the call.
type cancellingProvider struct {
	*mock.Provider
	cancel context.CancelFunc
}

func (p cancellingProvider) StopInstance(ctx context.Context, id string) (fleet.StateChange, error) {
	p.cancel()
	if err := ctx.Err(); err != nil {
		return fleet.StateChange{}, err
	}
	return p.Provider.StopInstance(ctx, id)
}

const (
	operator    = "a@b.com"
	runningID   = "i-0a1b2c3d4e5f60001"
	stoppedID   = "i-0a1b2c3d4e5f60002"
	attachedVol = "vol-0a1b2c3d4e5f60001"
	freeVol     = "vol-0a1b2c3d4e5f60002"
)

type harness struct {
	uc       UseCase
	clock    *stubClock
	store    *memory.Store
	audit    memory.AuditRepo
	provider *mock.Provider
	resolver *stubResolver
	metrics  *outcomeRecorder
}

func newHarness() *harness {
	clock := &stubClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	provider := mock.NewProvider(mock.DemoSeed(clock.Now()), clock.Now)
	resolver := &stubResolver{intents: map[string]ports.Intent{
		"stop instance i-1":        {Action: "stop_instance", Parameters: map[string]any{"instance_id": runningID}},
		"start instance":           {Action: "start_instance", Parameters: map[string]any{"instance_id": stoppedID}},
		"terminate i-1":            {Action: "terminate_instance", Parameters: map[string]any{"instance_id": runningID}},
		"launch big":               {Action: "launch_instance", Parameters: map[string]any{"ami_id": "ami-123", "instance_type": "m5.24xlarge"}},
		"launch medium":            {Action: "launch_instance", Parameters: map[string]any{"ami_id": "ami-123", "instance_type": "m5.4xlarge"}},
		"launch dry":               {Action: "launch_instance", Parameters: map[string]any{"ami_id": "ami-123", "instance_type": "t3.micro", "dry_run": true}},
		"launch exotic":            {Action: "launch_instance", Parameters: map[string]any{"ami_id": "ami-123", "instance_type": "x9.mega"}},
		"resize running":           {Action: "change_instance_type", Parameters: map[string]any{"instance_id": runningID, "new_instance_type": "t3.small"}},
		"resize stopped":           {Action: "change_instance_type", Parameters: map[string]any{"instance_id": stoppedID, "new_instance_type": "t3.xlarge"}},
		"delete attached volume":   {Action: "delete_volume", Parameters: map[string]any{"volume_id": attachedVol}},
		"delete free volume":       {Action: "delete_volume", Parameters: map[string]any{"volume_id": freeVol}},
		"reboot everything":        {Action: "reboot_everything", Parameters: map[string]any{}},
		"stop bad id":              {Action: "stop_instance", Parameters: map[string]any{"instance_id": "web-1"}},
		"show logs":                {Action: "get_action_logs", Parameters: map[string]any{"limit": 10}},
		"list instances":           {Action: "LIST_INSTANCES", Parameters: nil},
		"cpu alarm":                {Action: "create_cpu_alarm", Parameters: map[string]any{"instance_id": runningID}},
		"check backup":             {Action: "check_ami_backup", Parameters: map[string]any{"instance_id": runningID}},
	}}
	metrics := &outcomeRecorder{}
	audit := memory.NewAuditRepo(store)
	return &harness{
		uc: UseCase{
			Resolver:  resolver,
			Provider:  provider,
			Tokens:    confirm.Service{Tokens: memory.NewTokenRepo(store), Now: clock.Now},
			Audit:     audit,
			TxManager: memory.NewTxManager(store),
			Metrics:   metrics,
			Now:       clock.Now,
		},
		clock:    clock,
		store:    store,
		audit:    audit,
		provider: provider,
		resolver: resolver,
		metrics:  metrics,
	}
}

func (h *harness) records() []fleet.AuditRecord {
	recs, _ := h.audit.ListRecent(context.Background(), 0)
	return recs
}

func (h *harness) handle(query, token string) (Response, error) {
	h.clock.Advance(time.Second)
	return h.uc.Handle(context.Background(), Request{OperatorEmail: operator, Query: query, ConfirmationToken: token})
}

func countCalls(calls []string, op string) int {
	n := 0
	for _, c := range calls {
		if c == op {
			n++
		}
	}
	return n
}

var errResolverDown = errors.New("resolver down")
