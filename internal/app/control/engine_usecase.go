package control

import (
	"context"
	"time"

	"fleetpilot/internal/app/confirm"
	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
	"fleetpilot/internal/domain/policy"
)

const (
	DefaultHistorySize    = 5
	DefaultAuditRetention = 90 * 24 * time.Hour
	DefaultMaxHourlyCost  = 1.0
)

type Timeouts struct {
	Read        time.Duration
	StateChange time.Duration
	Default     time.Duration
	AuditWrite  time.Duration
	Notify      time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Read:        15 * time.Second,
		StateChange: 90 * time.Second,
		Default:     30 * time.Second,
		AuditWrite:  5 * time.Second,
		Notify:      5 * time.Second,
	}
}

type UseCase struct {
	Registry  *fleet.Registry
	Resolver  ports.IntentResolver
	Provider  ports.Provider
	Tokens    confirm.Service
	Audit     ports.AuditRepository
	TxManager ports.TxManager
	Notifier  ports.Notifier
	Metrics   ports.ActionMetrics

	MaxHourlyCost   float64
	Prices          policy.PriceTable
	BackupRecency   time.Duration
	AuditRetention  time.Duration
	HistorySize     int
	ApprovalAddress string
	Timeouts        Timeouts
	Now             func() time.Time
}

// Handle runs one operator request to completion. The response is always
// populated; the returned error carries the same failure for callers that
// match on it with errors.Is/As.
func (u UseCase) Handle(ctx context.Context, req Request) (Response, error) {
	ac, err := u.ValidateRequest(req)
	if err != nil {
		return failedResponse(ac, err), err
	}
	ac.In.NowAt = u.now()

	if ac.In.Token != "" {
		if err := u.RedeemToken(ctx, &ac); err != nil {
			return u.recordFailure(ctx, &ac, err)
		}
	} else {
		if err := u.ResolveIntent(ctx, &ac); err != nil {
			return u.recordFailure(ctx, &ac, err)
		}
	}
	if err := u.BindAction(&ac); err != nil {
		return u.recordFailure(ctx, &ac, err)
	}

	spec := ac.View.Action
	switch {
	case spec.Destructive && ac.View.Redeemed == nil:
		return u.GateDestructive(ctx, &ac)
	case spec.Mutating && !spec.Destructive:
		if err := u.RunPrechecks(ctx, &ac); err != nil {
			return u.recordFailure(ctx, &ac, err)
		}
	}
	return u.InvokeAndRecord(ctx, &ac)
}

func (u UseCase) now() time.Time {
	if u.Now == nil {
		return time.Now().UTC()
	}
	return u.Now().UTC()
}

func (u UseCase) registry() *fleet.Registry {
	if u.Registry == nil {
		return fleet.DefaultRegistry()
	}
	return u.Registry
}

func (u UseCase) prices() policy.PriceTable {
	if u.Prices == nil {
		return policy.DefaultPrices()
	}
	return u.Prices
}

func (u UseCase) maxHourlyCost() float64 {
	if u.MaxHourlyCost <= 0 {
		return DefaultMaxHourlyCost
	}
	return u.MaxHourlyCost
}

func (u UseCase) timeouts() Timeouts {
	t := u.Timeouts
	d := DefaultTimeouts()
	if t.Read <= 0 {
		t.Read = d.Read
	}
	if t.StateChange <= 0 {
		t.StateChange = d.StateChange
	}
	if t.Default <= 0 {
		t.Default = d.Default
	}
	if t.AuditWrite <= 0 {
		t.AuditWrite = d.AuditWrite
	}
	if t.Notify <= 0 {
		t.Notify = d.Notify
	}
	return t
}

// timeoutFor bounds one provider call by the class of the action.
func (u UseCase) timeoutFor(a fleet.Action) time.Duration {
	t := u.timeouts()
	if !a.Mutating {
		return t.Read
	}
	switch a.Name {
	case fleet.ActionLaunchInstance, fleet.ActionStartInstance, fleet.ActionStopInstance,
		fleet.ActionTerminateInstance, fleet.ActionChangeInstanceType:
		return t.StateChange
	default:
		return t.Default
	}
}

func (u UseCase) recordMetrics(action string, status fleet.Status, reason string) {
	if u.Metrics == nil {
		return
	}
	u.Metrics.RecordOutcome(fleet.ActionName(action), status, reason)
}
