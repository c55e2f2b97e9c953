package inmemory

import (
	"maps"
	"sync"

	"fleetpilot/internal/domain/fleet"
)

type Snapshot struct {
	ActionTotal   uint64            `json:"action_total"`
	ActionSuccess uint64            `json:"action_success"`
	ActionPending uint64            `json:"action_pending"`
	ActionFailure uint64            `json:"action_failure"`
	ByAction      map[string]uint64 `json:"by_action"`
	ByReason      map[string]uint64 `json:"by_reason"`
}

type Recorder struct {
	mu       sync.Mutex
	success  uint64
	pending  uint64
	failure  uint64
	byAction map[string]uint64
	byReason map[string]uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		byAction: map[string]uint64{},
		byReason: map[string]uint64{},
	}
}

func (r *Recorder) RecordOutcome(action fleet.ActionName, status fleet.Status, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch status {
	case fleet.StatusSuccess:
		r.success++
	case fleet.StatusPending:
		r.pending++
	default:
		r.failure++
	}
	r.byAction[string(action)]++
	if reason != "" {
		r.byReason[reason]++
	}
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Snapshot{
		ActionSuccess: r.success,
		ActionPending: r.pending,
		ActionFailure: r.failure,
		ActionTotal:   r.success + r.pending + r.failure,
		ByAction:      maps.Clone(r.byAction),
		ByReason:      maps.Clone(r.byReason),
	}
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}
