package memory

import (
	"context"
	"slices"
	"time"

	"fleetpilot/internal/domain/fleet"
)

type AuditRepo struct {
	store *Store
}

func NewAuditRepo(store *Store) AuditRepo {
	return AuditRepo{store: store}
}

func (r AuditRepo) Append(_ context.Context, record fleet.AuditRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audit = append(r.store.audit, record)
	return nil
}

func (r AuditRepo) ListRecent(_ context.Context, limit int) ([]fleet.AuditRecord, error) {
	return r.list(limit, func(fleet.AuditRecord) bool { return true }), nil
}

func (r AuditRepo) ListByOperator(_ context.Context, email string, limit int) ([]fleet.AuditRecord, error) {
	return r.list(limit, func(rec fleet.AuditRecord) bool { return rec.OperatorEmail == email }), nil
}

func (r AuditRepo) ListByStatus(_ context.Context, status fleet.Status, limit int) ([]fleet.AuditRecord, error) {
	return r.list(limit, func(rec fleet.AuditRecord) bool { return rec.Status == status }), nil
}

func (r AuditRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	before := len(r.store.audit)
	r.store.audit = slices.DeleteFunc(r.store.audit, func(rec fleet.AuditRecord) bool {
		return !rec.RetainUntil.IsZero() && !now.Before(rec.RetainUntil)
	})
	return int64(before - len(r.store.audit)), nil
}

// list returns matching records newest first. Records with equal timestamps
// keep reverse insertion order.
func (r AuditRepo) list(limit int, match func(fleet.AuditRecord) bool) []fleet.AuditRecord {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]fleet.AuditRecord, 0)
	for i := len(r.store.audit) - 1; i >= 0; i-- {
		if rec := r.store.audit[i]; match(rec) {
			out = append(out, rec)
		}
	}
	slices.SortStableFunc(out, func(a, b fleet.AuditRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
