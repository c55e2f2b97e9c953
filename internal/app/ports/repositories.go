package ports

import (
	"context"
	"time"

	"fleetpilot/internal/domain/fleet"
)

type AuditRepository interface {
	Append(ctx context.Context, record fleet.AuditRecord) error
	ListRecent(ctx context.Context, limit int) ([]fleet.AuditRecord, error)
	ListByOperator(ctx context.Context, email string, limit int) ([]fleet.AuditRecord, error)
	ListByStatus(ctx context.Context, status fleet.Status, limit int) ([]fleet.AuditRecord, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type TokenRepository interface {
	// Insert stores a new token. An existing token with the same value is
	// never overwritten; Insert returns ErrConflict instead.
	Insert(ctx context.Context, token fleet.ConfirmationToken) error
	// Consume marks the token consumed if it is unconsumed and not expired
	// at now. Exactly one concurrent caller can succeed for a given token.
	// On ErrTokenSpent the stored token is returned so callers can tell
	// expiry from reuse.
	Consume(ctx context.Context, token string, now time.Time) (fleet.ConfirmationToken, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
