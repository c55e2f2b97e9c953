package ports

import (
	"context"
	"errors"

	"fleetpilot/internal/domain/fleet"
)

var ErrNoIntent = errors.New("no actionable intent")

type Intent struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}

// IntentResolver turns free text into one catalogue action. history holds
// the operator's most recent audit records, newest first.
type IntentResolver interface {
	Resolve(ctx context.Context, query string, history []fleet.AuditRecord) (Intent, error)
}
