package ports

import "fleetpilot/internal/domain/fleet"

type ActionMetrics interface {
	RecordOutcome(action fleet.ActionName, status fleet.Status, reason string)
}
