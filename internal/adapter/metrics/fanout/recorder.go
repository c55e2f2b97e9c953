// Package fanout forwards action outcomes to several recorders.
package fanout

import (
	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

type Recorder []ports.ActionMetrics

func (r Recorder) RecordOutcome(action fleet.ActionName, status fleet.Status, reason string) {
	for _, m := range r {
		if m != nil {
			m.RecordOutcome(action, status, reason)
		}
	}
}
