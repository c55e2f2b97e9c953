package fanout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fleetpilot/internal/adapter/metrics/inmemory"
	"fleetpilot/internal/domain/fleet"
)

func TestRecorder_ForwardsToAll(t *testing.T) {
	a, b := inmemory.NewRecorder(), inmemory.NewRecorder()
	r := Recorder{a, nil, b}

	r.RecordOutcome(fleet.ActionStopInstance, fleet.StatusFailed, "timeout")

	for _, rec := range []*inmemory.Recorder{a, b} {
		snap := rec.Snapshot()
		assert.Equal(t, uint64(1), snap.ActionFailure)
		assert.Equal(t, uint64(1), snap.ByReason["timeout"])
	}
}
