// Package otelmetric exports action outcomes as OpenTelemetry counters.
package otelmetric

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"fleetpilot/internal/domain/fleet"
)

// Scope is the instrumentation scope of the action counters.
const Scope = "fleetpilot/control"

type Recorder struct {
	outcomes metric.Int64Counter
	failures metric.Int64Counter
}

// NewRecorder registers the counters on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	outcomes, err := meter.Int64Counter("fleetpilot.actions.total",
		metric.WithDescription("Handled requests by action and terminal status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create outcome counter: %w", err)
	}
	failures, err := meter.Int64Counter("fleetpilot.actions.failures",
		metric.WithDescription("Failed or pending requests by reason"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}
	return &Recorder{outcomes: outcomes, failures: failures}, nil
}

func (r *Recorder) RecordOutcome(action fleet.ActionName, status fleet.Status, reason string) {
	ctx := context.Background()
	r.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(action)),
		attribute.String("status", string(status)),
	))
	if reason != "" {
		r.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", string(action)),
			attribute.String("reason", reason),
		))
	}
}
