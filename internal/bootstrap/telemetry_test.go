package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"fleetpilot/internal/adapter/metrics/fanout"
	"fleetpilot/internal/domain/fleet"
)

func TestNewMetrics_LocalOnlyWithoutEndpoint(t *testing.T) {
	m, err := NewMetrics(context.Background(), loadConfig(t))
	require.NoError(t, err)
	assert.Same(t, m.KPI, m.Recorder)
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestNewMetrics_InstallsExportingProvider(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })
	t.Setenv("FLEETPILOT_OTLP_ENDPOINT", "127.0.0.1:1")
	t.Setenv("FLEETPILOT_OTLP_INSECURE", "true")

	m, err := NewMetrics(context.Background(), loadConfig(t))
	require.NoError(t, err)

	assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())
	recorders, ok := m.Recorder.(fanout.Recorder)
	require.True(t, ok)
	require.Len(t, recorders, 2)
	assert.Same(t, m.KPI, recorders[0])

	m.Recorder.RecordOutcome(fleet.ActionStopInstance, fleet.StatusSuccess, "")
	assert.Equal(t, uint64(1), m.KPI.Snapshot().ActionTotal)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	// The collector is unreachable, so only the call itself is exercised.
	_ = m.Shutdown(ctx)
}
