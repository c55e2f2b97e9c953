package otelmetric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"fleetpilot/internal/domain/fleet"
)

func restoreGlobalMeterProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })
}

func TestNewMeterProvider_InstallsGlobalAndExportsResource(t *testing.T) {
	restoreGlobalMeterProvider(t)
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProvider(reader, "fleetpilot")
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	assert.Same(t, mp, otel.GetMeterProvider())

	rec, err := NewRecorder(otel.Meter(Scope))
	require.NoError(t, err)
	rec.RecordOutcome(fleet.ActionStopInstance, fleet.StatusSuccess, "")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	name, ok := rm.Resource.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "fleetpilot", name.AsString())
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, Scope, rm.ScopeMetrics[0].Scope.Name)
}

func TestNewOTLPReader_DoesNotDialOnCreate(t *testing.T) {
	reader, err := NewOTLPReader(context.Background(), ExportConfig{Endpoint: "127.0.0.1:1", Insecure: true})
	require.NoError(t, err)
	require.NotNil(t, reader)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = reader.Shutdown(ctx)
}
