package bootstrap

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"fleetpilot/internal/adapter/metrics/fanout"
	metricsinmem "fleetpilot/internal/adapter/metrics/inmemory"
	"fleetpilot/internal/adapter/metrics/otelmetric"
	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/config"
)

const serviceName = "fleetpilot"

// Metrics holds the in-process KPI counters and, when an OTLP endpoint is
// configured, the meter provider that exports the same outcomes.
type Metrics struct {
	KPI      *metricsinmem.Recorder
	Recorder ports.ActionMetrics

	provider *sdkmetric.MeterProvider
}

func NewMetrics(ctx context.Context, cfg config.Config) (*Metrics, error) {
	kpi := metricsinmem.NewRecorder()
	m := &Metrics{KPI: kpi, Recorder: kpi}
	if cfg.OTLPEndpoint == "" {
		return m, nil
	}

	reader, err := otelmetric.NewOTLPReader(ctx, otelmetric.ExportConfig{
		Endpoint: cfg.OTLPEndpoint,
		Insecure: cfg.OTLPInsecure,
		Interval: cfg.MetricsInterval,
	})
	if err != nil {
		return nil, err
	}
	m.provider = otelmetric.NewMeterProvider(reader, serviceName)
	exported, err := otelmetric.NewRecorder(m.provider.Meter(otelmetric.Scope))
	if err != nil {
		_ = m.provider.Shutdown(ctx)
		return nil, err
	}
	m.Recorder = fanout.Recorder{kpi, exported}
	return m, nil
}

// Shutdown flushes pending exports. It is a no-op without an exporter.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
