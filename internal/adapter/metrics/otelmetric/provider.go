package otelmetric

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const DefaultExportInterval = 15 * time.Second

// ExportConfig points the periodic reader at an OTLP gRPC collector.
type ExportConfig struct {
	Endpoint string
	Insecure bool
	Interval time.Duration
}

// NewOTLPReader returns a reader that pushes every Interval. The exporter
// dials lazily, so an unreachable collector does not fail startup.
func NewOTLPReader(ctx context.Context, cfg ExportConfig) (sdkmetric.Reader, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultExportInterval
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

// NewMeterProvider builds an SDK provider reading through reader and
// installs it as the global meter provider.
func NewMeterProvider(reader sdkmetric.Reader, serviceName string) *sdkmetric.MeterProvider {
	res := resource.NewSchemaless(semconv.ServiceName(serviceName))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)
	return mp
}
