package main

import (
	"context"
	"testing"

	"fleetpilot/internal/bootstrap"
	"fleetpilot/internal/config"
)

func TestBuildHandler_LocalDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	stores, err := bootstrap.OpenStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open stores: %v", err)
	}
	defer stores.Close()

	metrics, err := bootstrap.NewMetrics(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	h, err := buildHandler(context.Background(), cfg, stores, metrics)
	if err != nil {
		t.Fatalf("buildHandler error: %v", err)
	}
	if h.Limiter == nil {
		t.Fatalf("expected rate limiter with default config")
	}
	if h.KPI == nil || h.KPI != metrics.KPI {
		t.Fatalf("expected kpi provider from metrics")
	}
	if h.ControlUC.Provider == nil || h.ControlUC.Resolver == nil || h.ControlUC.Notifier == nil {
		t.Fatalf("controller is missing collaborators: %+v", h.ControlUC)
	}
}

func TestBuildHandler_RateLimitDisabled(t *testing.T) {
	t.Setenv("FLEETPILOT_RATE_LIMIT_RPS", "0")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	stores, err := bootstrap.OpenStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open stores: %v", err)
	}
	defer stores.Close()

	metrics, err := bootstrap.NewMetrics(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	h, err := buildHandler(context.Background(), cfg, stores, metrics)
	if err != nil {
		t.Fatalf("buildHandler error: %v", err)
	}
	if h.Limiter != nil {
		t.Fatalf("expected no limiter when rps is zero")
	}
}
