package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "fleetpilot/internal/adapter/http"
	"fleetpilot/internal/app/audit"
	"fleetpilot/internal/app/retention"
	"fleetpilot/internal/bootstrap"
	"fleetpilot/internal/config"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		hlog.Fatalf("load config: %v", err)
	}
	hlog.SetLevel(bootstrap.ParseLogLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		hlog.Fatalf("open stores: %v", err)
	}
	defer stores.Close()

	metrics, err := bootstrap.NewMetrics(ctx, cfg)
	if err != nil {
		hlog.Fatalf("init metrics: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(flushCtx); err != nil {
			hlog.Warnf("flush metrics: %v", err)
		}
	}()

	h, err := buildHandler(ctx, cfg, stores, metrics)
	if err != nil {
		hlog.Fatalf("build handler: %v", err)
	}

	reaper := retention.Reaper{Tokens: stores.Tokens, Audit: stores.Audit, Interval: cfg.ReaperInterval}
	go reaper.Run(ctx)

	s := server.Default(server.WithHostPorts(cfg.HTTPAddr))
	h.RegisterRoutes(s)

	hlog.Infof("fleetpilot listening on %s (store=%s provider=%s resolver=%s)", cfg.HTTPAddr, stores.Backend, cfg.Provider, cfg.Resolver)
	s.Spin()
}

func buildHandler(ctx context.Context, cfg config.Config, stores *bootstrap.Stores, metrics *bootstrap.Metrics) (httpadapter.Handler, error) {
	provider, err := bootstrap.NewProvider(ctx, cfg)
	if err != nil {
		return httpadapter.Handler{}, err
	}
	resolver, err := bootstrap.NewResolver(ctx, cfg)
	if err != nil {
		return httpadapter.Handler{}, err
	}
	notifier, err := bootstrap.NewNotifier(ctx, cfg)
	if err != nil {
		return httpadapter.Handler{}, err
	}

	return httpadapter.Handler{
		ControlUC: bootstrap.NewControl(cfg, stores, provider, resolver, notifier, metrics.Recorder),
		AuditUC:   audit.UseCase{Records: stores.Audit},
		Limiter:   httpadapter.NewOperatorLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		KPI:       metrics.KPI,

		AllowedOrigins: cfg.CORSOrigins,
	}, nil
}
