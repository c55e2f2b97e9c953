package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	bedrockintent "fleetpilot/internal/adapter/intent/bedrock"
	"fleetpilot/internal/adapter/intent/rules"
	"fleetpilot/internal/adapter/notify/logsink"
	snsnotify "fleetpilot/internal/adapter/notify/sns"
	awsprovider "fleetpilot/internal/adapter/provider/aws"
	"fleetpilot/internal/adapter/provider/mock"
	"fleetpilot/internal/app/confirm"
	"fleetpilot/internal/app/control"
	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/config"
)

func NewProvider(ctx context.Context, cfg config.Config) (ports.Provider, error) {
	switch cfg.Provider {
	case config.ProviderAWS:
		return awsprovider.New(ctx, awsprovider.Config{Region: cfg.AWSRegion, Endpoint: cfg.AWSEndpoint})
	case config.ProviderMock:
		hlog.CtxWarnf(ctx, "using the in-memory mock provider; no real instances are touched")
		return mock.NewProvider(mock.DemoSeed(time.Now().UTC()), nil), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func NewResolver(ctx context.Context, cfg config.Config) (ports.IntentResolver, error) {
	switch cfg.Resolver {
	case config.ResolverBedrock:
		return bedrockintent.New(ctx, cfg.BedrockRegion, cfg.BedrockModelID)
	case config.ResolverRules:
		return rules.New(), nil
	default:
		return nil, fmt.Errorf("unknown resolver %q", cfg.Resolver)
	}
}

// NewNotifier publishes to SNS when an approval topic is configured and logs otherwise.
func NewNotifier(ctx context.Context, cfg config.Config) (ports.Notifier, error) {
	if cfg.ApprovalTopic == "" {
		return logsink.New(), nil
	}
	return snsnotify.New(ctx, cfg.AWSRegion)
}

// NewControl wires the execution controller from configuration and adapters.
func NewControl(cfg config.Config, stores *Stores, provider ports.Provider, resolver ports.IntentResolver, notifier ports.Notifier, metrics ports.ActionMetrics) control.UseCase {
	approvals := cfg.ApprovalTopic
	if approvals == "" {
		approvals = logsink.Address
	}
	return control.UseCase{
		Resolver:  resolver,
		Provider:  provider,
		Tokens:    confirm.Service{Tokens: stores.Tokens, TTL: cfg.TokenTTL},
		Audit:     stores.Audit,
		TxManager: stores.TxManager,
		Notifier:  notifier,
		Metrics:   metrics,

		MaxHourlyCost:   cfg.MaxHourlyCost,
		Prices:          cfg.Prices,
		BackupRecency:   cfg.BackupRecency,
		AuditRetention:  cfg.AuditRetention,
		HistorySize:     cfg.HistorySize,
		ApprovalAddress: approvals,
		Timeouts: control.Timeouts{
			Read:        cfg.ReadTimeout,
			StateChange: cfg.StateTimeout,
			Default:     cfg.DefaultTimeout,
			AuditWrite:  cfg.AuditWriteLimit,
		},
	}
}

func ParseLogLevel(raw string) hlog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return hlog.LevelTrace
	case "debug":
		return hlog.LevelDebug
	case "warn", "warning":
		return hlog.LevelWarn
	case "error":
		return hlog.LevelError
	default:
		return hlog.LevelInfo
	}
}
