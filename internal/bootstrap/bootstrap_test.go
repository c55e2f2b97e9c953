package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetpilot/internal/adapter/intent/rules"
	"fleetpilot/internal/adapter/notify/logsink"
	"fleetpilot/internal/adapter/provider/mock"
	redisrepo "fleetpilot/internal/adapter/repo/redis"
	"fleetpilot/internal/app/control"
	"fleetpilot/internal/config"
	"fleetpilot/internal/domain/fleet"
)

func loadConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestOpenStores_MemoryByDefault(t *testing.T) {
	stores, err := OpenStores(context.Background(), loadConfig(t))
	require.NoError(t, err)
	defer stores.Close()
	assert.Equal(t, "memory", stores.Backend)
}

func TestOpenStores_SQLiteEndToEnd(t *testing.T) {
	t.Setenv("FLEETPILOT_DB_DSN", "sqlite:"+filepath.Join(t.TempDir(), "fleet.db"))
	cfg := loadConfig(t)
	ctx := context.Background()

	stores, err := OpenStores(ctx, cfg)
	require.NoError(t, err)
	defer stores.Close()
	assert.Equal(t, "sqlite", stores.Backend)

	provider, err := NewProvider(ctx, cfg)
	require.NoError(t, err)
	resolver, err := NewResolver(ctx, cfg)
	require.NoError(t, err)
	notifier, err := NewNotifier(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &mock.Provider{}, provider)
	assert.IsType(t, &rules.Resolver{}, resolver)
	assert.IsType(t, &logsink.Notifier{}, notifier)

	uc := NewControl(cfg, stores, provider, resolver, notifier, nil)
	resp, err := uc.Handle(ctx, control.Request{OperatorEmail: "ops@example.com", Query: "terminate i-0a1b2c3d4e5f60001"})
	require.NoError(t, err)
	require.Equal(t, fleet.StatusPending, resp.Status)

	resp, err = uc.Handle(ctx, control.Request{OperatorEmail: "ops@example.com", ConfirmationToken: resp.ConfirmationToken})
	require.NoError(t, err)
	assert.Equal(t, fleet.StatusSuccess, resp.Status)

	records, err := stores.Audit.ListByOperator(ctx, "ops@example.com", 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Eventually(t, func() bool { return len(notifier.(*logsink.Notifier).Sent()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestOpenStores_RedisTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("FLEETPILOT_REDIS_ADDR", mr.Addr())

	stores, err := OpenStores(context.Background(), loadConfig(t))
	require.NoError(t, err)
	defer stores.Close()
	assert.IsType(t, redisrepo.TokenRepo{}, stores.Tokens)
}

func TestOpenStores_RedisUnreachable(t *testing.T) {
	t.Setenv("FLEETPILOT_REDIS_ADDR", "127.0.0.1:1")
	_, err := OpenStores(context.Background(), loadConfig(t))
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, hlog.LevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, hlog.LevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, hlog.LevelInfo, ParseLogLevel(""))
}
