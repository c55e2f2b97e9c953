package redisrepo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) (TokenRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(t0)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenRepo(client, time.Hour), mr
}

func token(value string) fleet.ConfirmationToken {
	return fleet.ConfirmationToken{
		Token:         value,
		Action:        fleet.ActionDeleteVolume,
		Parameters:    `{"volume_id":"vol-1"}`,
		OperatorEmail: "a@b.com",
		CreatedAt:     t0,
		ExpiresAt:     t0.Add(5 * time.Minute),
	}
}

func TestTokenRepo_InsertStoresHashWithExpiry(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, token("ABC")))

	assert.Equal(t, "delete_volume", mr.HGet("fleetpilot:token:ABC", "action"))
	assert.Equal(t, "0", mr.HGet("fleetpilot:token:ABC", "consumed"))
	assert.Greater(t, mr.TTL("fleetpilot:token:ABC"), time.Duration(0))

	assert.ErrorIs(t, repo.Insert(ctx, token("ABC")), ports.ErrConflict)
}

func TestTokenRepo_ConsumeExactlyOnce(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, token("ONCE")))

	tok, err := repo.Consume(ctx, "ONCE", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, tok.Consumed)
	assert.Equal(t, `{"volume_id":"vol-1"}`, tok.Parameters)
	assert.True(t, tok.ExpiresAt.Equal(t0.Add(5*time.Minute)))

	tok, err = repo.Consume(ctx, "ONCE", t0.Add(time.Minute))
	assert.ErrorIs(t, err, ports.ErrTokenSpent)
	assert.True(t, tok.Consumed)
}

func TestTokenRepo_ConsumeExpiredAndMissing(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, token("LATE")))

	tok, err := repo.Consume(ctx, "LATE", t0.Add(5*time.Minute))
	assert.ErrorIs(t, err, ports.ErrTokenSpent)
	assert.False(t, tok.Consumed)

	_, err = repo.Consume(ctx, "NOPE", t0)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestTokenRepo_ConcurrentConsume(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, token("RACE")))

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Consume(ctx, "RACE", t0.Add(time.Second)); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestTokenRepo_DeleteExpired(t *testing.T) {
	repo, mr := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, token("OLD")))
	fresh := token("NEW")
	fresh.ExpiresAt = t0.Add(time.Hour)
	require.NoError(t, repo.Insert(ctx, fresh))

	n, err := repo.DeleteExpired(ctx, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, mr.Exists("fleetpilot:token:OLD"))
	assert.True(t, mr.Exists("fleetpilot:token:NEW"))
}
