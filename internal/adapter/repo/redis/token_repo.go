// Package redisrepo stores confirmation tokens as redis hashes so several
// controller processes can share one redemption point.
package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

const (
	keyPrefix = "fleetpilot:token:"
	// DefaultGrace keeps spent and expired tokens readable for a while so a
	// late redemption reports expired or consumed instead of not found.
	DefaultGrace = time.Hour
)

// KEYS[1] = token key
// ARGV = expire-at ms, then field/value pairs
var insertScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
    return 0
end
local fields = {}
for i = 2, #ARGV do
    fields[#fields + 1] = ARGV[i]
end
redis.call("HSET", KEYS[1], unpack(fields))
redis.call("PEXPIREAT", KEYS[1], ARGV[1])
return 1
`)

// KEYS[1] = token key
// ARGV[1] = now, unix ms
// Returns {code, fields}: 0 not found, 1 consumed by this call, 2 spent.
var consumeScript = redis.NewScript(`
local fields = redis.call("HGETALL", KEYS[1])
if #fields == 0 then
    return {0, fields}
end
local consumed = redis.call("HGET", KEYS[1], "consumed")
local expires = tonumber(redis.call("HGET", KEYS[1], "expires_at_ms"))
if consumed == "1" or expires <= tonumber(ARGV[1]) then
    return {2, fields}
end
redis.call("HSET", KEYS[1], "consumed", "1", "consumed_at_ms", ARGV[1])
fields = redis.call("HGETALL", KEYS[1])
return {1, fields}
`)

// KEYS[1] = token key
// ARGV[1] = before, unix ms
var deleteIfExpiredScript = redis.NewScript(`
local expires = tonumber(redis.call("HGET", KEYS[1], "expires_at_ms"))
if expires and expires <= tonumber(ARGV[1]) then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

type TokenRepo struct {
	client redis.UniversalClient
	grace  time.Duration
}

func NewTokenRepo(client redis.UniversalClient, grace time.Duration) TokenRepo {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return TokenRepo{client: client, grace: grace}
}

// NewClient builds a client from the server settings.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func key(token string) string {
	return keyPrefix + token
}

func (r TokenRepo) Insert(ctx context.Context, token fleet.ConfirmationToken) error {
	expireAt := token.ExpiresAt.Add(r.grace).UnixMilli()
	consumed := "0"
	if token.Consumed {
		consumed = "1"
	}
	args := []any{
		expireAt,
		"action", string(token.Action),
		"parameters", token.Parameters,
		"operator_email", token.OperatorEmail,
		"created_at_ms", token.CreatedAt.UnixMilli(),
		"expires_at_ms", token.ExpiresAt.UnixMilli(),
		"consumed", consumed,
	}
	n, err := insertScript.Run(ctx, r.client, []string{key(token.Token)}, args...).Int64()
	if err != nil {
		return fmt.Errorf("redis insert token: %w", err)
	}
	if n == 0 {
		return ports.ErrConflict
	}
	return nil
}

func (r TokenRepo) Consume(ctx context.Context, token string, now time.Time) (fleet.ConfirmationToken, error) {
	res, err := consumeScript.Run(ctx, r.client, []string{key(token)}, now.UnixMilli()).Slice()
	if err != nil {
		return fleet.ConfirmationToken{}, fmt.Errorf("redis consume token: %w", err)
	}
	if len(res) != 2 {
		return fleet.ConfirmationToken{}, errors.New("redis consume token: unexpected script reply")
	}
	code, _ := res[0].(int64)
	if code == 0 {
		return fleet.ConfirmationToken{}, ports.ErrNotFound
	}
	pairs, _ := res[1].([]any)
	tok, err := decodeToken(token, pairs)
	if err != nil {
		return fleet.ConfirmationToken{}, err
	}
	if code != 1 {
		return tok, ports.ErrTokenSpent
	}
	return tok, nil
}

// DeleteExpired scans the token keyspace. Keys also expire on their own
// through PEXPIREAT.
func (r TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := deleteIfExpiredScript.Run(ctx, r.client, []string{iter.Val()}, before.UnixMilli()).Int64()
		if err != nil {
			return deleted, fmt.Errorf("redis delete expired token: %w", err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan tokens: %w", err)
	}
	return deleted, nil
}

func decodeToken(token string, pairs []any) (fleet.ConfirmationToken, error) {
	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, _ := pairs[i].(string)
		v, _ := pairs[i+1].(string)
		fields[k] = v
	}
	created, err := strconv.ParseInt(fields["created_at_ms"], 10, 64)
	if err != nil {
		return fleet.ConfirmationToken{}, fmt.Errorf("decode token %s: created_at_ms: %w", token, err)
	}
	expires, err := strconv.ParseInt(fields["expires_at_ms"], 10, 64)
	if err != nil {
		return fleet.ConfirmationToken{}, fmt.Errorf("decode token %s: expires_at_ms: %w", token, err)
	}
	return fleet.ConfirmationToken{
		Token:         token,
		Action:        fleet.ActionName(fields["action"]),
		Parameters:    fields["parameters"],
		OperatorEmail: fields["operator_email"],
		CreatedAt:     time.UnixMilli(created).UTC(),
		ExpiresAt:     time.UnixMilli(expires).UTC(),
		Consumed:      fields["consumed"] == "1",
	}, nil
}
