package memory

import (
	"context"
	"time"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

type TokenRepo struct {
	store *Store
}

func NewTokenRepo(store *Store) TokenRepo {
	return TokenRepo{store: store}
}

func (r TokenRepo) Insert(_ context.Context, token fleet.ConfirmationToken) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.tokens[token.Token]; exists {
		return ports.ErrConflict
	}
	r.store.tokens[token.Token] = token
	return nil
}

func (r TokenRepo) Consume(_ context.Context, token string, now time.Time) (fleet.ConfirmationToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tok, ok := r.store.tokens[token]
	if !ok {
		return fleet.ConfirmationToken{}, ports.ErrNotFound
	}
	if !tok.Redeemable(now) {
		return tok, ports.ErrTokenSpent
	}
	tok.Consumed = true
	r.store.tokens[token] = tok
	return tok, nil
}

func (r TokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for k, tok := range r.store.tokens {
		if !before.Before(tok.ExpiresAt) {
			delete(r.store.tokens, k)
			n++
		}
	}
	return n, nil
}
