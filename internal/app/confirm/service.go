package confirm

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fleetpilot/internal/app/ports"
	"fleetpilot/internal/domain/fleet"
)

const (
	DefaultTTL = 5 * time.Minute
	// tokenBytes gives 80 bits of entropy, 16 base32 characters.
	tokenBytes  = 10
	maxAttempts = 3
)

var (
	ErrTokenNotFound = errors.New("confirmation token not found")
	ErrTokenExpired  = errors.New("confirmation token expired")
	ErrTokenConsumed = errors.New("confirmation token already consumed")
	ErrInvalidIssue  = errors.New("invalid confirmation request")
)

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type Service struct {
	Tokens ports.TokenRepository
	TTL    time.Duration
	Now    func() time.Time
	Rand   io.Reader
}

// Issue creates and stores a single-use token for a destructive action.
func (s Service) Issue(ctx context.Context, action fleet.ActionName, params map[string]any, operator string) (fleet.ConfirmationToken, error) {
	if s.Tokens == nil || action == "" {
		return fleet.ConfirmationToken{}, ErrInvalidIssue
	}
	encoded, err := encodeParams(params)
	if err != nil {
		return fleet.ConfirmationToken{}, err
	}
	now := s.now()
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	for i := 0; i < maxAttempts; i++ {
		value, err := s.newToken()
		if err != nil {
			return fleet.ConfirmationToken{}, err
		}
		tok := fleet.ConfirmationToken{
			Token:         value,
			Action:        action,
			Parameters:    encoded,
			OperatorEmail: operator,
			CreatedAt:     now,
			ExpiresAt:     now.Add(ttl),
		}
		err = s.Tokens.Insert(ctx, tok)
		if errors.Is(err, ports.ErrConflict) {
			continue
		}
		if err != nil {
			return fleet.ConfirmationToken{}, err
		}
		return tok, nil
	}
	return fleet.ConfirmationToken{}, fmt.Errorf("issue confirmation token: %w", ports.ErrConflict)
}

// Redeem consumes the token. It succeeds at most once per token; the
// returned params are the ones bound at issue time.
func (s Service) Redeem(ctx context.Context, token string) (fleet.ConfirmationToken, map[string]any, error) {
	token = NormalizeToken(token)
	if token == "" || s.Tokens == nil {
		return fleet.ConfirmationToken{}, nil, ErrTokenNotFound
	}
	tok, err := s.Tokens.Consume(ctx, token, s.now())
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrNotFound):
		return fleet.ConfirmationToken{}, nil, ErrTokenNotFound
	case errors.Is(err, ports.ErrTokenSpent):
		if tok.Consumed {
			return tok, nil, ErrTokenConsumed
		}
		return tok, nil, ErrTokenExpired
	default:
		return fleet.ConfirmationToken{}, nil, err
	}

	params := map[string]any{}
	if tok.Parameters != "" {
		if err := json.Unmarshal([]byte(tok.Parameters), &params); err != nil {
			return tok, nil, fmt.Errorf("decode token parameters: %w", err)
		}
	}
	return tok, params, nil
}

func NormalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// CorrelationID links the pending and terminal audit records of one
// confirmed action without exposing the token itself.
func CorrelationID(token string) string {
	sum := sha256.Sum256([]byte(NormalizeToken(token)))
	return "cfm_" + hex.EncodeToString(sum[:12])
}

func (s Service) newToken() (string, error) {
	r := s.Rand
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return tokenEncoding.EncodeToString(b), nil
}

func (s Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func encodeParams(params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode token parameters: %w", err)
	}
	return string(b), nil
}
