package ports

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrTokenSpent is returned by TokenRepository.Consume when the token
	// exists but is already consumed or expired.
	ErrTokenSpent = errors.New("token not redeemable")
)
