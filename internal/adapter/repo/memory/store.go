package memory

import (
	"sync"

	"fleetpilot/internal/domain/fleet"
)

// Store keeps the audit ledger and token table in process memory. It backs
// local mode and tests; nothing survives a restart.
type Store struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	audit  []fleet.AuditRecord
	tokens map[string]fleet.ConfirmationToken
}

func NewStore() *Store {
	return &Store{
		tokens: make(map[string]fleet.ConfirmationToken),
	}
}

func (s *Store) AuditLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audit)
}

func (s *Store) TokenLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
