package store

import (
	"context"
	"sync"
)

// MemoryTokenStore is a process-local TokenStore used when no shared store
// is configured. Tokens written here are invisible to other instances, so
// Shared reports false and the sync loop stays dormant.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryTokenStore creates an empty in-process token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]string),
	}
}

func (s *MemoryTokenStore) GetToken(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[key], nil
}

func (s *MemoryTokenStore) SetToken(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = value
	return nil
}

func (s *MemoryTokenStore) Shared() bool {
	return false
}

func (s *MemoryTokenStore) Ping(_ context.Context) error {
	return nil
}

func (s *MemoryTokenStore) Close() error {
	return nil
}
