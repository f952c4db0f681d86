package credentials

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps credentials in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Credentials
	writes  int
}

// NewMemoryStore creates a store seeded with records
func NewMemoryStore(records ...Credentials) *MemoryStore {
	s := &MemoryStore{records: make(map[string]Credentials, len(records))}
	for _, r := range records {
		s.records[r.Provider] = r
	}
	return s
}

// Get returns a copy of the record for provider
func (s *MemoryStore) Get(_ context.Context, provider string) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.records[provider]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q", ErrNotFound, provider)
	}
	return &c, nil
}

// UpdateTokens upserts the OAuth fields for provider
func (s *MemoryStore) UpdateTokens(_ context.Context, provider string, update TokenUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.records[provider]
	c.Provider = provider
	update.apply(&c)
	s.records[provider] = c
	s.writes++
	return nil
}

// Writes returns the number of UpdateTokens calls
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
