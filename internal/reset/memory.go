package reset

import (
	"context"
	"sync"
)

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates a new in-memory reset token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Token] = rec
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, token string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, token)
	return nil
}

var _ Store = (*MemoryStore)(nil)
