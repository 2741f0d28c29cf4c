package store

import (
	"context"
	"sync"
)

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]int64
}

// NewMemoryStore creates a new in-memory timestamp store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]int64)}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, key string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[key]
	timestamps := make([]int64, len(stored))
	copy(timestamps, stored)
	return timestamps, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, key string, timestamps []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(timestamps) == 0 {
		delete(s.data, key)
		return nil
	}

	stored := make([]int64, len(timestamps))
	copy(stored, timestamps)
	s.data[key] = stored
	return nil
}

var _ Store = (*MemoryStore)(nil)
