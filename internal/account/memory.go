package account

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory maps. Intended for
// tests and single-node development setups.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string
	nextID  int
}

// NewMemoryStore creates a new in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
		nextID:  1,
	}
}

// GetByID implements Store.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

// GetByEmail implements Store.
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// Create implements Store. An empty ID is assigned from a sequence.
func (s *MemoryStore) Create(ctx context.Context, acc *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[acc.Email]; exists {
		return ErrEmailExists
	}

	if acc.ID == "" {
		acc.ID = strconv.Itoa(s.nextID)
		s.nextID++
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}

	cp := *acc
	s.byID[cp.ID] = &cp
	s.byEmail[cp.Email] = cp.ID
	return nil
}

// UpdatePassword implements Store.
func (s *MemoryStore) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return ErrNotFound
	}
	s.byID[id].PasswordHash = passwordHash
	return nil
}

// UpdateLastLogin implements Store.
func (s *MemoryStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	acc.LastLogin = at
	return nil
}

// SetStatus updates an account status. Used by admin tooling and tests
// to exercise soft revocation.
func (s *MemoryStore) SetStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	acc.Status = status
	return nil
}

var _ Store = (*MemoryStore)(nil)
