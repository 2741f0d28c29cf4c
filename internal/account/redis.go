package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	accountKeyPrefix = "account:id:"
	emailKeyPrefix   = "account:email:"
	idSeqKey         = "account:seq"
)

// RedisStore implements Store on Redis. Records are stored as JSON
// under account:id:<id> with a secondary email index under
// account:email:<email>.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a new Redis-backed account store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// GetByID implements Store.
func (s *RedisStore) GetByID(ctx context.Context, id string) (*Account, error) {
	data, err := s.client.Get(ctx, accountKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", id, err)
	}
	return &acc, nil
}

// GetByEmail implements Store.
func (s *RedisStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	id, err := s.client.Get(ctx, emailKeyPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve email %s: %w", email, err)
	}
	return s.GetByID(ctx, id)
}

// Create implements Store. SetNX on the email index guarantees
// uniqueness without a separate read.
func (s *RedisStore) Create(ctx context.Context, acc *Account) error {
	if acc.ID == "" {
		seq, err := s.client.Incr(ctx, idSeqKey).Result()
		if err != nil {
			return fmt.Errorf("allocate account id: %w", err)
		}
		acc.ID = fmt.Sprintf("%d", seq)
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}

	ok, err := s.client.SetNX(ctx, emailKeyPrefix+acc.Email, acc.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("index email %s: %w", acc.Email, err)
	}
	if !ok {
		return ErrEmailExists
	}

	return s.save(ctx, acc)
}

// UpdatePassword implements Store.
func (s *RedisStore) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	acc, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	acc.PasswordHash = passwordHash
	return s.save(ctx, acc)
}

// UpdateLastLogin implements Store.
func (s *RedisStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	acc, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	acc.LastLogin = at
	return s.save(ctx, acc)
}

// SetStatus updates an account status.
func (s *RedisStore) SetStatus(ctx context.Context, id, status string) error {
	acc, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	acc.Status = status
	return s.save(ctx, acc)
}

func (s *RedisStore) save(ctx context.Context, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", acc.ID, err)
	}
	if err := s.client.Set(ctx, accountKeyPrefix+acc.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("save account %s: %w", acc.ID, err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
