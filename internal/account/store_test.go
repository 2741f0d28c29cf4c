package account

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(email string) *Account {
	return &Account{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         RoleTeamMember,
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	acc := testAccount("a@example.com")
	require.NoError(t, store.Create(ctx, acc))
	require.NotEmpty(t, acc.ID)

	byID, err := store.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", byID.Email)

	byEmail, err := store.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byEmail.ID)
}

func TestMemoryStore_DuplicateEmail(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testAccount("dup@example.com")))
	err := store.Create(ctx, testAccount("dup@example.com"))
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestMemoryStore_NotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByEmail(ctx, "none@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.UpdatePassword(ctx, "none@example.com", "h"), ErrNotFound)
	assert.ErrorIs(t, store.UpdateLastLogin(ctx, "999", time.Now()), ErrNotFound)
}

func TestMemoryStore_UpdatePassword(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	acc := testAccount("p@example.com")
	require.NoError(t, store.Create(ctx, acc))
	require.NoError(t, store.UpdatePassword(ctx, "p@example.com", "new-hash"))

	got, err := store.GetByEmail(ctx, "p@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
}

func TestMemoryStore_ReadsReturnCopies(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	acc := testAccount("c@example.com")
	require.NoError(t, store.Create(ctx, acc))

	got, err := store.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	got.Status = StatusSuspended

	again, err := store.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, again.Status)
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestRedisStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	store := newRedisStore(t)
	ctx := context.Background()

	acc := testAccount("r@example.com")
	require.NoError(t, store.Create(ctx, acc))
	require.NotEmpty(t, acc.ID)

	byID, err := store.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "r@example.com", byID.Email)
	assert.Equal(t, RoleTeamMember, byID.Role)

	byEmail, err := store.GetByEmail(ctx, "r@example.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byEmail.ID)
}

func TestRedisStore_DuplicateEmail(t *testing.T) {
	t.Parallel()

	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testAccount("dup@example.com")))
	err := store.Create(ctx, testAccount("dup@example.com"))
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRedisStore_UpdatePasswordAndStatus(t *testing.T) {
	t.Parallel()

	store := newRedisStore(t)
	ctx := context.Background()

	acc := testAccount("u@example.com")
	require.NoError(t, store.Create(ctx, acc))

	require.NoError(t, store.UpdatePassword(ctx, "u@example.com", "new-hash"))
	require.NoError(t, store.SetStatus(ctx, acc.ID, StatusSuspended))

	got, err := store.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Equal(t, StatusSuspended, got.Status)
	assert.False(t, got.IsActive())
}

func TestRedisStore_NotFound(t *testing.T) {
	t.Parallel()

	store := newRedisStore(t)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetByEmail(ctx, "none@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
