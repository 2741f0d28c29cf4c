package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionID(t *testing.T) {
	t.Parallel()

	a, err := NewSessionID()
	require.NoError(t, err)
	b, err := NewSessionID()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sid", "token", time.Minute))

	token, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "token", token)

	require.NoError(t, store.Delete(ctx, "sid"))
	_, err = store.Get(ctx, "sid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sid", "token", time.Minute))

	_, err := store.Get(ctx, "sid")
	require.NoError(t, err)

	now = now.Add(61 * time.Second)
	_, err = store.Get(ctx, "sid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sid", "token", time.Minute))

	token, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "token", token)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "sid")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "sid2", "token2", time.Minute))
	require.NoError(t, store.Delete(ctx, "sid2"))
	_, err = store.Get(ctx, "sid2")
	assert.ErrorIs(t, err, ErrNotFound)
}
