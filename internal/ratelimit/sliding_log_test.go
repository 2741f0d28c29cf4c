package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onestopcrm/crmgate/internal/ratelimit/store"
)

func TestSlidingLogLimiter_AllowsUpToLimit(t *testing.T) {
	t.Parallel()

	limiter := NewSlidingLogLimiter(store.NewMemoryStore(), Config{Requests: 3, Period: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "key")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 3, result.Limit)
		assert.Equal(t, 2-i, result.Remaining)
	}

	result, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, time.Minute, result.RetryAfter)
}

func TestSlidingLogLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewSlidingLogLimiter(store.NewMemoryStore(),
		Config{Requests: 2, Period: time.Minute},
		WithSlidingLogClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Allow(ctx, "key")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// Half a window later the old entries are still live.
	now = now.Add(30 * time.Second)
	result, err = limiter.Allow(ctx, "key")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	// Past the window the log is pruned and requests flow again.
	now = now.Add(31 * time.Second)
	result, err = limiter.Allow(ctx, "key")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestSlidingLogLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	limiter := NewSlidingLogLimiter(store.NewMemoryStore(), Config{Requests: 1, Period: time.Minute})
	ctx := context.Background()

	result, err := limiter.Allow(ctx, "a")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	result, err = limiter.Allow(ctx, "b")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestSlidingLogLimiter_DefaultsApplied(t *testing.T) {
	t.Parallel()

	limiter := NewSlidingLogLimiter(store.NewMemoryStore(), Config{})

	assert.Equal(t, 100, limiter.requests)
	assert.Equal(t, time.Minute, limiter.period)
}

func TestKey_Derivation(t *testing.T) {
	t.Parallel()

	k1 := Key("10.0.0.1", "/api/v1/clients")
	k2 := Key("10.0.0.1", "/api/v1/clients")
	k3 := Key("10.0.0.2", "/api/v1/clients")
	k4 := Key("10.0.0.1", "/api/v1/deals")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k1, k4)
	assert.Len(t, k1, 64)
}
