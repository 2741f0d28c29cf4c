package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onestopcrm/crmgate/internal/ratelimit/store"
	"github.com/onestopcrm/crmgate/internal/util"
)

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	t.Parallel()

	limiter := NewSlidingLogLimiter(store.NewMemoryStore(), Config{Requests: 2, Period: time.Minute})
	handler := Middleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	var env util.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "Too many requests. Please try again later.", env.Message)
}

func TestMiddleware_PathsAreSeparateBuckets(t *testing.T) {
	t.Parallel()

	limiter := NewSlidingLogLimiter(store.NewMemoryStore(), Config{Requests: 1, Period: time.Minute})
	handler := Middleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different path is a fresh bucket for the same client.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return nil, errors.New("store down")
}

func TestMiddleware_FailsOpenOnLimiterError(t *testing.T) {
	t.Parallel()

	handler := Middleware(failingLimiter{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNoopLimiter(t *testing.T) {
	t.Parallel()

	result, err := NoopLimiter{}.Allow(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestTokenBucketLimiter_Burst(t *testing.T) {
	t.Parallel()

	limiter := NewTokenBucketLimiter(Config{Requests: 3, Period: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "key")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	result, err := limiter.Allow(ctx, "key")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Minute, result.RetryAfter)

	// Separate keys have separate buckets.
	result, err = limiter.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
