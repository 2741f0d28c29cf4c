package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter keeps a token bucket per key. Buckets refill at
// Requests/Period and allow bursts up to Requests. Idle buckets are
// evicted after not being touched for three periods.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucketEntry
	requests int
	period   time.Duration
	now      func() time.Time
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketOption configures a TokenBucketLimiter.
type TokenBucketOption func(*TokenBucketLimiter)

// WithTokenBucketClock overrides the clock. Used in tests.
func WithTokenBucketClock(now func() time.Time) TokenBucketOption {
	return func(l *TokenBucketLimiter) {
		l.now = now
	}
}

// NewTokenBucketLimiter creates a token bucket limiter.
func NewTokenBucketLimiter(cfg Config, opts ...TokenBucketOption) *TokenBucketLimiter {
	if cfg.Requests <= 0 {
		cfg.Requests = DefaultConfig().Requests
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultConfig().Period
	}

	l := &TokenBucketLimiter{
		buckets:  make(map[string]*bucketEntry),
		requests: cfg.Requests,
		period:   cfg.Period,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow implements Limiter.
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	l.mu.Lock()
	entry, ok := l.buckets[key]
	if !ok {
		limit := rate.Limit(float64(l.requests) / l.period.Seconds())
		entry = &bucketEntry{limiter: rate.NewLimiter(limit, l.requests)}
		l.buckets[key] = entry
	}
	entry.lastSeen = l.now()
	l.evictIdleLocked()
	l.mu.Unlock()

	if !entry.limiter.Allow() {
		return &Result{
			Allowed:    false,
			Limit:      l.requests,
			Remaining:  0,
			RetryAfter: l.period,
		}, nil
	}

	return &Result{
		Allowed:   true,
		Limit:     l.requests,
		Remaining: int(entry.limiter.Tokens()),
	}, nil
}

func (l *TokenBucketLimiter) evictIdleLocked() {
	cutoff := l.now().Add(-3 * l.period)
	for key, entry := range l.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

var _ Limiter = (*TokenBucketLimiter)(nil)
