package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/onestopcrm/crmgate/internal/ratelimit/store"
)

// SlidingLogLimiter keeps an exact log of request timestamps per key
// and rejects a request when the trailing window already holds the
// configured maximum.
type SlidingLogLimiter struct {
	store    store.Store
	requests int
	period   time.Duration
	now      func() time.Time
}

// SlidingLogOption configures a SlidingLogLimiter.
type SlidingLogOption func(*SlidingLogLimiter)

// WithSlidingLogClock overrides the clock. Used in tests.
func WithSlidingLogClock(now func() time.Time) SlidingLogOption {
	return func(l *SlidingLogLimiter) {
		l.now = now
	}
}

// NewSlidingLogLimiter creates a sliding log limiter backed by the
// given timestamp store.
func NewSlidingLogLimiter(st store.Store, cfg Config, opts ...SlidingLogOption) *SlidingLogLimiter {
	if cfg.Requests <= 0 {
		cfg.Requests = DefaultConfig().Requests
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultConfig().Period
	}

	l := &SlidingLogLimiter{
		store:    st,
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
func (l *SlidingLogLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := l.now().Unix()
	cutoff := now - int64(l.period.Seconds())

	timestamps, err := l.store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("rate limit: load %q: %w", key, err)
	}

	// Drop entries outside the trailing window. Timestamps are
	// appended in order, so the first in-window entry marks the
	// start of the live log.
	live := timestamps[:0]
	for _, ts := range timestamps {
		if ts > cutoff {
			live = append(live, ts)
		}
	}

	if len(live) >= l.requests {
		if err := l.store.Save(ctx, key, live); err != nil {
			return nil, fmt.Errorf("rate limit: save %q: %w", key, err)
		}
		return &Result{
			Allowed:    false,
			Limit:      l.requests,
			Remaining:  0,
			RetryAfter: l.period,
		}, nil
	}

	live = append(live, now)
	if err := l.store.Save(ctx, key, live); err != nil {
		return nil, fmt.Errorf("rate limit: save %q: %w", key, err)
	}

	return &Result{
		Allowed:   true,
		Limit:     l.requests,
		Remaining: l.requests - len(live),
	}, nil
}

var _ Limiter = (*SlidingLogLimiter)(nil)
