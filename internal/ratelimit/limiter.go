// Package ratelimit provides the per-client request rate limiting of
// the pipeline. The primary algorithm is a sliding log of request
// timestamps keyed by hash(clientAddress|path); a token bucket
// variant is available for deployments that prefer smoothed limits
// over exact windows.
package ratelimit

import (
	"context"
	"time"
)

// Limiter is the interface for rate limiting.
type Limiter interface {
	// Allow checks if a request is allowed for the given key.
	Allow(ctx context.Context, key string) (*Result, error)
}

// Result is the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Limit is the maximum number of requests in the window.
	Limit int

	// Remaining is the number of requests left in the window.
	Remaining int

	// RetryAfter is how long the caller should wait when rejected.
	RetryAfter time.Duration
}

// Algorithm selects the rate limiting algorithm.
type Algorithm string

const (
	// AlgorithmSlidingLog counts exact request timestamps in a
	// trailing window.
	AlgorithmSlidingLog Algorithm = "sliding_log"

	// AlgorithmTokenBucket refills permits continuously.
	AlgorithmTokenBucket Algorithm = "token_bucket"
)

// Config holds rate limiter configuration.
type Config struct {
	// Algorithm is the limiting algorithm. Defaults to sliding_log.
	Algorithm Algorithm

	// Requests is the maximum number of requests per window.
	Requests int

	// Period is the window length.
	Period time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmSlidingLog,
		Requests:  100,
		Period:    time.Minute,
	}
}

// NoopLimiter always allows requests.
type NoopLimiter struct{}

// Allow implements Limiter.
func (NoopLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return &Result{Allowed: true}, nil
}
