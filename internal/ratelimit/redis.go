package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// allowScript prunes expired entries, checks the cap, and records the
// request as one atomic step on the Redis side, so concurrent callers
// cannot all pass the count check before anyone writes.
//
// KEYS[1] sorted-set key
// ARGV[1] cutoff score, entries at or below it are expired
// ARGV[2] request cap
// ARGV[3] score for the new entry
// ARGV[4] member for the new entry
// ARGV[5] key TTL in milliseconds
//
// Returns {allowed, live count}.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '0', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[2]) then
	return {0, count}
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {1, count + 1}
`)

// RedisLimiter implements a sliding log on a Redis sorted set. The
// prune, count, and append run in a single script, so the cap is
// enforced exactly even across multiple gateway instances.
type RedisLimiter struct {
	client   redis.UniversalClient
	requests int
	period   time.Duration
	now      func() time.Time
}

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithRedisClock overrides the clock. Used in tests.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) {
		l.now = now
	}
}

// NewRedisLimiter creates a Redis-backed sliding log limiter.
func NewRedisLimiter(client redis.UniversalClient, cfg Config, opts ...RedisOption) *RedisLimiter {
	if cfg.Requests <= 0 {
		cfg.Requests = DefaultConfig().Requests
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultConfig().Period
	}

	l := &RedisLimiter{
		client:   client,
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
func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	redisKey := redisKeyPrefix + key
	now := l.now()
	cutoff := now.Add(-l.period).UnixNano()

	// The member carries a random suffix so requests sharing a clock
	// reading stay distinct entries in the set.
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	raw, err := allowScript.Run(ctx, l.client, []string{redisKey},
		cutoff,
		l.requests,
		now.UnixNano(),
		member,
		l.period.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit: redis allow %q: %w", key, err)
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("rate limit: redis allow %q: unexpected reply %v", key, raw)
	}

	allowed, _ := raw[0].(int64)
	count, _ := raw[1].(int64)

	if allowed == 0 {
		return &Result{
			Allowed:    false,
			Limit:      l.requests,
			Remaining:  0,
			RetryAfter: l.period,
		}, nil
	}

	remaining := l.requests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   true,
		Limit:     l.requests,
		Remaining: remaining,
	}, nil
}

var _ Limiter = (*RedisLimiter)(nil)
