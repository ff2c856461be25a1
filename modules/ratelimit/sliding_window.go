// Package ratelimit guards the auth endpoints with a Redis sliding-window limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the window, counts what is left and records the
// request if there is room, all in one atomic step.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_size_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)

	if count < limit then
		local counter = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. counter)
		redis.call('PEXPIRE', key, window_size_ms)
		redis.call('PEXPIRE', counter_key, window_size_ms)
		return {1, limit - count - 1, 0}
	else
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local retry_after = 0
		if #oldest >= 2 then
			retry_after = oldest[2] + window_size_ms - now
		end
		return {0, 0, retry_after}
	end
`)

// SlidingWindowLimiter implements Limiter with a Redis sorted set of request
// timestamps per key.
type SlidingWindowLimiter struct {
	client redis.Scripter
	config Config
	now    func() time.Time
}

var _ Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(client redis.Scripter, config Config) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// Limit returns the number of requests allowed per window.
func (l *SlidingWindowLimiter) Limit() int {
	return l.config.RequestsPerWindow
}

// Allow records a request for key if the window has room.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := l.now()
	redisKey := l.config.KeyPrefix + key

	result, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey, redisKey + ":counter"},
		now.UnixMilli(),
		now.Add(-l.config.WindowSize).UnixMilli(),
		l.config.RequestsPerWindow,
		l.config.WindowSize.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected result length: %d", len(result))
	}

	values := make([]int64, 3)
	for i := range values {
		v, ok := result[i].(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected type for result[%d]: %T", i, result[i])
		}
		values[i] = v
	}

	res := &Result{
		Allowed:   values[0] == 1,
		Remaining: int(values[1]),
		ResetAt:   now.Add(l.config.WindowSize),
	}
	if !res.Allowed && values[2] > 0 {
		res.RetryAfter = time.Duration(values[2]) * time.Millisecond
	}
	return res, nil
}
