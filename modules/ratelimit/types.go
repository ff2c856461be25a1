package ratelimit

import (
	"context"
	"time"
)

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerWindow is the maximum number of requests allowed in the window.
	RequestsPerWindow int
	// WindowSize is the duration of the sliding window.
	WindowSize time.Duration
	// KeyPrefix namespaces the Redis keys.
	KeyPrefix string
}

// DefaultConfig allows 20 auth requests per minute per client IP.
func DefaultConfig() Config {
	return Config{
		RequestsPerWindow: 20,
		WindowSize:        time.Minute,
		KeyPrefix:         "taskify:ratelimit:auth:",
	}
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// RetryAfter is only set when the request was denied.
	RetryAfter time.Duration
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	Limit() int
}
