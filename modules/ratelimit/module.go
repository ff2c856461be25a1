package ratelimit

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Module owns the Redis client behind the auth rate limiter.
type Module struct {
	client  *redis.Client
	limiter *SlidingWindowLimiter
	addr    string
	logger  types.Logger
}

var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the module from a redis:// URL.
func NewModule(redisURL string, config Config, logger types.Logger) (*Module, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return &Module{
		client:  client,
		limiter: NewSlidingWindowLimiter(client, config),
		addr:    opts.Addr,
		logger:  logger.WithModule("rate-limiter"),
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "rate-limiter"
}

// Start verifies Redis is reachable.
func (m *Module) Start(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	m.logger.Info("Connected to Redis", "addr", m.addr)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if err := m.client.Close(); err != nil {
		m.logger.Warn("Error closing Redis connection", "error", err)
	}
	m.logger.Info("Module stopped")
	return nil
}

// Health pings Redis.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("redis ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"redis": m.addr},
	}
}

// Handler returns the per-IP limiting middleware.
func (m *Module) Handler() fiber.Handler {
	return IPRateLimit(m.limiter, m.logger)
}
