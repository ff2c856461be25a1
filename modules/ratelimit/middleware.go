package ratelimit

import (
	"fmt"
	"strconv"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// IPRateLimit returns middleware that limits requests by client IP. Limiter
// errors let the request through.
func IPRateLimit(limiter Limiter, logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		if ip == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "Unable to determine client IP address",
			})
		}

		result, err := limiter.Allow(c.UserContext(), ip)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", "ip", ip, "error", err)
			return c.Next()
		}

		setRateLimitHeaders(c, result, limiter.Limit())

		if !result.Allowed {
			return sendRateLimitExceeded(c, result)
		}
		return c.Next()
	}
}

func setRateLimitHeaders(c *fiber.Ctx, result *Result, limit int) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func sendRateLimitExceeded(c *fiber.Ctx, result *Result) error {
	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	c.Set("Retry-After", strconv.Itoa(retryAfter))

	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":   "rate_limited",
		"message": fmt.Sprintf("Rate limit exceeded. Please retry after %d seconds.", retryAfter),
	})
}
