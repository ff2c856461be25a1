package api

import (
	"strings"

	domain "github.com/example/taskify/domain/user"
	"github.com/example/taskify/modules/auth"
	"github.com/gofiber/fiber/v2"
)

const (
	// UserContextKey is the key used to store user claims in the Fiber context.
	UserContextKey = "user"
)

// AuthMiddleware creates a middleware that validates bearer access tokens.
func AuthMiddleware(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid authorization header format. Use: Bearer <token>")
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return unauthorized(c, "Token is required")
		}

		return authenticate(c, authPort, token)
	}
}

// QueryTokenMiddleware authenticates websocket upgrades, which cannot carry
// headers from browsers, with the access_token query parameter.
func QueryTokenMiddleware(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("access_token")
		if token == "" {
			return unauthorized(c, "access_token query parameter is required")
		}
		return authenticate(c, authPort, token)
	}
}

func authenticate(c *fiber.Ctx, authPort auth.AuthPort, token string) error {
	claims, err := authPort.ValidateToken(c.UserContext(), token)
	if err != nil {
		return unauthorized(c, "Invalid or expired token")
	}

	c.Locals(UserContextKey, claims)
	return c.Next()
}

func claimsFrom(c *fiber.Ctx) (*domain.Claims, bool) {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	return claims, ok && claims != nil
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: message,
	})
}
