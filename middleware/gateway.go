// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"agency-gamification/logger"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware validates the Bearer token from the Gateway. An
// empty expectedToken disables the check; main refuses that in production.
func GatewayAuthMiddleware(expectedToken string) fiber.Handler {
	log := logger.For(logger.TypeHTTP)
	if expectedToken == "" {
		log.Warn("GAME_SERVICE_TOKEN is not set, gateway authentication disabled")
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Warn("gateway token missing", slog.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		// Parse "Bearer <token>"; a raw token is accepted too.
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Warn("invalid gateway token", slog.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}
