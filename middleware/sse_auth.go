// middleware/sse_auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// StreamTokenMiddleware lets EventSource and WebSocket clients, which cannot
// set headers, pass their bearer token as ?token=. It only fills the
// Authorization header; the auth middleware that follows still verifies it.
//
// Usage:
//
//	app.Get("/gamification/changes/stream", middleware.StreamTokenMiddleware(), auth, handler)
func StreamTokenMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "" {
			return c.Next()
		}
		if token := strings.TrimSpace(c.Query("token")); token != "" {
			c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		}
		return c.Next()
	}
}
