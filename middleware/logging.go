package middleware

import (
	"log/slog"
	"time"

	"agency-gamification/logger"

	"github.com/gofiber/fiber/v2"
)

// LoggingMiddleware logs HTTP requests in a structured format
func LoggingMiddleware() fiber.Handler {
	base := logger.For(logger.TypeHTTP)
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		statusCode := c.Response().StatusCode()
		if err != nil {
			// The error handler has not run yet; report what it will send.
			statusCode = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				statusCode = fe.Code
			}
		}
		level := slog.LevelInfo
		if statusCode >= 400 && statusCode < 500 {
			level = slog.LevelWarn
		} else if statusCode >= 500 {
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", statusCode),
			slog.Duration("duration", duration),
			slog.String("ip", c.IP()),
		}
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			attrs = append(attrs, slog.String("request_id", rid))
		}
		if id, ok := GetIdentity(c); ok {
			attrs = append(attrs, slog.String("user_id", id.UserID.String()))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		base.LogAttrs(c.UserContext(), level, "HTTP request processed", attrs...)
		return err
	}
}
