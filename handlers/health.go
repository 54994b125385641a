package handlers

import (
	"context"
	"time"

	"agency-gamification/services"

	"github.com/gofiber/fiber/v2"
)

func SetupHealthRoutes(app *fiber.App, g *services.Gamification) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := g.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "database": "unreachable"})
		}
		return c.JSON(fiber.Map{"status": "ok", "database": "ok"})
	})
}
