package handlers

import (
	"strings"

	"agency-gamification/config"
	"agency-gamification/middleware"
	"agency-gamification/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// NewApp builds the fiber app: global middleware, then public health, then
// the authenticated gamification surface.
func NewApp(cfg *config.Config, g *services.Gamification) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "agency-gamification",
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.LoggingMiddleware())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		// Change streams must flush each event as written.
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/gamification/changes/")
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-Username, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	SetupHealthRoutes(app, g)

	var auth []fiber.Handler
	if cfg.Auth.JWTMode() {
		auth = []fiber.Handler{middleware.StreamTokenMiddleware(), middleware.JWTAuthMiddleware(cfg.Auth.JWTSecret)}
	} else {
		auth = []fiber.Handler{middleware.GatewayAuthMiddleware(cfg.Auth.GatewayToken), middleware.UserContextMiddleware()}
	}
	secured := app.Group("/", auth...)

	SetupStreamRoutes(secured, g.Core.Notifier)
	SetupGamificationRoutes(secured, g)
	SetupDevRoutes(secured, g)
	return app
}
