package handlers

import (
	"agency-gamification/middleware"
	"agency-gamification/services"

	"github.com/gofiber/fiber/v2"
)

type resetSeasonRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// SetupDevRoutes mounts the administrative season reset. router must
// already carry an auth middleware.
func SetupDevRoutes(router fiber.Router, g *services.Gamification) {
	dev := router.Group("/dev", middleware.RequireRole(middleware.RoleAdmin))

	dev.Post("/reset-season", func(c *fiber.Ctx) error {
		var req resetSeasonRequest
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "body", "invalid JSON body")
		}
		userID, err := subject(c, req.UserID)
		if err != nil {
			return writeError(c, "reset season", err)
		}
		res, err := g.Season.ResetSeason(c.UserContext(), userID, displayName(c, userID, req.Username))
		if err != nil {
			return writeError(c, "reset season", err)
		}
		return c.JSON(res)
	})
}
