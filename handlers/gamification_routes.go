// handlers/gamification_routes.go
package handlers

import (
	"strings"
	"time"

	"agency-gamification/middleware"
	"agency-gamification/models"
	"agency-gamification/services"

	"github.com/gofiber/fiber/v2"
)

type pingRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type shiftRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type declareLeadRequest struct {
	ClientUsername string `json:"clientUsername"`
	Platform       string `json:"platform"`
	FinderID       string `json:"finderId"`
}

type validateLeadRequest struct {
	Approved *bool `json:"approved"`
}

type orderEventRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	OrderID  string `json:"orderId"`
	Event    string `json:"event"`
}

type grantRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

type multiplierRequest struct {
	Multiplier *float64 `json:"multiplier"`
}

// activeSessionView is an open session with elapsed time recomputed from
// its start.
type activeSessionView struct {
	*models.WorkSession
	ElapsedSeconds int64 `json:"elapsed_seconds"`
}

type profileView struct {
	*models.GamificationProfile
	IsOnline bool `json:"is_online"`
}

// SetupGamificationRoutes mounts /gamification/* on router. router must
// already carry an auth middleware.
func SetupGamificationRoutes(router fiber.Router, g *services.Gamification) {
	gm := router.Group("/gamification")
	admin := middleware.RequireRole(middleware.RoleAdmin)
	rules := g.Core.Rules

	// Presence
	gm.Post("/ping", func(c *fiber.Ctx) error {
		var req pingRequest
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "body", "invalid JSON body")
		}
		userID, err := subject(c, req.UserID)
		if err != nil {
			return writeError(c, "presence ping", err)
		}
		res, err := g.Presence.SendPresencePing(c.UserContext(), userID, displayName(c, userID, req.Username))
		if err != nil {
			return writeError(c, "presence ping", err)
		}
		return c.JSON(res)
	})

	gm.Get("/leaderboard-view", func(c *fiber.Ctx) error {
		limit, err := queryInt(c, "limit")
		if err != nil {
			return writeError(c, "leaderboard", err)
		}
		rows, err := g.Leaderboard.LeaderboardView(c.UserContext(), caller(c).UserID, services.LeaderboardQuery{
			Limit: limit,
			Query: c.Query("q"),
		})
		if err != nil {
			return writeError(c, "leaderboard", err)
		}
		return c.JSON(rows)
	})

	// Shifts
	gm.Post("/shift/start", func(c *fiber.Ctx) error {
		var req shiftRequest
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "body", "invalid JSON body")
		}
		userID, err := subject(c, req.UserID)
		if err != nil {
			return writeError(c, "start shift", err)
		}
		session, err := g.Shifts.StartShift(c.UserContext(), userID, displayName(c, userID, req.Username))
		if err != nil {
			return writeError(c, "start shift", err)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	gm.Post("/shift/stop", func(c *fiber.Ctx) error {
		var req shiftRequest
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "body", "invalid JSON body")
		}
		userID, err := subject(c, req.UserID)
		if err != nil {
			return writeError(c, "stop shift", err)
		}
		res, err := g.Shifts.StopShift(c.UserContext(), userID)
		if err != nil {
			return writeError(c, "stop shift", err)
		}
		return c.JSON(res)
	})

	gm.Get("/shift/active/:userId", func(c *fiber.Ctx) error {
		userID, err := models.ParseUserID(c.Params("userId"))
		if err != nil {
			return badRequest(c, "userId", err.Error())
		}
		session, err := g.Shifts.GetActiveSession(c.UserContext(), userID)
		if err != nil {
			return writeError(c, "active shift", err)
		}
		if session == nil {
			return c.JSON(nil)
		}
		elapsed := session.Elapsed(g.Core.Now())
		return c.JSON(activeSessionView{WorkSession: session, ElapsedSeconds: int64(elapsed / time.Second)})
	})

	// Leads
	gm.Post("/leads", func(c *fiber.Ctx) error {
		var req declareLeadRequest
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "body", "invalid JSON body")
		}
		finderID, err := subject(c, req.FinderID)
		if err != nil {
			return writeError(c, "declare lead", err)
		}
		lead, err := g.Leads.DeclareLead(c.UserContext(), req.ClientUsername, models.Platform(req.Platform), finderID)
		if err != nil {
			return writeError(c, "declare lead", err)
		}
		return c.Status(fiber.StatusCreated).JSON(lead)
	})

	gm.Get("/leads/pending", func(c *fiber.Ctx) error {
		leads, err := g.Leads.ListPending(c.UserContext())
		if err != nil {
			return writeError(c, "pending leads", err)
		}
		return c.JSON(leads)
	})

	gm.Patch("/leads/:id/validate", admin, func(c *fiber.Ctx) error {
		var req validateLeadRequest
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "body", "invalid JSON body")
		}
		if req.Approved == nil {
			return badRequest(c, "approved", "is required")
		}
		lead, err := g.Leads.ValidateLead(c.UserContext(), c.Params("id"), *req.Approved, caller(c).UserID)
		if err != nil {
			return writeError(c, "validate lead", err)
		}
		return c.JSON(lead)
	})

	// Ledger
	gm.Get("/activity", func(c *fiber.Ctx) error {
		limit, err := queryInt(c, "limit")
		if err != nil {
			return writeError(c, "activity", err)
		}
		since, err := queryTime(c, "since")
		if err != nil {
			return writeError(c, "activity", err)
		}
		q := services.FeedQuery{Limit: limit, Since: since}
		if raw := strings.TrimSpace(c.Query("userId")); raw != "" {
			if q.UserID, err = models.ParseUserID(raw); err != nil {
				return badRequest(c, "userId", err.Error())
			}
		}
		entries, err := g.Ledger.RecentActivity(c.UserContext(), q)
		if err != nil {
			return writeError(c, "activity", err)
		}
		return c.JSON(entries)
	})

	gm.Post("/orders/events", func(c *fiber.Ctx) error {
		var req orderEventRequest
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "body", "invalid JSON body")
		}
		userID, err := subject(c, req.UserID)
		if err != nil {
			return writeError(c, "order event", err)
		}
		entry, err := g.Ledger.RecordOrderEvent(c.UserContext(), userID, displayName(c, userID, req.Username), req.OrderID, req.Event)
		if err != nil {
			return writeError(c, "order event", err)
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	})

	gm.Post("/xp/grant", admin, func(c *fiber.Ctx) error {
		var req grantRequest
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "body", "invalid JSON body")
		}
		userID, err := models.ParseUserID(req.UserID)
		if err != nil {
			return badRequest(c, "userId", err.Error())
		}
		if req.Amount <= 0 {
			return badRequest(c, "amount", "must be positive")
		}
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			return badRequest(c, "reason", "is required")
		}
		entry, err := g.Ledger.AwardXP(c.UserContext(), services.Award{
			UserID:      userID,
			Username:    strings.TrimSpace(req.Username),
			Action:      models.ActionManualGrant,
			BaseAmount:  req.Amount,
			Description: reason,
		})
		if err != nil {
			return writeError(c, "grant xp", err)
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	})

	// Profiles
	gm.Get("/profiles/:userId", func(c *fiber.Ctx) error {
		userID, err := models.ParseUserID(c.Params("userId"))
		if err != nil {
			return badRequest(c, "userId", err.Error())
		}
		prof, err := g.Profiles.GetProfile(c.UserContext(), userID)
		if err != nil {
			return writeError(c, "get profile", err)
		}
		online := services.OnlineForViewer(caller(c).UserID, prof, g.Core.Now(), rules.OnlineThreshold)
		return c.JSON(profileView{GamificationProfile: prof, IsOnline: online})
	})

	gm.Put("/profiles/:userId/multiplier", admin, func(c *fiber.Ctx) error {
		userID, err := models.ParseUserID(c.Params("userId"))
		if err != nil {
			return badRequest(c, "userId", err.Error())
		}
		var req multiplierRequest
		if err := parseBody(c, &req); err != nil {
			return badRequest(c, "body", "invalid JSON body")
		}
		if req.Multiplier == nil {
			return badRequest(c, "multiplier", "is required")
		}
		prof, err := g.Profiles.SetRoleMultiplier(c.UserContext(), userID, *req.Multiplier)
		if err != nil {
			return writeError(c, "set multiplier", err)
		}
		return c.JSON(prof)
	})
}
