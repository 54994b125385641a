package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"agency-gamification/logger"
	"agency-gamification/middleware"
	"agency-gamification/models"
	"agency-gamification/services"

	"github.com/gofiber/fiber/v2"
)

var errForbidden = errors.New("cannot act on behalf of another user")

// writeError maps the service error taxonomy onto HTTP. Unexpected failures
// are logged and answered with a bare 500.
func writeError(c *fiber.Ctx, op string, err error) error {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, errForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	attrs := []any{slog.String("op", op), slog.Any("error", err)}
	if id, ok := middleware.GetIdentity(c); ok {
		attrs = append(attrs, slog.String("user_id", id.UserID.String()))
	}
	logger.For(logger.TypeHTTP).Error("request failed", attrs...)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func badRequest(c *fiber.Ctx, field, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "field": field})
}

func caller(c *fiber.Ctx) *middleware.Identity {
	if id, ok := middleware.GetIdentity(c); ok {
		return id
	}
	return &middleware.Identity{}
}

// subject resolves the user a request acts on. An empty raw id means the
// caller; anyone else requires the admin role.
func subject(c *fiber.Ctx, raw string) (models.UserID, error) {
	me := caller(c)
	if strings.TrimSpace(raw) == "" {
		if me.UserID == "" {
			return "", &services.ValidationError{Field: "userId", Message: "is required"}
		}
		return me.UserID, nil
	}
	userID, err := models.ParseUserID(raw)
	if err != nil {
		return "", &services.ValidationError{Field: "userId", Message: err.Error()}
	}
	if userID != me.UserID && !me.IsAdmin() {
		return "", errForbidden
	}
	return userID, nil
}

// displayName prefers an explicit username, then the caller's own when the
// request is about themselves.
func displayName(c *fiber.Ctx, userID models.UserID, explicit string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	if me := caller(c); me.UserID == userID {
		return me.Username
	}
	return ""
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &services.ValidationError{Field: key, Message: "must be a non-negative integer"}
	}
	return n, nil
}

func queryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, &services.ValidationError{Field: key, Message: "must be an RFC3339 timestamp"}
	}
	return &t, nil
}

// parseBody decodes a JSON body; an empty body leaves out untouched.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return json.Unmarshal(c.Body(), out)
}
