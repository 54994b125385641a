// middleware/auth.go
package middleware

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	"agency-gamification/logger"
	"agency-gamification/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"

	identityKey = "identity"
)

// Identity is the caller as established at the auth boundary. Handlers
// never read user ids from anywhere else.
type Identity struct {
	UserID   models.UserID
	Username string
	Roles    []string
}

func (i *Identity) HasRole(role string) bool {
	return i != nil && slices.Contains(i.Roles, role)
}

func (i *Identity) IsAdmin() bool { return i.HasRole(RoleAdmin) }

// GetIdentity returns the identity attached by one of the auth middlewares.
func GetIdentity(c *fiber.Ctx) (*Identity, bool) {
	id, ok := c.Locals(identityKey).(*Identity)
	return id, ok && id != nil
}

func setIdentity(c *fiber.Ctx, id *Identity) {
	c.Locals(identityKey, id)
	c.Locals("user_id", id.UserID.String())
}

// UserContextMiddleware extracts user identity and roles set by the Gateway.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := models.ParseUserID(c.Get("X-User-ID"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through the gateway with auth context",
			})
		}
		setIdentity(c, &Identity{
			UserID:   userID,
			Username: strings.TrimSpace(c.Get("X-Username")),
			Roles:    splitRoles(c.Get("X-User-Roles")),
		})
		return c.Next()
	}
}

// Claims carried by bearer tokens in JWT mode. The user id is "sub", or
// "user_id" for tokens minted by older issuers.
type Claims struct {
	UserID   string   `json:"user_id,omitempty"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// ParseToken verifies an HS256 token and returns the identity it names.
func ParseToken(secret, tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	raw := claims.Subject
	if raw == "" {
		raw = claims.UserID
	}
	userID, err := models.ParseUserID(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: userID, Username: strings.TrimSpace(claims.Username), Roles: splitRoles(strings.Join(claims.Roles, ","))}, nil
}

// JWTAuthMiddleware authenticates a bearer token signed with secret.
func JWTAuthMiddleware(secret string) fiber.Handler {
	log := logger.For(logger.TypeHTTP)
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}
		id, err := ParseToken(secret, tokenString)
		if err != nil {
			log.Warn("rejected bearer token", slog.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}
		setIdentity(c, id)
		return c.Next()
	}
}

// RequireRole rejects callers lacking role with 403.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := GetIdentity(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthenticated"})
		}
		if !id.HasRole(role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "requires role " + role})
		}
		return c.Next()
	}
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
