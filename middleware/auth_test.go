package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func whoAmI(c *fiber.Ctx) error {
	id, ok := GetIdentity(c)
	if !ok {
		return c.SendStatus(fiber.StatusTeapot)
	}
	return c.SendString(id.UserID.String() + "|" + id.Username + "|" + strings.Join(id.Roles, ","))
}

func send(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestParseToken(t *testing.T) {
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantID  string
		wantErr bool
	}{
		{
			name: "subject claim",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS256, Claims{
					Username:         "Alice",
					Roles:            []string{"Admin"},
					RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: future},
				})
			},
			wantID: "u1",
		},
		{
			name: "legacy user_id claim",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS256, Claims{UserID: "u2"})
			},
			wantID: "u2",
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signToken(t, "other", jwt.SigningMethodHS256, Claims{UserID: "u1"})
			},
			wantErr: true,
		},
		{
			name: "other algorithm",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS512, Claims{UserID: "u1"})
			},
			wantErr: true,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS256, Claims{
					RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
				})
			},
			wantErr: true,
		},
		{
			name: "no user",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.SigningMethodHS256, Claims{Username: "ghost"})
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseToken(testSecret, tt.token(t))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("accepted token for %+v", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseToken: %v", err)
			}
			if id.UserID.String() != tt.wantID {
				t.Errorf("user = %q, want %q", id.UserID, tt.wantID)
			}
		})
	}
}

func TestParseTokenNormalizesRoles(t *testing.T) {
	token := signToken(t, testSecret, jwt.SigningMethodHS256, Claims{
		Roles:            []string{" Admin ", "staff", ""},
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	})
	id, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatal(err)
	}
	if !id.IsAdmin() || !id.HasRole("staff") || len(id.Roles) != 2 {
		t.Errorf("roles = %v", id.Roles)
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(StreamTokenMiddleware(), JWTAuthMiddleware(testSecret))
	app.Get("/me", whoAmI)

	token := signToken(t, testSecret, jwt.SigningMethodHS256, Claims{
		Username:         "Alice",
		Roles:            []string{"admin"},
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if status, body := send(t, app, req); status != http.StatusOK || body != "u1|Alice|admin" {
		t.Errorf("bearer = %d %q", status, body)
	}

	if status, body := send(t, app, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)); status != http.StatusOK || body != "u1|Alice|admin" {
		t.Errorf("query token = %d %q", status, body)
	}

	if status, _ := send(t, app, httptest.NewRequest(http.MethodGet, "/me", nil)); status != http.StatusUnauthorized {
		t.Errorf("missing token = %d", status)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	if status, _ := send(t, app, req); status != http.StatusUnauthorized {
		t.Errorf("garbage token = %d", status)
	}
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware())
	app.Get("/me", whoAmI)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", " u7 ")
	req.Header.Set("X-Username", "Gina")
	req.Header.Set("X-User-Roles", "Staff, ADMIN")
	if status, body := send(t, app, req); status != http.StatusOK || body != "u7|Gina|staff,admin" {
		t.Errorf("headers = %d %q", status, body)
	}

	if status, _ := send(t, app, httptest.NewRequest(http.MethodGet, "/me", nil)); status != http.StatusUnauthorized {
		t.Errorf("missing user = %d", status)
	}
}

func TestRequireRole(t *testing.T) {
	app := fiber.New()
	app.Get("/anon", RequireRole(RoleAdmin), whoAmI)
	app.Get("/admin", UserContextMiddleware(), RequireRole(RoleAdmin), whoAmI)

	if status, _ := send(t, app, httptest.NewRequest(http.MethodGet, "/anon", nil)); status != http.StatusUnauthorized {
		t.Errorf("no identity = %d, want 401", status)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "u1")
	if status, _ := send(t, app, req); status != http.StatusForbidden {
		t.Errorf("no role = %d, want 403", status)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Roles", "admin")
	if status, _ := send(t, app, req); status != http.StatusOK {
		t.Errorf("admin = %d, want 200", status)
	}
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("svc"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Bearer svc", http.StatusNoContent},
		{"svc", http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if status, _ := send(t, app, req); status != tt.want {
			t.Errorf("Authorization %q = %d, want %d", tt.header, status, tt.want)
		}
	}

	open := fiber.New()
	open.Use(GatewayAuthMiddleware(""))
	open.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	if status, _ := send(t, open, httptest.NewRequest(http.MethodGet, "/", nil)); status != http.StatusNoContent {
		t.Errorf("disabled gateway check = %d", status)
	}
}
