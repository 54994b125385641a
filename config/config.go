package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	R2       R2Config
	Rules    Rules
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	IdleTimeout    time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig selects the identity boundary. With JWTSecret set, callers
// present a signed bearer token; otherwise the gateway token plus
// X-User-* headers are trusted.
type AuthConfig struct {
	GatewayToken string
	JWTSecret    string
}

func (a AuthConfig) JWTMode() bool { return a.JWTSecret != "" }

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.Bucket != "" && r.AccessKeyID != ""
}

// Load reads the environment. A rules file named by GAMIFICATION_RULES_FILE
// overrides the compiled-in rule defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "5200"),
			Env:            getEnv("APP_ENV", "development"),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
			ReadTimeout:    10 * time.Second,
			IdleTimeout:    2 * time.Minute,
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_URL", "sqlite:gamification.db"),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: time.Hour,
		},
		Auth: AuthConfig{
			GatewayToken: os.Getenv("GAME_SERVICE_TOKEN"),
			JWTSecret:    os.Getenv("JWT_SECRET"),
		},
		Redis: RedisConfig{
			Addr:     strings.ReplaceAll(os.Getenv("REDIS_ADDR"), " ", ""),
			Password: os.Getenv("REDIS_PASS"),
			DB:       getEnvInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_CHANNEL", "gamification:changes"),
		},
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
		},
		Rules: DefaultRules(),
	}

	if path := os.Getenv("GAMIFICATION_RULES_FILE"); path != "" {
		if err := cfg.Rules.LoadFile(path); err != nil {
			return nil, err
		}
		slog.Info("gamification rules loaded", slog.String("file", path))
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-numeric env value", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
