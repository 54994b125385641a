package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Component tags, attached as the "component" attribute.
const (
	TypeHTTP      = "HTTP"
	TypeDB        = "DB"
	TypeScheduler = "SCHED"
	TypeRealtime  = "RT"
	TypeSystem    = "SYS"
)

// Setup installs the process-wide slog logger: JSON in production, text
// otherwise. LOG_LEVEL=debug|info|warn|error overrides the level.
func Setup(env string) *slog.Logger {
	return SetupWriter(os.Stdout, env, os.Getenv("LOG_LEVEL"))
}

func SetupWriter(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if env == "production" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(h).With(slog.String("service", "agency-gamification"))
	slog.SetDefault(l)
	return l
}

// For returns a logger tagged with a component.
func For(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
