// Command presence-agent keeps one user's presence alive against the
// gamification service. Any line on stdin counts as user activity.
package main

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agency-gamification/config"
	"agency-gamification/logger"
	"agency-gamification/models"
	"agency-gamification/workers"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type agentOptions struct {
	baseURL  string
	userID   string
	username string
	bearer   string
	interval time.Duration
	idle     time.Duration
}

func newRootCmd() *cobra.Command {
	rules := config.DefaultRules()
	opts := agentOptions{}

	cmd := &cobra.Command{
		Use:           "presence-agent",
		Short:         "Report a user present to the gamification service while they are active",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "url", envOr("GAMIFICATION_URL", "http://localhost:5200"), "gamification service base URL")
	f.StringVar(&opts.userID, "user", os.Getenv("AGENT_USER_ID"), "user id to report present")
	f.StringVar(&opts.username, "username", os.Getenv("AGENT_USERNAME"), "display name")
	f.StringVar(&opts.bearer, "jwt", os.Getenv("AGENT_JWT"), "bearer token (JWT mode)")
	f.DurationVar(&opts.interval, "interval", rules.PingInterval, "ping interval")
	f.DurationVar(&opts.idle, "idle", rules.ActivityThreshold, "skip pings after this much inactivity")
	return cmd
}

func run(ctx context.Context, opts agentOptions) error {
	userID, err := models.ParseUserID(opts.userID)
	if err != nil {
		return err
	}

	client := workers.NewGamificationClient(opts.baseURL, userID, opts.username)
	client.Token = os.Getenv("GAME_SERVICE_TOKEN")
	client.Bearer = opts.bearer

	// Resume an open shift so its timer continues from the server's start time.
	if shift, err := client.ActiveSession(ctx); err != nil {
		slog.Warn("could not load active shift", slog.Any("error", err))
	} else if shift != nil {
		slog.Info("resumed active shift",
			slog.String("session_id", shift.ID),
			slog.Duration("elapsed", shift.Elapsed(time.Now()).Round(time.Second)))
	}

	pinger := workers.NewPresencePinger(client, opts.interval, opts.idle)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			pinger.RecordActivity()
		}
	}()

	pinger.Run(ctx)
	return nil
}

func main() {
	_ = godotenv.Load()
	logger.Setup(os.Getenv("APP_ENV"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("presence agent failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
