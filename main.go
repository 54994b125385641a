package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"agency-gamification/config"
	"agency-gamification/database"
	"agency-gamification/handlers"
	"agency-gamification/logger"
	"agency-gamification/services"
	"agency-gamification/utils"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	envErr := godotenv.Load()
	logger.Setup(os.Getenv("APP_ENV"))
	log := logger.For(logger.TypeSystem)
	if envErr != nil {
		log.Warn("no .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.IsProduction() && !cfg.Auth.JWTMode() && cfg.Auth.GatewayToken == "" {
		log.Error("GAME_SERVICE_TOKEN is not set, refusing to start without gateway authentication")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	var archiver services.Archiver
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Archiver(ctx, cfg.R2)
		if err != nil {
			log.Error("failed to initialize R2 client", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = r2
		log.Info("season archive enabled", slog.String("bucket", cfg.R2.Bucket))
	}

	notifier := services.NewNotifier()
	defer notifier.Close()

	run, runCtx := errgroup.WithContext(ctx)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Local delivery keeps working; only cross-instance fan-out is lost.
			log.Warn("redis unreachable, relaying anyway", slog.Any("error", err))
		}
		bridge := services.NewRedisBridge(rdb, cfg.Redis.Channel, notifier)
		run.Go(func() error {
			bridge.Run(runCtx)
			return nil
		})
	}

	g, err := services.NewGamification(db, cfg.Rules, notifier, archiver)
	if err != nil {
		log.Error("failed to initialize gamification services", slog.Any("error", err))
		os.Exit(1)
	}

	sched, err := g.Presence.StartScheduler(ctx)
	if err != nil {
		log.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	app := handlers.NewApp(cfg, g)

	run.Go(func() error {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	log.Info("server running",
		slog.String("port", cfg.Server.Port),
		slog.Bool("jwt_auth", cfg.Auth.JWTMode()),
		slog.Bool("redis_relay", cfg.Redis.Enabled()),
		slog.Bool("season_archive", archiver != nil),
		slog.String("cors_origins", strings.Join(cfg.Server.AllowedOrigins, ",")))

	run.Go(func() error {
		<-runCtx.Done()
		log.Info("shutting down server")
		if err := sched.Shutdown(); err != nil {
			log.Warn("scheduler shutdown", slog.Any("error", err))
		}
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := run.Wait(); err != nil {
		log.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}
