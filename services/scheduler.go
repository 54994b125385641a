// services/scheduler.go
package services

import (
	"context"
	"log/slog"
	"time"

	"agency-gamification/logger"

	"github.com/go-co-op/gocron/v2"
)

const presenceSweepEvery = time.Minute

// StartScheduler runs the background jobs: a presence sweep every minute and
// the streak decay at 00:05 in the rules timezone. Call Shutdown on the
// returned scheduler to stop it.
func (s *PresenceService) StartScheduler(ctx context.Context) (gocron.Scheduler, error) {
	log := logger.For(logger.TypeScheduler)

	sched, err := gocron.NewScheduler(gocron.WithLocation(s.loc))
	if err != nil {
		return nil, err
	}

	// Every minute: tell consumers about users who just went offline
	_, err = sched.NewJob(
		gocron.DurationJob(presenceSweepEvery),
		gocron.NewTask(func() {
			n, err := s.SweepPresence(ctx, presenceSweepEvery)
			if err != nil {
				log.Warn("presence sweep failed", slog.Any("error", err))
				return
			}
			if n > 0 {
				log.Debug("presence sweep", slog.Int64("went_offline", n))
			}
		}),
		gocron.WithName("presence-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	// Daily: break streaks with no activity yesterday
	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			n, err := s.DecayStreaks(ctx)
			if err != nil {
				log.Error("streak decay failed", slog.Any("error", err))
				return
			}
			log.Info("streaks decayed", slog.Int64("profiles", n))
		}),
		gocron.WithName("streak-decay"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
