package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"agency-gamification/logger"
)

// Pinger is what PresencePinger needs from the API client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PresencePinger is one user's presence loop. RecordActivity marks local
// interaction; Run sends a ping every Interval unless the user has been idle
// longer than ActivityThreshold. It owns no global state, so each session
// runs its own pinger under its own context.
type PresencePinger struct {
	Client            Pinger
	Interval          time.Duration
	ActivityThreshold time.Duration
	Now               func() time.Time

	mu           sync.Mutex
	lastActivity time.Time
	log          *slog.Logger
}

func NewPresencePinger(client Pinger, interval, activityThreshold time.Duration) *PresencePinger {
	p := &PresencePinger{
		Client:            client,
		Interval:          interval,
		ActivityThreshold: activityThreshold,
		Now:               time.Now,
		log:               logger.For(logger.TypeRealtime),
	}
	p.lastActivity = p.Now()
	return p
}

// RecordActivity resets the local last-interaction instant. It never
// touches the server.
func (p *PresencePinger) RecordActivity() {
	p.mu.Lock()
	p.lastActivity = p.Now()
	p.mu.Unlock()
}

// Idle reports whether local inactivity exceeds the activity threshold.
func (p *PresencePinger) Idle() bool {
	p.mu.Lock()
	last := p.lastActivity
	p.mu.Unlock()
	return p.Now().Sub(last) > p.ActivityThreshold
}

// Tick performs one cycle: ping unless idle. It reports whether a ping was
// sent successfully. Failures are logged and left for the next tick.
func (p *PresencePinger) Tick(ctx context.Context) bool {
	if p.Idle() {
		p.log.Debug("presence ping skipped, user idle")
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.Interval)
	defer cancel()
	if err := p.Client.Ping(ctx); err != nil {
		p.log.Warn("presence ping failed", slog.Any("error", err))
		return false
	}
	return true
}

// Run pings once immediately, then every Interval until ctx is cancelled.
func (p *PresencePinger) Run(ctx context.Context) {
	p.log.Info("presence pinger started", slog.Duration("interval", p.Interval))
	p.Tick(ctx)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("presence pinger stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}
