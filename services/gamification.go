package services

import (
	"context"
	"log/slog"

	"agency-gamification/config"
	"agency-gamification/logger"

	"gorm.io/gorm"
)

// Gamification bundles the services behind the REST surface. They share one
// Core, so they share the season gate and the notifier.
type Gamification struct {
	Core        *Core
	Ledger      *LedgerService
	Presence    *PresenceService
	Profiles    *ProfileService
	Shifts      *ShiftService
	Leads       *LeadService
	Leaderboard *LeaderboardService
	Season      *SeasonService
}

// NewGamification wires every service over db. archiver may be nil.
func NewGamification(db *gorm.DB, rules config.Rules, notifier *Notifier, archiver Archiver) (*Gamification, error) {
	core, err := NewCore(db, rules, notifier)
	if err != nil {
		return nil, err
	}
	board, err := NewLeaderboardService(core)
	if err != nil {
		return nil, err
	}
	return &Gamification{
		Core:        core,
		Ledger:      NewLedgerService(core),
		Presence:    NewPresenceService(core),
		Profiles:    NewProfileService(core),
		Shifts:      NewShiftService(core),
		Leads:       NewLeadService(core),
		Leaderboard: board,
		Season:      NewSeasonService(core, archiver),
	}, nil
}

// Ping checks the store for health probes.
func (g *Gamification) Ping(ctx context.Context) error {
	sqlDB, err := g.Core.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.For(logger.TypeDB).Warn("database ping failed", slog.Any("error", err))
		return err
	}
	return nil
}
