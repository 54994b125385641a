package services

//go:generate mockgen -destination=mock/archiver.go -package=mock . Archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"agency-gamification/database"
	"agency-gamification/logger"
	"agency-gamification/models"

	"gorm.io/gorm"
)

// Archiver stores a season snapshot under key before the season is cleared.
type Archiver interface {
	ArchiveSeason(ctx context.Context, key string, payload []byte) error
}

// SeasonSnapshot is everything a reset clears, as it was just before.
type SeasonSnapshot struct {
	TakenAt  time.Time                    `json:"taken_at"`
	Profiles []models.GamificationProfile `json:"profiles"`
	Badges   []models.ProfileBadge        `json:"badges"`
	Ledger   []models.XPActivityLog       `json:"ledger"`
	Sessions []models.WorkSession         `json:"sessions"`
	Leads    []models.HunterLead          `json:"leads"`
}

type SeasonResetResult struct {
	ResetAt         time.Time `json:"reset_at"`
	ArchiveKey      string    `json:"archive_key,omitempty"`
	ProfilesReset   int64     `json:"profiles_reset"`
	LedgerCleared   int64     `json:"ledger_cleared"`
	BadgesCleared   int64     `json:"badges_cleared"`
	SessionsCleared int64     `json:"sessions_cleared"`
	LeadsCleared    int64     `json:"leads_cleared"`
}

type SeasonService struct {
	*Core
	Archiver Archiver
}

// NewSeasonService wires the reset; archiver may be nil when no archive
// bucket is configured.
func NewSeasonService(core *Core, archiver Archiver) *SeasonService {
	return &SeasonService{Core: core, Archiver: archiver}
}

// ArchiveKey names the object a snapshot taken at t is stored under.
func ArchiveKey(t time.Time) string {
	return fmt.Sprintf("seasons/%s.json", t.UTC().Format("20060102T150405Z"))
}

// ResetSeason zeroes every profile and clears the ledger, badges, sessions
// and leads in one transaction. It holds the season gate exclusively, so no
// award straddles the boundary; on postgres the tables are locked before the
// snapshot, so writes from other instances are either archived or wait for
// the new season. When an archiver is set, a failed upload aborts the reset
// before anything is cleared. The requester's profile is recreated so they
// land on the fresh board.
func (s *SeasonService) ResetSeason(ctx context.Context, requester models.UserID, username string) (*SeasonResetResult, error) {
	res, err := s.reset(ctx, requester, username)
	if err != nil {
		return nil, err
	}
	logger.For(logger.TypeSystem).Info("season reset",
		slog.String("requested_by", requester.String()),
		slog.String("archive_key", res.ArchiveKey),
		slog.Int64("profiles", res.ProfilesReset),
		slog.Int64("ledger_entries", res.LedgerCleared))
	s.Notifier.Publish(AllTopics...)
	return res, nil
}

func (s *SeasonService) reset(ctx context.Context, requester models.UserID, username string) (*SeasonResetResult, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	now := s.now()
	res := &SeasonResetResult{ResetAt: now}

	var archiveErr error
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if database.IsPostgres(s.DB) {
			if err := tx.Exec("LOCK TABLE gamification_profiles, xp_activity_logs, profile_badges, work_sessions, hunter_leads IN ACCESS EXCLUSIVE MODE").Error; err != nil {
				return err
			}
		}

		if s.Archiver != nil {
			snap, err := snapshot(tx, now)
			if err != nil {
				return err
			}
			if res.ArchiveKey, archiveErr = s.archive(ctx, snap); archiveErr != nil {
				return archiveErr
			}
		}

		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})

		del := all.Delete(&models.XPActivityLog{})
		if del.Error != nil {
			return del.Error
		}
		res.LedgerCleared = del.RowsAffected

		if del = all.Delete(&models.ProfileBadge{}); del.Error != nil {
			return del.Error
		}
		res.BadgesCleared = del.RowsAffected

		if del = all.Delete(&models.WorkSession{}); del.Error != nil {
			return del.Error
		}
		res.SessionsCleared = del.RowsAffected

		if del = all.Delete(&models.HunterLead{}); del.Error != nil {
			return del.Error
		}
		res.LeadsCleared = del.RowsAffected

		upd := all.Model(&models.GamificationProfile{}).UpdateColumns(map[string]any{
			"xp_total":        0,
			"level":           1,
			"current_streak":  0,
			"longest_streak":  0,
			"last_streak_day": "",
			"updated_at":      now,
		})
		if upd.Error != nil {
			return upd.Error
		}
		res.ProfilesReset = upd.RowsAffected

		if requester != "" {
			if _, err := s.ensureProfileTx(tx, requester, username, now); err != nil {
				return err
			}
		}
		return nil
	})
	if archiveErr != nil {
		return nil, archiveErr
	}
	if err != nil {
		return nil, storeErr("reset season", err)
	}
	return res, nil
}

// archive uploads snap and returns the key it was stored under.
func (s *SeasonService) archive(ctx context.Context, snap *SeasonSnapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode season snapshot: %w", err)
	}
	key := ArchiveKey(snap.TakenAt)
	if err := s.Archiver.ArchiveSeason(ctx, key, payload); err != nil {
		logger.For(logger.TypeSystem).Error("season archive failed, reset aborted", slog.String("key", key), slog.Any("error", err))
		return "", fmt.Errorf("archive season: %w", err)
	}
	return key, nil
}

// snapshot reads the five tables through the reset transaction, after the
// table locks, so the archive matches exactly what is cleared.
func snapshot(tx *gorm.DB, now time.Time) (*SeasonSnapshot, error) {
	snap := &SeasonSnapshot{TakenAt: now}
	loads := []struct {
		dest  any
		order string
	}{
		{&snap.Profiles, "xp_total DESC, created_at ASC, user_id ASC"},
		{&snap.Badges, "user_id ASC, code ASC"},
		{&snap.Ledger, "created_at ASC, id ASC"},
		{&snap.Sessions, "start_time ASC, id ASC"},
		{&snap.Leads, "created_at ASC, id ASC"},
	}
	for _, l := range loads {
		if err := tx.Order(l.order).Find(l.dest).Error; err != nil {
			return nil, err
		}
	}
	return snap, nil
}
