package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agency-gamification/models"

	"gorm.io/gorm"
)

// OverlapsNightWindow reports whether [start, end) shares at least one
// instant with a nightly [fromHour:00, toHour:00) window in loc. An empty
// interval overlaps nothing.
func OverlapsNightWindow(start, end time.Time, loc *time.Location, fromHour, toHour int) bool {
	if !end.After(start) {
		return false
	}
	s, e := start.In(loc), end.In(loc)
	day := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	last := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc)
	for !day.After(last) {
		ws := time.Date(day.Year(), day.Month(), day.Day(), fromHour, 0, 0, 0, loc)
		we := time.Date(day.Year(), day.Month(), day.Day(), toHour, 0, 0, 0, loc)
		if start.Before(we) && end.After(ws) {
			return true
		}
		day = day.AddDate(0, 0, 1)
	}
	return false
}

// SessionMinutes rounds elapsed time to whole minutes, half up.
func SessionMinutes(elapsed time.Duration) int64 {
	if elapsed <= 0 {
		return 0
	}
	return int64((elapsed + 30*time.Second) / time.Minute)
}

// SessionPoints converts minutes into XP at perHour, rounding half up.
func SessionPoints(minutes, perHour int64) int64 {
	if minutes <= 0 || perHour <= 0 {
		return 0
	}
	return (minutes*perHour + 30) / 60
}

type ShiftService struct {
	*Core
}

func NewShiftService(core *Core) *ShiftService {
	return &ShiftService{Core: core}
}

// ShiftResult is a stopped session and the ledger entries it produced.
type ShiftResult struct {
	Session *models.WorkSession    `json:"session"`
	Awards  []models.XPActivityLog `json:"awards"`
}

// StartShift opens a session. A second start while one is open is a conflict.
func (s *ShiftService) StartShift(ctx context.Context, userID models.UserID, username string) (*models.WorkSession, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	var session *models.WorkSession
	err := s.write(ctx, "start shift", []string{TopicShifts}, func(tx *gorm.DB, now time.Time) error {
		if _, err := s.ensureProfileTx(tx, userID, username, now); err != nil {
			return err
		}
		var open int64
		if err := tx.Model(&models.WorkSession{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("shift already active for %s: %w", userID, ErrConflict)
		}
		session = &models.WorkSession{
			UserID:    userID,
			StartTime: now,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// StopShift closes the active session, then awards session XP and, if any
// instant fell in the night window, the night owl bonus and badge.
func (s *ShiftService) StopShift(ctx context.Context, userID models.UserID) (*ShiftResult, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	res := &ShiftResult{Awards: []models.XPActivityLog{}}
	topics := []string{TopicShifts, TopicLeaderboard, TopicActivity}
	err := s.write(ctx, "stop shift", topics, func(tx *gorm.DB, now time.Time) error {
		var session models.WorkSession
		err := s.forUpdate(tx).
			Where("user_id = ? AND is_active = ?", userID, true).
			First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no active shift for %s: %w", userID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		end := now
		if end.Before(session.StartTime) {
			end = session.StartTime
		}
		minutes := SessionMinutes(end.Sub(session.StartTime))
		points := SessionPoints(minutes, s.Rules.ShiftXPPerHour)
		nightOwl := OverlapsNightWindow(session.StartTime, end, s.loc, s.Rules.NightStartHour, s.Rules.NightEndHour)

		upd := tx.Model(&models.WorkSession{}).
			Where("id = ? AND is_active = ?", session.ID, true).
			UpdateColumns(map[string]any{
				"end_time":         end,
				"duration_minutes": minutes,
				"points_earned":    points,
				"night_owl":        nightOwl,
				"is_active":        false,
				"updated_at":       now,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected != 1 {
			return fmt.Errorf("shift %s already stopped: %w", session.ID, ErrConflict)
		}
		session.EndTime = &end
		session.DurationMinutes = minutes
		session.NightOwl = nightOwl
		session.IsActive = false
		session.UpdatedAt = now
		res.Session = &session

		if points == 0 && !nightOwl {
			return nil
		}
		prof, err := s.ensureProfileTx(tx, userID, "", now)
		if err != nil {
			return err
		}
		if points > 0 {
			entry, err := s.applyAwardTx(tx, prof, Award{
				UserID:      userID,
				Action:      models.ActionWorkSession,
				BaseAmount:  points,
				Description: fmt.Sprintf("Shift of %d min", minutes),
			}, now)
			if err != nil {
				return err
			}
			res.Awards = append(res.Awards, *entry)
			// Store the effective amount so the session agrees with the ledger.
			session.PointsEarned = entry.XPGained
			if err := tx.Model(&models.WorkSession{}).Where("id = ?", session.ID).
				UpdateColumn("points_earned", entry.XPGained).Error; err != nil {
				return err
			}
		}
		if nightOwl {
			entry, err := s.applyAwardTx(tx, prof, Award{
				UserID:      userID,
				Action:      models.ActionNightOwlBonus,
				BaseAmount:  s.Rules.NightOwlBonusXP,
				Description: "Night owl bonus",
			}, now)
			if err != nil {
				return err
			}
			res.Awards = append(res.Awards, *entry)
			if err := s.awardBadgeTx(tx, userID, models.BadgeNightOwl, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetActiveSession returns the open session or nil.
func (s *ShiftService) GetActiveSession(ctx context.Context, userID models.UserID) (*models.WorkSession, error) {
	var session models.WorkSession
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("active session", err)
	}
	return &session, nil
}
