package services

import (
	"context"
	"fmt"
	"time"

	"agency-gamification/models"

	"gorm.io/gorm"
)

const dayLayout = "2006-01-02"

// IsOnline reports whether lastActiveAt is strictly within threshold of now.
func IsOnline(lastActiveAt *time.Time, now time.Time, threshold time.Duration) bool {
	return lastActiveAt != nil && now.Sub(*lastActiveAt) < threshold
}

// OnlineForViewer applies self-view optimism: the viewer always sees
// themselves online. Everyone else is threshold-based.
func OnlineForViewer(viewer models.UserID, p *models.GamificationProfile, now time.Time, threshold time.Duration) bool {
	if viewer != "" && p.UserID == viewer {
		return true
	}
	return IsOnline(p.LastActiveAt, now, threshold)
}

// NextStreak computes the streak after activity on day, given the last
// day with activity. Days are YYYY-MM-DD in the rules timezone.
func NextStreak(current int, lastDay, day, yesterday string) int {
	switch lastDay {
	case day:
		if current < 1 {
			return 1
		}
		return current
	case yesterday:
		return current + 1
	default:
		return 1
	}
}

type PresenceService struct {
	*Core
}

func NewPresenceService(core *Core) *PresenceService {
	return &PresenceService{Core: core}
}

// PingResult is the profile after a ping and the presence XP entry, if one
// was awarded.
type PingResult struct {
	Profile *models.GamificationProfile `json:"profile"`
	Award   *models.XPActivityLog       `json:"award,omitempty"`
}

// SendPresencePing persists now as the user's lastActiveAt, creating the
// profile if needed. Presence XP is awarded at most once per award gap, so
// the ping is safe to repeat.
func (s *PresenceService) SendPresencePing(ctx context.Context, userID models.UserID, username string) (*PingResult, error) {
	if userID == "" {
		return nil, invalid("userId", "is required")
	}
	res := &PingResult{}
	topics := []string{TopicPresence, TopicLeaderboard, TopicActivity}
	err := s.write(ctx, "presence ping", topics, func(tx *gorm.DB, now time.Time) error {
		prof, err := s.ensureProfileTx(tx, userID, username, now)
		if err != nil {
			return err
		}
		prev := prof.LastActiveAt

		local := now.In(s.loc)
		day := local.Format(dayLayout)
		yesterday := local.AddDate(0, 0, -1).Format(dayLayout)
		streak := NextStreak(prof.CurrentStreak, prof.LastStreakDay, day, yesterday)
		longest := max(prof.LongestStreak, streak)

		if err := tx.Model(&models.GamificationProfile{}).
			Where("id = ?", prof.ID).
			UpdateColumns(map[string]any{
				"last_active_at":  now,
				"current_streak":  streak,
				"longest_streak":  longest,
				"last_streak_day": day,
				"updated_at":      now,
			}).Error; err != nil {
			return err
		}
		prof.LastActiveAt = &now
		prof.CurrentStreak = streak
		prof.LongestStreak = longest
		prof.LastStreakDay = day

		if s.Rules.PresencePingXP > 0 && (prev == nil || now.Sub(*prev) >= s.Rules.PresenceAwardGap) {
			entry, err := s.applyAwardTx(tx, prof, Award{
				UserID:      userID,
				Action:      models.ActionPresencePing,
				BaseAmount:  s.Rules.PresencePingXP,
				Description: "Active on the dashboard",
			}, now)
			if err != nil {
				return err
			}
			res.Award = entry
		}
		res.Profile = prof
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SweepPresence counts profiles that went offline during the last window
// and, if any did, tells consumers to refresh presence views.
func (s *PresenceService) SweepPresence(ctx context.Context, window time.Duration) (int64, error) {
	now := s.now()
	cutoff := now.Add(-s.Rules.OnlineThreshold)
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.GamificationProfile{}).
		Where("last_active_at > ? AND last_active_at <= ?", cutoff.Add(-window), cutoff).
		Count(&n).Error
	if err != nil {
		return 0, storeErr("presence sweep", err)
	}
	if n > 0 {
		s.Notifier.Publish(TopicPresence, TopicLeaderboard)
	}
	return n, nil
}

// DecayStreaks zeroes streaks whose last active day is before yesterday.
func (s *PresenceService) DecayStreaks(ctx context.Context) (int64, error) {
	var affected int64
	err := s.write(ctx, "decay streaks", []string{TopicLeaderboard}, func(tx *gorm.DB, now time.Time) error {
		yesterday := now.In(s.loc).AddDate(0, 0, -1).Format(dayLayout)
		res := tx.Model(&models.GamificationProfile{}).
			Where("current_streak > 0 AND (last_streak_day IS NULL OR last_streak_day < ?)", yesterday).
			UpdateColumns(map[string]any{"current_streak": 0, "updated_at": now})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("decay streaks: %w", err)
	}
	return affected, nil
}
