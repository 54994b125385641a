package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// XPPerLevel is the linear level step: level = floor(xp / XPPerLevel) + 1.
const XPPerLevel = 100

// LevelForXP derives the level from total XP. Level is never stored as an
// independent source of truth.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// GamificationProfile is the per-user aggregate (one row per user, upserted).
type GamificationProfile struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         UserID     `gorm:"uniqueIndex;size:64;not null" json:"user_id"`
	Username       string     `gorm:"size:120" json:"username"`
	SearchKey      string     `gorm:"size:120;index" json:"-"` // ascii-folded lower-case username
	XPTotal        int64      `gorm:"not null;default:0;index" json:"xp_total"`
	Level          int        `gorm:"not null;default:1" json:"level"`
	CurrentStreak  int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak  int        `gorm:"not null;default:0" json:"longest_streak"`
	LastStreakDay  string     `gorm:"size:10" json:"last_streak_day,omitempty"` // YYYY-MM-DD, local
	RoleMultiplier float64    `gorm:"not null;default:1" json:"role_multiplier"`
	LastActiveAt   *time.Time `gorm:"index" json:"last_active_at"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Badges []string `gorm:"-" json:"badges"`
}

func (GamificationProfile) TableName() string {
	return "gamification_profiles"
}

func (p *GamificationProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.RoleMultiplier == 0 {
		p.RoleMultiplier = 1
	}
	if p.Level == 0 {
		p.Level = LevelForXP(p.XPTotal)
	}
	return nil
}

// Badge codes.
const (
	BadgeNightOwl = "night_owl"
)

// ProfileBadge is one awarded badge. (user_id, code) is unique so awarding
// an already-held badge is a no-op.
type ProfileBadge struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    UserID    `gorm:"size:64;not null;uniqueIndex:idx_profile_badge" json:"user_id"`
	Code      string    `gorm:"size:64;not null;uniqueIndex:idx_profile_badge" json:"code"`
	AwardedAt time.Time `json:"awarded_at"`
}

func (ProfileBadge) TableName() string {
	return "profile_badges"
}

func (b *ProfileBadge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
