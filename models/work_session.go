package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkSession is one shift. At most one row per user has IsActive set; the
// partial unique index enforces it at the store.
type WorkSession struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	UserID          UserID     `gorm:"size:64;not null;index;uniqueIndex:idx_one_active_session,where:is_active = true" json:"user_id"`
	StartTime       time.Time  `gorm:"not null" json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes int64      `gorm:"not null;default:0" json:"duration_minutes"`
	PointsEarned    int64      `gorm:"not null;default:0" json:"points_earned"`
	NightOwl        bool       `gorm:"not null;default:false" json:"night_owl"`
	IsActive        bool       `gorm:"not null;default:false;index" json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (WorkSession) TableName() string {
	return "work_sessions"
}

func (s *WorkSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Elapsed is always recomputed from StartTime.
func (s *WorkSession) Elapsed(now time.Time) time.Duration {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	if end.Before(s.StartTime) {
		return 0
	}
	return end.Sub(s.StartTime)
}
