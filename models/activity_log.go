package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActionType string

const (
	ActionOrderCreated  ActionType = "order_created"
	ActionOrderPaid     ActionType = "order_paid"
	ActionLeadApproved  ActionType = "lead_approved"
	ActionWorkSession   ActionType = "work_session"
	ActionPresencePing  ActionType = "presence_ping"
	ActionNightOwlBonus ActionType = "night_owl_bonus"
	ActionManualGrant   ActionType = "manual_grant"
)

var actionTypes = map[ActionType]bool{
	ActionOrderCreated:  true,
	ActionOrderPaid:     true,
	ActionLeadApproved:  true,
	ActionWorkSession:   true,
	ActionPresencePing:  true,
	ActionNightOwlBonus: true,
	ActionManualGrant:   true,
}

func (a ActionType) Valid() bool { return actionTypes[a] }

// XPActivityLog is an immutable ledger entry. XPGained is the effective
// amount, after the role multiplier was applied at award time.
type XPActivityLog struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      UserID     `gorm:"size:64;not null;index" json:"user_id"`
	Username    string     `gorm:"size:120" json:"username"`
	ActionType  ActionType `gorm:"size:32;not null;index" json:"action_type"`
	XPGained    int64      `gorm:"not null" json:"xp_gained"`
	Description string     `gorm:"size:255" json:"description"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
}

func (XPActivityLog) TableName() string {
	return "xp_activity_logs"
}

func (e *XPActivityLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
