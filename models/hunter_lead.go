package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LeadStatus string

const (
	LeadPending  LeadStatus = "pending"
	LeadApproved LeadStatus = "approved"
	LeadRejected LeadStatus = "rejected"
)

func (s LeadStatus) Terminal() bool {
	return s == LeadApproved || s == LeadRejected
}

// Platform is the marketing channel a lead was found on.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformYouTube   Platform = "youtube"
	PlatformSnapchat  Platform = "snapchat"
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformTelegram  Platform = "telegram"
	PlatformWebsite   Platform = "website"
	PlatformReferral  Platform = "referral"
	PlatformOther     Platform = "other"
)

var Platforms = []Platform{
	PlatformInstagram, PlatformTikTok, PlatformFacebook, PlatformTwitter,
	PlatformLinkedIn, PlatformYouTube, PlatformSnapchat, PlatformWhatsApp,
	PlatformTelegram, PlatformWebsite, PlatformReferral, PlatformOther,
}

func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// HunterLead is a prospective client declared by staff and reviewed by an
// admin. Status moves pending -> approved|rejected and never again.
type HunterLead struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ClientUsername string     `gorm:"size:120;not null" json:"client_username"`
	ClientSlug     string     `gorm:"size:120;not null;index" json:"-"`
	Platform       Platform   `gorm:"size:32;not null" json:"platform"`
	FinderID       UserID     `gorm:"size:64;not null;index" json:"finder_id"`
	Status         LeadStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	ValidatedBy    *UserID    `gorm:"size:64" json:"validated_by,omitempty"`
	ValidatedAt    *time.Time `json:"validated_at"`
	XPAwarded      int64      `gorm:"not null;default:0" json:"xp_awarded"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (HunterLead) TableName() string {
	return "hunter_leads"
}

func (l *HunterLead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
