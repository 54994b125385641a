package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agency-gamification/models"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// NormalizeClientUsername trims whitespace and a leading "@".
func NormalizeClientUsername(raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
}

func leadSlug(username string) string {
	if s := slug.Make(username); s != "" {
		return s
	}
	return strings.ToLower(username)
}

type LeadService struct {
	*Core
}

func NewLeadService(core *Core) *LeadService {
	return &LeadService{Core: core}
}

// DeclareLead records a pending lead. The same client on the same platform
// cannot be pending twice.
func (s *LeadService) DeclareLead(ctx context.Context, clientUsername string, platform models.Platform, finderID models.UserID) (*models.HunterLead, error) {
	name := NormalizeClientUsername(clientUsername)
	if name == "" {
		return nil, invalid("clientUsername", "is required")
	}
	platform = models.Platform(strings.ToLower(strings.TrimSpace(string(platform))))
	if !platform.Valid() {
		return nil, invalid("platform", fmt.Sprintf("unknown platform %q", platform))
	}
	if finderID == "" {
		return nil, invalid("finderId", "is required")
	}

	var lead *models.HunterLead
	err := s.write(ctx, "declare lead", []string{TopicPendingLeads}, func(tx *gorm.DB, now time.Time) error {
		key := leadSlug(name)
		var dup int64
		if err := tx.Model(&models.HunterLead{}).
			Where("client_slug = ? AND platform = ? AND status = ?", key, platform, models.LeadPending).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return fmt.Errorf("lead %s on %s is already pending: %w", name, platform, ErrConflict)
		}
		lead = &models.HunterLead{
			ClientUsername: name,
			ClientSlug:     key,
			Platform:       platform,
			FinderID:       finderID,
			Status:         models.LeadPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.Create(lead).Error
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// ListPending returns pending leads oldest first.
func (s *LeadService) ListPending(ctx context.Context) ([]models.HunterLead, error) {
	var leads []models.HunterLead
	if err := s.DB.WithContext(ctx).
		Where("status = ?", models.LeadPending).
		Order("created_at ASC, id ASC").
		Find(&leads).Error; err != nil {
		return nil, storeErr("list pending leads", err)
	}
	return leads, nil
}

// ValidateLead decides a pending lead. Approval awards the finder
// LeadApprovedXP and stores the effective amount on the lead. A decided
// lead is never decided again.
func (s *LeadService) ValidateLead(ctx context.Context, leadID string, approved bool, reviewer models.UserID) (*models.HunterLead, error) {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return nil, invalid("id", "is required")
	}
	topics := []string{TopicPendingLeads}
	if approved {
		topics = append(topics, TopicLeaderboard, TopicActivity)
	}
	var lead models.HunterLead
	err := s.write(ctx, "validate lead", topics, func(tx *gorm.DB, now time.Time) error {
		err := s.forUpdate(tx).Where("id = ?", leadID).First(&lead).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lead %s: %w", leadID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if lead.Status.Terminal() {
			return fmt.Errorf("lead %s already %s: %w", leadID, lead.Status, ErrConflict)
		}

		status := models.LeadRejected
		var awarded int64
		if approved {
			status = models.LeadApproved
			entry, err := s.awardTx(tx, Award{
				UserID:      lead.FinderID,
				Action:      models.ActionLeadApproved,
				BaseAmount:  s.Rules.LeadApprovedXP,
				Description: fmt.Sprintf("Lead @%s approved (%s)", lead.ClientUsername, cases.Title(language.Und).String(string(lead.Platform))),
			}, now)
			if err != nil {
				return err
			}
			awarded = entry.XPGained
		}

		updates := map[string]any{
			"status":       status,
			"validated_at": now,
			"xp_awarded":   awarded,
			"updated_at":   now,
		}
		if reviewer != "" {
			updates["validated_by"] = reviewer
		}
		res := tx.Model(&models.HunterLead{}).
			Where("id = ? AND status = ?", lead.ID, models.LeadPending).
			UpdateColumns(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("lead %s decided concurrently: %w", leadID, ErrConflict)
		}
		lead.Status = status
		lead.ValidatedAt = &now
		lead.XPAwarded = awarded
		lead.UpdatedAt = now
		if reviewer != "" {
			r := reviewer
			lead.ValidatedBy = &r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &lead, nil
}
