package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"agency-gamification/models"

	"gorm.io/gorm"
)

type ProfileService struct {
	*Core
}

func NewProfileService(core *Core) *ProfileService {
	return &ProfileService{Core: core}
}

// GetProfile returns one profile with its badges.
func (s *ProfileService) GetProfile(ctx context.Context, userID models.UserID) (*models.GamificationProfile, error) {
	var prof models.GamificationProfile
	db := s.DB.WithContext(ctx)
	if err := db.Where("user_id = ?", userID).First(&prof).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		return nil, storeErr("get profile", err)
	}
	badges, err := badgesFor(db, []models.UserID{userID})
	if err != nil {
		return nil, storeErr("get profile badges", err)
	}
	prof.Badges = nonNil(badges[userID])
	return &prof, nil
}

// SetRoleMultiplier changes the multiplier applied to future awards. Past
// ledger entries keep the amount they were awarded with.
func (s *ProfileService) SetRoleMultiplier(ctx context.Context, userID models.UserID, multiplier float64) (*models.GamificationProfile, error) {
	if math.IsNaN(multiplier) || multiplier <= 0 || multiplier > s.Rules.MaxRoleMultiplier {
		return nil, invalid("multiplier", fmt.Sprintf("must be in (0, %g]", s.Rules.MaxRoleMultiplier))
	}
	var prof *models.GamificationProfile
	err := s.write(ctx, "set role multiplier", []string{TopicLeaderboard}, func(tx *gorm.DB, now time.Time) error {
		var err error
		prof, err = s.ensureProfileTx(tx, userID, "", now)
		if err != nil {
			return err
		}
		prof.RoleMultiplier = multiplier
		prof.UpdatedAt = now
		return tx.Model(&models.GamificationProfile{}).
			Where("id = ?", prof.ID).
			UpdateColumns(map[string]any{"role_multiplier": multiplier, "updated_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return prof, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
