package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"agency-gamification/config"
	"agency-gamification/database"
	"agency-gamification/models"

	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Core holds what every gamification service shares: the store, the rules,
// the change notifier, the clock, and the season gate.
//
// Every write runs under gate.RLock inside one transaction; a season reset
// takes gate.Lock so no award can straddle the reset boundary.
type Core struct {
	DB       *gorm.DB
	Rules    config.Rules
	Notifier *Notifier
	Now      func() time.Time

	loc  *time.Location
	gate sync.RWMutex
}

func NewCore(db *gorm.DB, rules config.Rules, notifier *Notifier) (*Core, error) {
	loc, err := rules.Location()
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &Core{
		DB:       db,
		Rules:    rules,
		Notifier: notifier,
		Now:      time.Now,
		loc:      loc,
	}, nil
}

func (c *Core) now() time.Time {
	return c.Now().UTC()
}

func (c *Core) Location() *time.Location { return c.loc }

// write runs fn in a transaction and, after commit, publishes topics.
func (c *Core) write(ctx context.Context, op string, topics []string, fn func(tx *gorm.DB, now time.Time) error) error {
	if err := c.commit(ctx, fn); err != nil {
		return storeErr(op, err)
	}
	c.Notifier.Publish(topics...)
	return nil
}

// commit holds the season gate for the transaction only. Publishing happens
// outside it so a slow subscriber or relay never delays a reset.
func (c *Core) commit(ctx context.Context, fn func(tx *gorm.DB, now time.Time) error) error {
	c.gate.RLock()
	defer c.gate.RUnlock()

	now := c.now()
	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, now)
	})
}

// forUpdate adds a row lock where the dialect supports one.
func (c *Core) forUpdate(tx *gorm.DB) *gorm.DB {
	if database.IsPostgres(c.DB) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// ensureProfileTx is get-or-create through an upsert, so concurrent first
// touches of a user never produce two profiles. The returned row is locked
// for the rest of the transaction.
func (c *Core) ensureProfileTx(tx *gorm.DB, userID models.UserID, username string, now time.Time) (*models.GamificationProfile, error) {
	username = strings.TrimSpace(username)
	fresh := models.GamificationProfile{
		UserID:         userID,
		Username:       username,
		SearchKey:      searchKey(username),
		RoleMultiplier: 1,
		Level:          1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, err
	}

	var prof models.GamificationProfile
	if err := c.forUpdate(tx).Where("user_id = ?", userID).First(&prof).Error; err != nil {
		return nil, err
	}
	if username != "" && username != prof.Username {
		prof.Username = username
		prof.SearchKey = searchKey(username)
		if err := tx.Model(&models.GamificationProfile{}).
			Where("id = ?", prof.ID).
			UpdateColumns(map[string]any{"username": prof.Username, "search_key": prof.SearchKey}).Error; err != nil {
			return nil, err
		}
	}
	return &prof, nil
}

// awardBadgeTx adds a badge; holding it already is a no-op.
func (c *Core) awardBadgeTx(tx *gorm.DB, userID models.UserID, code string, now time.Time) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "code"}},
		DoNothing: true,
	}).Create(&models.ProfileBadge{UserID: userID, Code: code, AwardedAt: now}).Error
}

// badgesFor loads badge codes grouped by user.
func badgesFor(tx *gorm.DB, userIDs []models.UserID) (map[models.UserID][]string, error) {
	out := make(map[models.UserID][]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []models.ProfileBadge
	if err := tx.Where("user_id IN ?", userIDs).Order("awarded_at ASC, code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, b := range rows {
		out[b.UserID] = append(out[b.UserID], b.Code)
	}
	return out, nil
}

func searchKey(username string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(username)))
}
