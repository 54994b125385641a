package services

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"
	"time"

	"agency-gamification/models"

	"gorm.io/gorm"
)

// Award describes one XP-earning event before the role multiplier is applied.
type Award struct {
	UserID      models.UserID
	Username    string
	Action      models.ActionType
	BaseAmount  int64
	Description string
}

func (a Award) validate() error {
	if a.UserID == "" {
		return invalid("userId", "is required")
	}
	if !a.Action.Valid() {
		return invalid("actionType", fmt.Sprintf("unknown action %q", a.Action))
	}
	if a.BaseAmount < 0 {
		return invalid("amount", "must not be negative")
	}
	return nil
}

// ApplyMultiplier converts a base amount to effective XP, rounding half up.
// Results beyond int64 saturate at math.MaxInt64.
func ApplyMultiplier(base int64, multiplier float64) int64 {
	if base <= 0 || !(multiplier > 0) {
		return 0
	}
	v := math.Floor(float64(base)*multiplier + 0.5)
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// LedgerService owns the XP ledger and the aggregate it feeds.
type LedgerService struct {
	*Core
}

func NewLedgerService(core *Core) *LedgerService {
	return &LedgerService{Core: core}
}

// AwardXP appends one ledger entry with the effective amount and increments
// the user's aggregate in the same transaction. The profile is created on
// first award.
func (s *LedgerService) AwardXP(ctx context.Context, a Award) (*models.XPActivityLog, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	if a.BaseAmount > s.Rules.MaxGrantXP {
		return nil, invalid("amount", fmt.Sprintf("must not exceed %d", s.Rules.MaxGrantXP))
	}
	var entry *models.XPActivityLog
	err := s.write(ctx, "award xp", []string{TopicLeaderboard, TopicActivity}, func(tx *gorm.DB, now time.Time) error {
		var err error
		entry, err = s.awardTx(tx, a, now)
		return err
	})
	if err != nil {
		slog.Error("xp award failed",
			slog.String("user_id", a.UserID.String()),
			slog.String("action", string(a.Action)),
			slog.Any("error", err))
		return nil, err
	}
	return entry, nil
}

// RecordOrderEvent awards XP for an order lifecycle event ("created" or "paid").
func (s *LedgerService) RecordOrderEvent(ctx context.Context, userID models.UserID, username, orderID, event string) (*models.XPActivityLog, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, invalid("orderId", "is required")
	}
	a := Award{UserID: userID, Username: username}
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "created":
		a.Action = models.ActionOrderCreated
		a.BaseAmount = s.Rules.OrderCreatedXP
		a.Description = fmt.Sprintf("Order %s created", orderID)
	case "paid":
		a.Action = models.ActionOrderPaid
		a.BaseAmount = s.Rules.OrderPaidXP
		a.Description = fmt.Sprintf("Order %s paid", orderID)
	default:
		return nil, invalid("event", "must be created or paid")
	}
	return s.AwardXP(ctx, a)
}

// awardTx is the single serialized update path for a user's aggregate.
func (c *Core) awardTx(tx *gorm.DB, a Award, now time.Time) (*models.XPActivityLog, error) {
	prof, err := c.ensureProfileTx(tx, a.UserID, a.Username, now)
	if err != nil {
		return nil, err
	}
	return c.applyAwardTx(tx, prof, a, now)
}

// applyAwardTx expects prof to be locked by the caller's transaction.
func (c *Core) applyAwardTx(tx *gorm.DB, prof *models.GamificationProfile, a Award, now time.Time) (*models.XPActivityLog, error) {
	amount := ApplyMultiplier(a.BaseAmount, prof.RoleMultiplier)
	if amount > math.MaxInt64-prof.XPTotal {
		return nil, invalid("amount", "would overflow the XP total")
	}
	entry := &models.XPActivityLog{
		UserID:      prof.UserID,
		Username:    prof.Username,
		ActionType:  a.Action,
		XPGained:    amount,
		Description: a.Description,
		CreatedAt:   now,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	res := tx.Model(&models.GamificationProfile{}).
		Where("id = ?", prof.ID).
		UpdateColumns(map[string]any{
			"xp_total":   gorm.Expr("xp_total + ?", amount),
			"level":      gorm.Expr("(xp_total + ?) / ? + 1", amount, models.XPPerLevel),
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, fmt.Errorf("profile %s vanished during award", prof.UserID)
	}
	prof.XPTotal += amount
	prof.Level = models.LevelForXP(prof.XPTotal)
	prof.UpdatedAt = now
	return entry, nil
}

// FeedQuery bounds an activity feed read.
type FeedQuery struct {
	Limit  int
	Since  *time.Time
	UserID models.UserID
}

const feedPageSize = 50

// ActivityFeed yields ledger entries newest first, at most q.Limit of them.
// The sequence is lazy (pages are fetched as it is consumed) and restartable:
// each range over it starts again from the newest entry.
func (s *LedgerService) ActivityFeed(ctx context.Context, q FeedQuery) iter.Seq2[models.XPActivityLog, error] {
	limit := s.clampFeedLimit(q.Limit)
	return func(yield func(models.XPActivityLog, error) bool) {
		var (
			last    *models.XPActivityLog
			emitted int
		)
		for emitted < limit {
			page := min(feedPageSize, limit-emitted)
			db := s.DB.WithContext(ctx).Model(&models.XPActivityLog{})
			if q.Since != nil {
				db = db.Where("created_at > ?", q.Since.UTC())
			}
			if q.UserID != "" {
				db = db.Where("user_id = ?", q.UserID)
			}
			if last != nil {
				db = db.Where("(created_at < ? OR (created_at = ? AND id < ?))", last.CreatedAt, last.CreatedAt, last.ID)
			}
			var rows []models.XPActivityLog
			if err := db.Order("created_at DESC, id DESC").Limit(page).Find(&rows).Error; err != nil {
				yield(models.XPActivityLog{}, storeErr("activity feed", err))
				return
			}
			for i := range rows {
				if !yield(rows[i], nil) {
					return
				}
			}
			emitted += len(rows)
			if len(rows) < page {
				return
			}
			last = &rows[len(rows)-1]
		}
	}
}

// RecentActivity collects ActivityFeed into a slice.
func (s *LedgerService) RecentActivity(ctx context.Context, q FeedQuery) ([]models.XPActivityLog, error) {
	out := make([]models.XPActivityLog, 0, s.clampFeedLimit(q.Limit))
	for entry, err := range s.ActivityFeed(ctx, q) {
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *LedgerService) clampFeedLimit(n int) int {
	if n <= 0 {
		return s.Rules.FeedDefaultLimit
	}
	return min(n, s.Rules.FeedMaxLimit)
}

// LedgerTotal sums a user's ledger; at rest it equals the profile's XPTotal.
func (s *LedgerService) LedgerTotal(ctx context.Context, userID models.UserID) (int64, error) {
	var total int64
	err := s.DB.WithContext(ctx).Model(&models.XPActivityLog{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(xp_gained), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, storeErr("ledger total", err)
	}
	return total, nil
}
