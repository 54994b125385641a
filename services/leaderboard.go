package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"agency-gamification/models"

	lru "github.com/hashicorp/golang-lru"
)

// LeaderboardQuery bounds a leaderboard read. Query matches a username
// substring ignoring case and accents.
type LeaderboardQuery struct {
	Limit int
	Query string
}

// LeaderboardRow is one profile with its global rank and derived presence.
type LeaderboardRow struct {
	Rank               int           `json:"rank"`
	UserID             models.UserID `json:"user_id"`
	Username           string        `json:"username"`
	XPTotal            int64         `json:"xp_total"`
	Level              int           `json:"level"`
	CurrentStreak      int           `json:"current_streak"`
	LongestStreak      int           `json:"longest_streak"`
	RoleMultiplier     float64       `json:"role_multiplier"`
	Badges             []string      `json:"badges"`
	LastActiveAt       *time.Time    `json:"last_active_at"`
	SecondsSinceActive *int64        `json:"seconds_since_active"`
	IsOnline           bool          `json:"is_online"`
	CreatedAt          time.Time     `json:"created_at"`
}

type rankedProfile struct {
	models.GamificationProfile
	BoardRank int `gorm:"column:board_rank"`
}

// LeaderboardService projects profiles into a ranked list. Results are
// cached per (limit, query) until the next leaderboard change event.
//
// mu makes "is this result still current" and the cache insert one step
// relative to invalidate; otherwise a read that raced a write could be
// cached after the purge and mask that write.
type LeaderboardService struct {
	*Core

	cache *lru.Cache
	mu    sync.Mutex
	gen   uint64
}

func NewLeaderboardService(core *Core) (*LeaderboardService, error) {
	cache, err := lru.New(max(core.Rules.LeaderboardCacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("leaderboard cache: %w", err)
	}
	s := &LeaderboardService{Core: core, cache: cache}
	core.Notifier.OnPublish(func(ev Event) {
		if ev.Topic == TopicLeaderboard {
			s.invalidate()
		}
	})
	return s, nil
}

func (s *LeaderboardService) invalidate() {
	s.mu.Lock()
	s.gen++
	s.cache.Purge()
	s.mu.Unlock()
}

func (s *LeaderboardService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// store caches rows only if no invalidation happened since gen was read.
func (s *LeaderboardService) store(key string, gen uint64, rows []rankedProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cache.Add(key, rows)
	}
}

func (s *LeaderboardService) clampLimit(n int) int {
	if n <= 0 {
		return s.Rules.LeaderboardDefaultLimit
	}
	return min(n, s.Rules.LeaderboardMaxLimit)
}

// GetLeaderboard returns profiles by xpTotal descending; ties go to the
// earlier createdAt, then the lower user id.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, q LeaderboardQuery) ([]models.GamificationProfile, error) {
	ranked, err := s.ranked(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.GamificationProfile, len(ranked))
	for i := range ranked {
		out[i] = ranked[i].GamificationProfile
	}
	return out, nil
}

// LeaderboardView is GetLeaderboard with presence derived at read time for
// viewer. The viewer always sees themselves online.
func (s *LeaderboardService) LeaderboardView(ctx context.Context, viewer models.UserID, q LeaderboardQuery) ([]LeaderboardRow, error) {
	ranked, err := s.ranked(ctx, q)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rows := make([]LeaderboardRow, len(ranked))
	for i := range ranked {
		p := &ranked[i].GamificationProfile
		row := LeaderboardRow{
			Rank:           ranked[i].BoardRank,
			UserID:         p.UserID,
			Username:       p.Username,
			XPTotal:        p.XPTotal,
			Level:          models.LevelForXP(p.XPTotal),
			CurrentStreak:  p.CurrentStreak,
			LongestStreak:  p.LongestStreak,
			RoleMultiplier: p.RoleMultiplier,
			Badges:         nonNil(p.Badges),
			LastActiveAt:   p.LastActiveAt,
			IsOnline:       OnlineForViewer(viewer, p, now, s.Rules.OnlineThreshold),
			CreatedAt:      p.CreatedAt,
		}
		if p.LastActiveAt != nil {
			secs := max(int64(now.Sub(*p.LastActiveAt)/time.Second), 0)
			row.SecondsSinceActive = &secs
		}
		rows[i] = row
	}
	return rows, nil
}

func (s *LeaderboardService) ranked(ctx context.Context, q LeaderboardQuery) ([]rankedProfile, error) {
	limit := s.clampLimit(q.Limit)
	needle := searchKey(q.Query)
	key := fmt.Sprintf("%d|%s", limit, needle)
	if v, ok := s.cache.Get(key); ok {
		return v.([]rankedProfile), nil
	}

	gen := s.generation()
	db := s.DB.WithContext(ctx)
	sub := db.Model(&models.GamificationProfile{}).
		Select("*, ROW_NUMBER() OVER (ORDER BY xp_total DESC, created_at ASC, user_id ASC) AS board_rank")
	query := db.Table("(?) AS ranked", sub)
	if needle != "" {
		query = query.Where(`search_key LIKE ? ESCAPE '\'`, "%"+escapeLike(needle)+"%")
	}
	var rows []rankedProfile
	if err := query.Order("board_rank ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, storeErr("leaderboard", err)
	}

	ids := make([]models.UserID, len(rows))
	for i := range rows {
		ids[i] = rows[i].UserID
	}
	badges, err := badgesFor(db, ids)
	if err != nil {
		return nil, storeErr("leaderboard badges", err)
	}
	for i := range rows {
		rows[i].Badges = nonNil(badges[rows[i].UserID])
	}

	s.store(key, gen, rows)
	return rows, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
