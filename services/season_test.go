package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"agency-gamification/models"
	"agency-gamification/services/mock"

	"go.uber.org/mock/gomock"
)

// seedSeason gives "u1" ledger entries, a badge, a finished shift and a
// pending lead. "u2" only has presence XP.
func seedSeason(t *testing.T, g *Gamification, clock *testClock) {
	t.Helper()
	ctx := context.Background()

	if _, err := g.Presence.SendPresencePing(ctx, "u2", "Bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Profiles.SetRoleMultiplier(ctx, "u1", 2); err != nil {
		t.Fatal(err)
	}
	clock.Set(time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC))
	if _, err := g.Presence.SendPresencePing(ctx, "u1", "Alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Shifts.StartShift(ctx, "u1", "Alice"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)
	if _, err := g.Shifts.StopShift(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Leads.DeclareLead(ctx, "acme", models.PlatformInstagram, "u1"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
}

func TestResetSeasonArchivesThenClears(t *testing.T) {
	ctrl := gomock.NewController(t)
	archiver := mock.NewMockArchiver(ctrl)
	g, clock := newTestGamification(t, archiver)
	ctx := context.Background()
	seedSeason(t, g, clock)

	var snap SeasonSnapshot
	archiver.EXPECT().
		ArchiveSeason(gomock.Any(), ArchiveKey(clock.Now()), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, payload []byte) error {
			return json.Unmarshal(payload, &snap)
		})

	events, cancel := g.Core.Notifier.Subscribe(nil, 16)
	defer cancel()

	res, err := g.Season.ResetSeason(ctx, "admin", "Admin")
	if err != nil {
		t.Fatalf("ResetSeason: %v", err)
	}
	if res.ArchiveKey != "seasons/20260311T020100Z.json" {
		t.Errorf("archive key = %q", res.ArchiveKey)
	}
	if res.ProfilesReset != 2 || res.BadgesCleared != 1 || res.SessionsCleared != 1 || res.LeadsCleared != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(snap.Profiles) != 2 || int64(len(snap.Ledger)) != res.LedgerCleared || len(snap.Leads) != 1 {
		t.Errorf("snapshot profiles=%d ledger=%d leads=%d", len(snap.Profiles), len(snap.Ledger), len(snap.Leads))
	}

	for _, user := range []models.UserID{"u1", "u2", "admin"} {
		prof, err := g.Profiles.GetProfile(ctx, user)
		if err != nil {
			t.Fatalf("GetProfile(%s): %v", user, err)
		}
		if prof.XPTotal != 0 || prof.Level != 1 || prof.CurrentStreak != 0 || prof.LongestStreak != 0 || len(prof.Badges) != 0 {
			t.Errorf("%s not reset: %+v", user, prof)
		}
	}
	u1, _ := g.Profiles.GetProfile(ctx, "u1")
	if u1.RoleMultiplier != 2 || u1.LastActiveAt == nil {
		t.Errorf("u1 lost non-season state: %+v", u1)
	}

	for name, model := range map[string]any{
		"ledger":   &models.XPActivityLog{},
		"badges":   &models.ProfileBadge{},
		"sessions": &models.WorkSession{},
		"leads":    &models.HunterLead{},
	} {
		var n int64
		g.Core.DB.Model(model).Count(&n)
		if n != 0 {
			t.Errorf("%s left with %d rows", name, n)
		}
	}

	board, err := g.Leaderboard.GetLeaderboard(ctx, LeaderboardQuery{})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range board {
		if p.XPTotal != 0 {
			t.Errorf("board still shows %s with %d xp", p.UserID, p.XPTotal)
		}
	}

	seen := map[string]bool{}
	for len(seen) < len(AllTopics) {
		select {
		case ev := <-events:
			seen[ev.Topic] = true
		default:
			t.Fatalf("topics published = %v, want all of %v", seen, AllTopics)
		}
	}

	// The new season starts from an empty ledger.
	entry, err := g.Ledger.AwardXP(ctx, Award{UserID: "u1", Action: models.ActionManualGrant, BaseAmount: 5})
	if err != nil {
		t.Fatal(err)
	}
	if entry.XPGained != 10 {
		t.Errorf("post-reset award = %d, want 10 with multiplier kept", entry.XPGained)
	}
}

func TestResetSeasonAbortsWhenArchiveFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	archiver := mock.NewMockArchiver(ctrl)
	g, clock := newTestGamification(t, archiver)
	ctx := context.Background()
	seedSeason(t, g, clock)

	before, err := g.Ledger.LedgerTotal(ctx, "u1")
	if err != nil || before == 0 {
		t.Fatalf("seeded ledger total = %d, %v", before, err)
	}

	uploadErr := errors.New("bucket unavailable")
	archiver.EXPECT().ArchiveSeason(gomock.Any(), gomock.Any(), gomock.Any()).Return(uploadErr)

	if _, err := g.Season.ResetSeason(ctx, "admin", "Admin"); !errors.Is(err, uploadErr) {
		t.Fatalf("err = %v, want archive failure", err)
	}

	after, _ := g.Ledger.LedgerTotal(ctx, "u1")
	prof, _ := g.Profiles.GetProfile(ctx, "u1")
	if after != before || prof.XPTotal != before || len(prof.Badges) != 1 {
		t.Errorf("data changed by aborted reset: ledger %d->%d xp=%d badges=%v", before, after, prof.XPTotal, prof.Badges)
	}
	if _, err := g.Profiles.GetProfile(ctx, "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("aborted reset created requester profile: %v", err)
	}
}

func TestResetSeasonWithoutArchiver(t *testing.T) {
	g, clock := newTestGamification(t, nil)
	ctx := context.Background()
	seedSeason(t, g, clock)

	res, err := g.Season.ResetSeason(ctx, "", "")
	if err != nil {
		t.Fatalf("ResetSeason: %v", err)
	}
	if res.ArchiveKey != "" {
		t.Errorf("archive key = %q without an archiver", res.ArchiveKey)
	}
	if total, _ := g.Ledger.LedgerTotal(ctx, "u1"); total != 0 {
		t.Errorf("ledger total = %d after reset", total)
	}

	if _, err := g.Presence.SendPresencePing(ctx, "u1", "Alice"); err != nil {
		t.Fatal(err)
	}
	prof, _ := g.Profiles.GetProfile(ctx, "u1")
	if prof.CurrentStreak != 1 || prof.XPTotal != 2*g.Core.Rules.PresencePingXP {
		t.Errorf("first post-reset ping: streak=%d xp=%d", prof.CurrentStreak, prof.XPTotal)
	}
}

func TestUnresponsiveRelayDoesNotDelayWritesOrReset(t *testing.T) {
	g, _ := newTestGamification(t, nil)
	ctx := context.Background()
	g.Core.Notifier.SetRelay(newHangingRelay(t))
	t.Cleanup(g.Core.Notifier.Close)

	within(t, time.Second, "AwardXP", func() {
		for range 3 {
			if _, err := g.Ledger.AwardXP(ctx, Award{UserID: "u1", Action: models.ActionManualGrant, BaseAmount: 5}); err != nil {
				t.Error(err)
			}
		}
	})
	within(t, time.Second, "ResetSeason", func() {
		if _, err := g.Season.ResetSeason(ctx, "admin", "Admin"); err != nil {
			t.Error(err)
		}
	})
	within(t, time.Second, "StartShift after reset", func() {
		if _, err := g.Shifts.StartShift(ctx, "u1", "Alice"); err != nil {
			t.Error(err)
		}
	})
}

func TestResetSeasonArchivesWritesThatRaceTheReset(t *testing.T) {
	ctrl := gomock.NewController(t)
	archiver := mock.NewMockArchiver(ctrl)
	g, clock := newTestGamification(t, archiver)
	ctx := context.Background()
	seedSeason(t, g, clock)

	// A write from another instance bypasses this process's season gate.
	late := make(chan error, 1)
	var snap SeasonSnapshot
	archiver.EXPECT().
		ArchiveSeason(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, payload []byte) error {
			go func() {
				late <- g.Core.DB.Create(&models.XPActivityLog{
					UserID:     "other",
					Username:   "Other",
					ActionType: models.ActionManualGrant,
					XPGained:   7,
					CreatedAt:  clock.Now(),
				}).Error
			}()
			select {
			case err := <-late:
				late <- err
			case <-time.After(100 * time.Millisecond):
			}
			return json.Unmarshal(payload, &snap)
		})

	res, err := g.Season.ResetSeason(ctx, "admin", "Admin")
	if err != nil {
		t.Fatalf("ResetSeason: %v", err)
	}
	if err := <-late; err != nil {
		t.Fatalf("late write: %v", err)
	}

	archived := int64(len(snap.Ledger))
	if archived != res.LedgerCleared {
		t.Errorf("archived %d ledger entries but cleared %d", archived, res.LedgerCleared)
	}
	if total, _ := g.Ledger.LedgerTotal(ctx, "other"); total != 7 {
		t.Errorf("late write was cleared without being archived: ledger total %d", total)
	}
}
