package services

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agency-gamification/config"
	"agency-gamification/database"
)

var dbSeq atomic.Int64

// testClock is a settable clock shared by a test's services.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testRules() config.Rules {
	r := config.DefaultRules()
	r.Timezone = "UTC"
	return r
}

// newTestGamification opens a private in-memory SQLite database and wires
// every service with a fake clock starting at 2026-03-10 12:00 UTC.
func newTestGamification(t *testing.T, archiver Archiver) (*Gamification, *testClock) {
	t.Helper()
	dsn := fmt.Sprintf("sqlite:file:gamification_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := database.Open(config.DatabaseConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	g, err := NewGamification(db, testRules(), NewNotifier(), archiver)
	if err != nil {
		t.Fatalf("NewGamification: %v", err)
	}
	clock := &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	g.Core.Now = clock.Now
	return g, clock
}
