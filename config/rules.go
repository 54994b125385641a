package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Rules are the tunable XP amounts and time windows of the gamification engine.
type Rules struct {
	// Presence
	OnlineThreshold   time.Duration
	PingInterval      time.Duration
	ActivityThreshold time.Duration
	PresenceAwardGap  time.Duration
	PresencePingXP    int64

	// Shifts
	ShiftXPPerHour    int64
	NightOwlBonusXP   int64
	NightStartHour    int
	NightEndHour      int
	Timezone          string
	MaxRoleMultiplier float64

	// Business events
	LeadApprovedXP int64
	OrderCreatedXP int64
	OrderPaidXP    int64
	MaxGrantXP     int64

	// Reads
	FeedDefaultLimit        int
	FeedMaxLimit            int
	LeaderboardDefaultLimit int
	LeaderboardMaxLimit     int
	LeaderboardCacheSize    int
}

func DefaultRules() Rules {
	return Rules{
		OnlineThreshold:   15 * time.Minute,
		PingInterval:      10 * time.Minute,
		ActivityThreshold: 5 * time.Minute,
		PresenceAwardGap:  9 * time.Minute,
		PresencePingXP:    2,

		ShiftXPPerHour:    30,
		NightOwlBonusXP:   50,
		NightStartHour:    0,
		NightEndHour:      6,
		Timezone:          "Local",
		MaxRoleMultiplier: 10,

		LeadApprovedXP: 100,
		OrderCreatedXP: 20,
		OrderPaidXP:    50,
		MaxGrantXP:     100_000,

		FeedDefaultLimit:        50,
		FeedMaxLimit:            200,
		LeaderboardDefaultLimit: 100,
		LeaderboardMaxLimit:     500,
		LeaderboardCacheSize:    64,
	}
}

// rulesFile mirrors Rules for TOML. Durations are whole seconds; absent keys
// keep their defaults.
type rulesFile struct {
	Presence struct {
		OnlineThresholdSeconds   *int64 `toml:"online_threshold_seconds"`
		PingIntervalSeconds      *int64 `toml:"ping_interval_seconds"`
		ActivityThresholdSeconds *int64 `toml:"activity_threshold_seconds"`
		AwardGapSeconds          *int64 `toml:"award_gap_seconds"`
		PingXP                   *int64 `toml:"ping_xp"`
	} `toml:"presence"`
	Shift struct {
		XPPerHour       *int64   `toml:"xp_per_hour"`
		NightOwlBonusXP *int64   `toml:"night_owl_bonus_xp"`
		NightStartHour  *int     `toml:"night_start_hour"`
		NightEndHour    *int     `toml:"night_end_hour"`
		Timezone        *string  `toml:"timezone"`
		MaxMultiplier   *float64 `toml:"max_role_multiplier"`
	} `toml:"shift"`
	Events struct {
		LeadApprovedXP *int64 `toml:"lead_approved_xp"`
		OrderCreatedXP *int64 `toml:"order_created_xp"`
		OrderPaidXP    *int64 `toml:"order_paid_xp"`
		MaxGrantXP     *int64 `toml:"max_grant_xp"`
	} `toml:"events"`
}

// LoadFile overlays the values present in a TOML rules file.
func (r *Rules) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}
	var f rulesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse rules file %s: %w", path, err)
	}
	r.apply(&f)
	return nil
}

func (r *Rules) apply(f *rulesFile) {
	seconds := func(dst *time.Duration, v *int64) {
		if v != nil {
			*dst = time.Duration(*v) * time.Second
		}
	}
	seconds(&r.OnlineThreshold, f.Presence.OnlineThresholdSeconds)
	seconds(&r.PingInterval, f.Presence.PingIntervalSeconds)
	seconds(&r.ActivityThreshold, f.Presence.ActivityThresholdSeconds)
	seconds(&r.PresenceAwardGap, f.Presence.AwardGapSeconds)
	setInt64(&r.PresencePingXP, f.Presence.PingXP)

	setInt64(&r.ShiftXPPerHour, f.Shift.XPPerHour)
	setInt64(&r.NightOwlBonusXP, f.Shift.NightOwlBonusXP)
	if f.Shift.NightStartHour != nil {
		r.NightStartHour = *f.Shift.NightStartHour
	}
	if f.Shift.NightEndHour != nil {
		r.NightEndHour = *f.Shift.NightEndHour
	}
	if f.Shift.Timezone != nil {
		r.Timezone = *f.Shift.Timezone
	}
	if f.Shift.MaxMultiplier != nil {
		r.MaxRoleMultiplier = *f.Shift.MaxMultiplier
	}

	setInt64(&r.LeadApprovedXP, f.Events.LeadApprovedXP)
	setInt64(&r.OrderCreatedXP, f.Events.OrderCreatedXP)
	setInt64(&r.OrderPaidXP, f.Events.OrderPaidXP)
	setInt64(&r.MaxGrantXP, f.Events.MaxGrantXP)
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

// Validate rejects rule sets that would make users flicker offline between
// pings or produce negative awards.
func (r Rules) Validate() error {
	var errs []error
	if r.PingInterval <= 0 {
		errs = append(errs, errors.New("ping interval must be positive"))
	}
	if r.OnlineThreshold <= r.PingInterval {
		errs = append(errs, fmt.Errorf("online threshold %s must exceed ping interval %s", r.OnlineThreshold, r.PingInterval))
	}
	if r.ActivityThreshold <= 0 {
		errs = append(errs, errors.New("activity threshold must be positive"))
	}
	if r.PresenceAwardGap <= 0 || r.PresenceAwardGap > r.PingInterval {
		errs = append(errs, fmt.Errorf("presence award gap %s must be positive and at most the ping interval %s", r.PresenceAwardGap, r.PingInterval))
	}
	for name, v := range map[string]int64{
		"presence ping xp":   r.PresencePingXP,
		"shift xp per hour":  r.ShiftXPPerHour,
		"night owl bonus xp": r.NightOwlBonusXP,
		"lead approved xp":   r.LeadApprovedXP,
		"order created xp":   r.OrderCreatedXP,
		"order paid xp":      r.OrderPaidXP,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if r.NightStartHour < 0 || r.NightEndHour > 24 || r.NightEndHour <= r.NightStartHour {
		errs = append(errs, fmt.Errorf("night window %d-%d is invalid", r.NightStartHour, r.NightEndHour))
	}
	if r.MaxGrantXP <= 0 {
		errs = append(errs, errors.New("max grant xp must be positive"))
	}
	if r.MaxRoleMultiplier <= 0 {
		errs = append(errs, errors.New("max role multiplier must be positive"))
	}
	if _, err := r.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves Timezone; the night window is evaluated in it.
func (r Rules) Location() (*time.Location, error) {
	if r.Timezone == "" || r.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", r.Timezone, err)
	}
	return loc, nil
}
