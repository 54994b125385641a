package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultRulesAreValid(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}
}

func TestRulesValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Rules)
		wantErr bool
	}{
		{"threshold equal to ping interval", func(r *Rules) { r.OnlineThreshold = r.PingInterval }, true},
		{"negative award", func(r *Rules) { r.LeadApprovedXP = -1 }, true},
		{"inverted night window", func(r *Rules) { r.NightStartHour, r.NightEndHour = 6, 0 }, true},
		{"award gap longer than ping interval", func(r *Rules) { r.PresenceAwardGap = r.PingInterval + time.Second }, true},
		{"award gap equal to ping interval", func(r *Rules) { r.PresenceAwardGap = r.PingInterval }, false},
		{"zero award gap", func(r *Rules) { r.PresenceAwardGap = 0 }, true},
		{"zero grant cap", func(r *Rules) { r.MaxGrantXP = 0 }, true},
		{"unknown timezone", func(r *Rules) { r.Timezone = "Mars/Olympus" }, true},
		{"utc timezone", func(r *Rules) { r.Timezone = "UTC" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRules()
			tt.mutate(&r)
			if err := r.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRulesLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	body := `
[presence]
online_threshold_seconds = 1200
ping_xp = 5

[shift]
night_owl_bonus_xp = 75
timezone = "UTC"

[events]
lead_approved_xp = 250
max_grant_xp = 5000
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	r := DefaultRules()
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if r.OnlineThreshold != 20*time.Minute {
		t.Errorf("OnlineThreshold = %s, want 20m", r.OnlineThreshold)
	}
	if r.PresencePingXP != 5 || r.NightOwlBonusXP != 75 || r.LeadApprovedXP != 250 {
		t.Errorf("overrides not applied: %+v", r)
	}
	if r.MaxGrantXP != 5000 {
		t.Errorf("MaxGrantXP = %d, want 5000", r.MaxGrantXP)
	}
	if r.PingInterval != 10*time.Minute {
		t.Errorf("absent key changed PingInterval to %s", r.PingInterval)
	}
	if r.Timezone != "UTC" {
		t.Errorf("Timezone = %q", r.Timezone)
	}
}
