package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"agency-gamification/models"
)

func TestNormalizeClientUsername(t *testing.T) {
	tests := map[string]string{
		"  @acme ":  "acme",
		"acme":      "acme",
		"@":         "",
		"   ":       "",
		"@ Big Co ": "Big Co",
	}
	for in, want := range tests {
		if got := NormalizeClientUsername(in); got != want {
			t.Errorf("NormalizeClientUsername(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeclareLeadValidation(t *testing.T) {
	g, _ := newTestGamification(t, nil)
	tests := []struct {
		name     string
		client   string
		platform models.Platform
		field    string
	}{
		{"blank client", "   ", models.PlatformInstagram, "clientUsername"},
		{"only at-sign", "@", models.PlatformInstagram, "clientUsername"},
		{"unknown platform", "acme", "myspace", "platform"},
		{"empty platform", "acme", "", "platform"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Leads.DeclareLead(context.Background(), tt.client, tt.platform, "finder")
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("err = %v, want ValidationError on %s", err, tt.field)
			}
		})
	}
}

func TestDeclareLeadNormalizesAndDedupes(t *testing.T) {
	g, _ := newTestGamification(t, nil)
	ctx := context.Background()

	lead, err := g.Leads.DeclareLead(ctx, "  @Acme Corp ", "Instagram", "finder")
	if err != nil {
		t.Fatalf("DeclareLead: %v", err)
	}
	if lead.ClientUsername != "Acme Corp" || lead.Platform != models.PlatformInstagram || lead.Status != models.LeadPending {
		t.Errorf("lead = %+v", lead)
	}
	if lead.XPAwarded != 0 || lead.ValidatedAt != nil {
		t.Errorf("fresh lead carries a decision: %+v", lead)
	}

	if _, err := g.Leads.DeclareLead(ctx, "acme corp", models.PlatformInstagram, "someone-else"); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate pending lead err = %v, want ErrConflict", err)
	}
	if _, err := g.Leads.DeclareLead(ctx, "acme corp", models.PlatformTikTok, "finder"); err != nil {
		t.Errorf("same client on another platform: %v", err)
	}
}

func TestListPendingOldestFirst(t *testing.T) {
	g, clock := newTestGamification(t, nil)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		lead, err := g.Leads.DeclareLead(ctx, name, models.PlatformWebsite, "finder")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, lead.ID)
		clock.Advance(time.Minute)
	}
	if _, err := g.Leads.ValidateLead(ctx, ids[1], false, "admin"); err != nil {
		t.Fatal(err)
	}

	pending, err := g.Leads.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != ids[0] || pending[1].ID != ids[2] {
		t.Errorf("pending = %+v, want [first third]", pending)
	}
}

func TestValidateLeadApprove(t *testing.T) {
	g, _ := newTestGamification(t, nil)
	ctx := context.Background()

	if _, err := g.Profiles.SetRoleMultiplier(ctx, "finder", 1.5); err != nil {
		t.Fatal(err)
	}
	lead, err := g.Leads.DeclareLead(ctx, "acme", models.PlatformLinkedIn, "finder")
	if err != nil {
		t.Fatal(err)
	}

	decided, err := g.Leads.ValidateLead(ctx, lead.ID, true, "admin")
	if err != nil {
		t.Fatalf("ValidateLead: %v", err)
	}
	if decided.Status != models.LeadApproved || decided.XPAwarded != 150 || decided.ValidatedAt == nil {
		t.Errorf("decided = %+v", decided)
	}
	if decided.ValidatedBy == nil || *decided.ValidatedBy != "admin" {
		t.Errorf("validated_by = %v", decided.ValidatedBy)
	}

	feed, err := g.Ledger.RecentActivity(ctx, FeedQuery{UserID: "finder"})
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 1 || feed[0].ActionType != models.ActionLeadApproved || feed[0].XPGained != 150 {
		t.Fatalf("feed = %+v", feed)
	}
	if feed[0].Description != "Lead @acme approved (Linkedin)" {
		t.Errorf("description = %q", feed[0].Description)
	}

	// A decided lead is terminal.
	for _, approved := range []bool{true, false} {
		if _, err := g.Leads.ValidateLead(ctx, lead.ID, approved, "admin"); !errors.Is(err, ErrConflict) {
			t.Errorf("re-validate(%v) err = %v, want ErrConflict", approved, err)
		}
	}
	var stored models.HunterLead
	g.Core.DB.First(&stored, "id = ?", lead.ID)
	if stored.Status != models.LeadApproved || stored.XPAwarded != 150 {
		t.Errorf("stored = %+v", stored)
	}
	if total, _ := g.Ledger.LedgerTotal(ctx, "finder"); total != 150 {
		t.Errorf("ledger total = %d, want 150", total)
	}
}

func TestValidateLeadReject(t *testing.T) {
	g, _ := newTestGamification(t, nil)
	ctx := context.Background()

	lead, err := g.Leads.DeclareLead(ctx, "acme", models.PlatformTikTok, "finder")
	if err != nil {
		t.Fatal(err)
	}
	decided, err := g.Leads.ValidateLead(ctx, lead.ID, false, "admin")
	if err != nil {
		t.Fatalf("ValidateLead: %v", err)
	}
	if decided.Status != models.LeadRejected || decided.XPAwarded != 0 || decided.ValidatedAt == nil {
		t.Errorf("decided = %+v", decided)
	}
	if total, _ := g.Ledger.LedgerTotal(ctx, "finder"); total != 0 {
		t.Errorf("rejected lead produced %d XP", total)
	}
	if _, err := g.Leads.ValidateLead(ctx, lead.ID, true, "admin"); !errors.Is(err, ErrConflict) {
		t.Errorf("approve after reject err = %v, want ErrConflict", err)
	}
}

func TestValidateLeadUnknown(t *testing.T) {
	g, _ := newTestGamification(t, nil)
	if _, err := g.Leads.ValidateLead(context.Background(), "does-not-exist", true, "admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
