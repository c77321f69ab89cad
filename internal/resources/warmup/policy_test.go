package warmup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"outreach_portal_backend/internal/resources/domain"
)

func TestDefaultRampValues(t *testing.T) {
	policy := Default()

	cases := []struct {
		resourceType domain.ResourceType
		day          int
		want         int
	}{
		{domain.TypeSendingDomain, 1, 5},
		{domain.TypeSendingDomain, 3, 5},
		{domain.TypeSendingDomain, 4, 10},
		{domain.TypeSendingDomain, 7, 10},
		{domain.TypeSendingDomain, 8, 15},
		{domain.TypeSendingDomain, 11, 15},
		{domain.TypeSendingDomain, 12, 50},
		{domain.TypeSendingDomain, 400, 50},
		{domain.TypeSocialSeat, 12, 20},
		{domain.TypePhoneNumber, 12, 30},
	}

	for _, tc := range cases {
		if got := policy.LimitFor(tc.resourceType, tc.day); got != tc.want {
			t.Errorf("LimitFor(%s, day %d) = %d, want %d", tc.resourceType, tc.day, got, tc.want)
		}
	}
}

func TestRampIsMonotonic(t *testing.T) {
	policy := Default()
	for _, resourceType := range []domain.ResourceType{domain.TypeSendingDomain, domain.TypeSocialSeat, domain.TypePhoneNumber} {
		prev := 0
		for day := 1; day <= 30; day++ {
			limit := policy.LimitFor(resourceType, day)
			if limit < prev {
				t.Errorf("%s: limit decreased from %d to %d on day %d", resourceType, prev, limit, day)
			}
			prev = limit
		}
	}
}

func TestComplete(t *testing.T) {
	policy := Default()
	if policy.Complete(domain.TypeSendingDomain, 11) {
		t.Error("day 11 should still be ramping")
	}
	if !policy.Complete(domain.TypeSendingDomain, 12) {
		t.Error("day 12 should be ramp-complete")
	}
}

func TestDayNumber(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	activated := time.Date(2026, 3, 1, 23, 50, 0, 0, loc)

	cases := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2026, 3, 1, 23, 55, 0, 0, loc), 1},
		{time.Date(2026, 3, 2, 0, 5, 0, 0, loc), 2},
		{time.Date(2026, 3, 12, 12, 0, 0, 0, loc), 12},
		// Clock skew before activation still counts as day 1.
		{activated.Add(-time.Hour), 1},
	}

	for _, tc := range cases {
		if got := DayNumber(activated, tc.now, loc); got != tc.want {
			t.Errorf("DayNumber(now=%v) = %d, want %d", tc.now, got, tc.want)
		}
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warmup.yaml")
	content := []byte(`ramps:
  sending_domain:
    stages:
      - throughDay: 5
        limit: 8
    ceiling: 100
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	policy, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if got := policy.LimitFor(domain.TypeSendingDomain, 3); got != 8 {
		t.Errorf("overridden day 3 limit = %d, want 8", got)
	}
	if got := policy.LimitFor(domain.TypeSendingDomain, 6); got != 100 {
		t.Errorf("overridden ceiling = %d, want 100", got)
	}
	// Types absent from the file keep defaults.
	if got := policy.LimitFor(domain.TypePhoneNumber, 12); got != 30 {
		t.Errorf("phone number default = %d, want 30", got)
	}
}

func TestLoadRejectsInvalidPolicies(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown type", "ramps:\n  carrier_pigeon:\n    ceiling: 10\n"},
		{"decreasing limits", "ramps:\n  sending_domain:\n    stages:\n      - throughDay: 3\n        limit: 10\n      - throughDay: 7\n        limit: 5\n    ceiling: 50\n"},
		{"limit above ceiling", "ramps:\n  sending_domain:\n    stages:\n      - throughDay: 3\n        limit: 60\n    ceiling: 50\n"},
		{"zero ceiling", "ramps:\n  sending_domain:\n    ceiling: 0\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "warmup.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o600); err != nil {
				t.Fatalf("write policy file: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected load error, got nil")
			}
		})
	}
}
