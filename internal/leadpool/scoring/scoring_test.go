package scoring

import (
	"testing"
	"time"

	"outreach_portal_backend/internal/leadpool/domain"
	"outreach_portal_backend/internal/leadpool/repository"
)

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

func fullyEnrichedLead(now time.Time) repository.PoolLead {
	signal := now.Add(-3 * 24 * time.Hour)
	return repository.PoolLead{
		Email:        "ceo@example.com",
		FirstName:    strptr("Alex"),
		LastName:     strptr("Jensen"),
		Company:      strptr("Acme Robotics"),
		Title:        strptr("CEO"),
		CompanySize:  intptr(200),
		Industry:     strptr("robotics"),
		Country:      strptr("NL"),
		Verification: domain.VerificationVerified,
		SignalAt:     &signal,
	}
}

func TestComputeComponentCaps(t *testing.T) {
	now := time.Now()
	lead := fullyEnrichedLead(now)

	// Extreme weights must not push any component past its cap.
	c := Compute(lead, Weights{DataQuality: 1.5, Authority: 1.5, CompanyFit: 1.5, Timing: 1.5, Risk: 1.5}, now)

	if c.DataQuality > 20 {
		t.Errorf("data quality %v exceeds cap 20", c.DataQuality)
	}
	if c.Authority > 25 {
		t.Errorf("authority %v exceeds cap 25", c.Authority)
	}
	if c.CompanyFit > 25 {
		t.Errorf("company fit %v exceeds cap 25", c.CompanyFit)
	}
	if c.Timing > 15 {
		t.Errorf("timing %v exceeds cap 15", c.Timing)
	}
	if c.Risk > 15 {
		t.Errorf("risk %v exceeds cap 15", c.Risk)
	}
	if c.Total < 0 || c.Total > 100 {
		t.Errorf("total %d outside [0,100]", c.Total)
	}
}

func TestComputeFullyEnrichedLeadIsHot(t *testing.T) {
	now := time.Now()
	c := Compute(fullyEnrichedLead(now), DefaultWeights(), now)

	if c.Total < 85 {
		t.Fatalf("expected hot-tier total >= 85, got %d", c.Total)
	}
	if c.Tier != TierHot {
		t.Fatalf("expected tier hot, got %q", c.Tier)
	}
}

func TestComputeEmptyLeadIsDead(t *testing.T) {
	now := time.Now()
	c := Compute(repository.PoolLead{Verification: domain.VerificationUnknown}, DefaultWeights(), now)

	if c.Total >= 20 {
		t.Fatalf("expected dead-tier total < 20, got %d", c.Total)
	}
	if c.Tier != TierDead {
		t.Fatalf("expected tier dead, got %q", c.Tier)
	}
}

func TestComputeRiskNeverPushesBelowZero(t *testing.T) {
	now := time.Now()
	lead := repository.PoolLead{
		Verification:   domain.VerificationInvalid,
		IsBounced:      true,
		IsUnsubscribed: true,
	}

	c := Compute(lead, DefaultWeights(), now)
	if c.Total != 0 {
		t.Fatalf("expected clamped total 0, got %d", c.Total)
	}
}

func TestTierThresholds(t *testing.T) {
	cases := []struct {
		total int
		want  Tier
	}{
		{100, TierHot},
		{85, TierHot},
		{84, TierWarm},
		{60, TierWarm},
		{59, TierCool},
		{35, TierCool},
		{34, TierCold},
		{20, TierCold},
		{19, TierDead},
		{0, TierDead},
	}

	for _, tc := range cases {
		if got := TierFor(tc.total); got != tc.want {
			t.Errorf("TierFor(%d) = %q, want %q", tc.total, got, tc.want)
		}
	}
}

func TestTimingDecaysWithSignalAge(t *testing.T) {
	now := time.Now()
	lead := fullyEnrichedLead(now)

	ages := []struct {
		age  time.Duration
		want float64
	}{
		{3 * 24 * time.Hour, 15},
		{20 * 24 * time.Hour, 10},
		{60 * 24 * time.Hour, 5},
		{120 * 24 * time.Hour, 0},
	}

	var prev float64 = 16
	for _, tc := range ages {
		signal := now.Add(-tc.age)
		lead.SignalAt = &signal
		c := Compute(lead, DefaultWeights(), now)
		if c.Timing != tc.want {
			t.Errorf("timing at age %v = %v, want %v", tc.age, c.Timing, tc.want)
		}
		if c.Timing > prev {
			t.Errorf("timing increased with age at %v", tc.age)
		}
		prev = c.Timing
	}
}

func TestWeightsAreClamped(t *testing.T) {
	now := time.Now()
	lead := fullyEnrichedLead(now)

	// A pathological negative weight behaves as zero, not a deduction.
	c := Compute(lead, Weights{DataQuality: -5, Authority: 1, CompanyFit: 1, Timing: 1, Risk: 1}, now)
	if c.DataQuality != 0 {
		t.Fatalf("expected zeroed data quality for negative weight, got %v", c.DataQuality)
	}
}
