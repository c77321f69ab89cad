package domain

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		counts WindowCounts
		want   HealthStatus
	}{
		{"no sends", WindowCounts{}, HealthGood},
		{"high bounce small window", WindowCounts{Sends: 20, Bounces: 20}, HealthCritical},
		{"clean window", WindowCounts{Sends: 1000, Bounces: 5, Accepts: 900}, HealthGood},
		{"bounce warning", WindowCounts{Sends: 1000, Bounces: 30}, HealthWarning},
		{"bounce critical", WindowCounts{Sends: 1000, Bounces: 60}, HealthCritical},
		{"complaint warning", WindowCounts{Sends: 10000, Complaints: 6}, HealthWarning},
		{"complaint critical", WindowCounts{Sends: 10000, Complaints: 11}, HealthCritical},
		{"boundary bounce 2pct stays good", WindowCounts{Sends: 1000, Bounces: 20}, HealthGood},
		{"boundary bounce 5pct stays warning", WindowCounts{Sends: 1000, Bounces: 50}, HealthWarning},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.counts); got != tc.want {
				t.Errorf("Classify(%+v) = %q, want %q", tc.counts, got, tc.want)
			}
		})
	}
}

func TestStatusFollowsSaturation(t *testing.T) {
	// A two-tenant resource saturates on the second grant only.
	if got := StatusAfterGrant(StatusAvailable, 1, 2); got != StatusAvailable {
		t.Errorf("unsaturated grant: got %q, want available", got)
	}
	if got := StatusAfterGrant(StatusAvailable, 2, 2); got != StatusAssigned {
		t.Errorf("saturating grant: got %q, want assigned", got)
	}
	if got := StatusAfterGrant(StatusWarming, 1, 1); got != StatusWarming {
		t.Errorf("warming resource must keep its status, got %q", got)
	}

	// Any freed slot on a saturated resource reopens it.
	if got := StatusAfterRevoke(StatusAssigned, 1, 2); got != StatusAvailable {
		t.Errorf("revoke under capacity: got %q, want available", got)
	}
	if got := StatusAfterRevoke(StatusRetired, 0, 1); got != StatusRetired {
		t.Errorf("retired resource must stay retired, got %q", got)
	}
}

func TestComputeRates(t *testing.T) {
	rates := WindowCounts{Sends: 200, Bounces: 10, Complaints: 1, Accepts: 150}.ComputeRates()
	if rates.Bounce != 0.05 {
		t.Errorf("bounce rate = %v, want 0.05", rates.Bounce)
	}
	if rates.Complaint != 0.005 {
		t.Errorf("complaint rate = %v, want 0.005", rates.Complaint)
	}
	if rates.Accept != 0.75 {
		t.Errorf("accept rate = %v, want 0.75", rates.Accept)
	}

	if got := (WindowCounts{}).ComputeRates(); got != (Rates{}) {
		t.Errorf("empty window rates = %+v, want zero", got)
	}
}

func TestEffectiveDailyLimit(t *testing.T) {
	override := 80
	negative := -5

	cases := []struct {
		name     string
		health   HealthStatus
		warmup   int
		override *int
		want     int
	}{
		{"good uses warmup", HealthGood, 50, nil, 50},
		{"good override wins", HealthGood, 50, &override, 80},
		{"warning clamps high limits", HealthWarning, 50, nil, 35},
		{"warning keeps lower limits", HealthWarning, 10, nil, 10},
		{"override wins over warning", HealthWarning, 10, &override, 80},
		{"critical pauses sending", HealthCritical, 50, nil, 0},
		{"override wins over critical", HealthCritical, 50, &override, 80},
		{"negative override floors at zero", HealthGood, 50, &negative, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EffectiveDailyLimit(tc.health, tc.warmup, tc.override); got != tc.want {
				t.Errorf("EffectiveDailyLimit(%q, %d, %v) = %d, want %d", tc.health, tc.warmup, tc.override, got, tc.want)
			}
		})
	}
}
