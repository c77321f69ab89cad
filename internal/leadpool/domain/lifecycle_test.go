package domain

import (
	"testing"
	"time"
)

func TestCanAssign(t *testing.T) {
	cases := []struct {
		name string
		lead LeadState
		want bool
	}{
		{"available", LeadState{PoolStatus: StatusAvailable}, true},
		{"already assigned", LeadState{PoolStatus: StatusAssigned}, false},
		{"converted", LeadState{PoolStatus: StatusConverted}, false},
		{"invalid", LeadState{PoolStatus: StatusInvalid}, false},
		{"available but bounced flag set", LeadState{PoolStatus: StatusAvailable, IsBounced: true}, false},
		{"available but unsubscribed flag set", LeadState{PoolStatus: StatusAvailable, IsUnsubscribed: true}, false},
	}

	for _, tc := range cases {
		if got := CanAssign(tc.lead); got != tc.want {
			t.Errorf("%s: CanAssign = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestReleaseTarget(t *testing.T) {
	cases := []struct {
		name string
		lead LeadState
		want PoolStatus
	}{
		{"clean lead returns to pool", LeadState{Verification: VerificationVerified}, StatusAvailable},
		{"bounced lead is permanently ineligible", LeadState{IsBounced: true}, StatusBounced},
		{"unsubscribed lead is permanently ineligible", LeadState{IsUnsubscribed: true}, StatusUnsubscribed},
		{"bounced wins over unsubscribed", LeadState{IsBounced: true, IsUnsubscribed: true}, StatusBounced},
		{"invalid email lead leaves the pool", LeadState{Verification: VerificationInvalid}, StatusInvalid},
	}

	for _, tc := range cases {
		if got := ReleaseTarget(tc.lead); got != tc.want {
			t.Errorf("%s: ReleaseTarget = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestValidateSend(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	future := now.Add(2 * time.Hour)
	past := now.Add(-2 * time.Hour)

	activeAssignment := func() *AssignmentState {
		return &AssignmentState{Status: AssignmentActive, TouchCount: 2, MaxTouches: 8}
	}

	verified := LeadState{PoolStatus: StatusAssigned, Verification: VerificationVerified}

	t.Run("clean lead passes", func(t *testing.T) {
		if got := ValidateSend(verified, activeAssignment(), "email", now); got != RejectNone {
			t.Fatalf("expected pass, got %q", got)
		}
	})

	t.Run("bounced lead rejected", func(t *testing.T) {
		lead := verified
		lead.IsBounced = true
		if got := ValidateSend(lead, activeAssignment(), "email", now); got != RejectBounced {
			t.Fatalf("expected %q, got %q", RejectBounced, got)
		}
	})

	t.Run("unsubscribed lead rejected", func(t *testing.T) {
		lead := verified
		lead.IsUnsubscribed = true
		if got := ValidateSend(lead, activeAssignment(), "email", now); got != RejectUnsubscribed {
			t.Fatalf("expected %q, got %q", RejectUnsubscribed, got)
		}
	})

	t.Run("guessed email rejected for email channel only", func(t *testing.T) {
		lead := verified
		lead.Verification = VerificationGuessed
		if got := ValidateSend(lead, activeAssignment(), "email", now); got != RejectUnverifiedEmail {
			t.Fatalf("email channel: expected %q, got %q", RejectUnverifiedEmail, got)
		}
		if got := ValidateSend(lead, activeAssignment(), "linkedin", now); got != RejectNone {
			t.Fatalf("linkedin channel: expected pass, got %q", got)
		}
	})

	t.Run("invalid email rejected on every channel", func(t *testing.T) {
		lead := verified
		lead.Verification = VerificationInvalid
		if got := ValidateSend(lead, activeAssignment(), "linkedin", now); got != RejectInvalidEmail {
			t.Fatalf("expected %q, got %q", RejectInvalidEmail, got)
		}
	})

	t.Run("missing assignment rejected", func(t *testing.T) {
		if got := ValidateSend(verified, nil, "email", now); got != RejectNotAssigned {
			t.Fatalf("expected %q, got %q", RejectNotAssigned, got)
		}
	})

	t.Run("released assignment rejected", func(t *testing.T) {
		a := activeAssignment()
		a.Status = AssignmentReleased
		if got := ValidateSend(verified, a, "email", now); got != RejectNotAssigned {
			t.Fatalf("expected %q, got %q", RejectNotAssigned, got)
		}
	})

	t.Run("max touches rejected", func(t *testing.T) {
		a := activeAssignment()
		a.TouchCount = a.MaxTouches
		if got := ValidateSend(verified, a, "email", now); got != RejectMaxTouches {
			t.Fatalf("expected %q, got %q", RejectMaxTouches, got)
		}
	})

	t.Run("cooling-off window rejected until it passes", func(t *testing.T) {
		a := activeAssignment()
		a.CoolingUntil = &future
		if got := ValidateSend(verified, a, "email", now); got != RejectCoolingOff {
			t.Fatalf("expected %q, got %q", RejectCoolingOff, got)
		}
		a.CoolingUntil = &past
		if got := ValidateSend(verified, a, "email", now); got != RejectNone {
			t.Fatalf("expected pass after window, got %q", got)
		}
	})

	t.Run("idempotent on repeated calls", func(t *testing.T) {
		lead := verified
		lead.IsBounced = true
		first := ValidateSend(lead, activeAssignment(), "email", now)
		second := ValidateSend(lead, activeAssignment(), "email", now)
		if first != second {
			t.Fatalf("gate not idempotent: %q then %q", first, second)
		}
	})
}
