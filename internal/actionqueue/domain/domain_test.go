package domain

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	base := 5 * time.Minute
	ceiling := 6 * time.Hour

	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 5 * time.Minute},
		{2, 10 * time.Minute},
		{3, 20 * time.Minute},
		{5, 80 * time.Minute},
		{10, 6 * time.Hour},
		{100, 6 * time.Hour},
		{0, 5 * time.Minute},
	}

	for _, tc := range cases {
		if got := Backoff(base, ceiling, tc.attempts); got != tc.want {
			t.Errorf("Backoff(attempts=%d) = %v, want %v", tc.attempts, got, tc.want)
		}
	}

	if got := Backoff(0, ceiling, 3); got != 0 {
		t.Errorf("zero base should disable backoff, got %v", got)
	}
}

func TestNextDayStart(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	now := time.Date(2026, 8, 24, 15, 30, 0, 0, loc)
	next := NextDayStart(now, loc)
	want := time.Date(2026, 8, 25, 0, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("NextDayStart = %v, want %v", next, want)
	}

	// Just before midnight rolls to the immediately following day.
	lateNow := time.Date(2026, 8, 24, 23, 59, 59, 0, loc)
	if got := NextDayStart(lateNow, loc); !got.Equal(want) {
		t.Errorf("NextDayStart near midnight = %v, want %v", got, want)
	}
}

func TestDayBoundaryFollowsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 23:30 UTC on the 24th is already the 25th in Amsterdam (summer, UTC+2).
	utcEvening := time.Date(2026, 8, 24, 23, 30, 0, 0, time.UTC)
	day := Day(utcEvening, loc)
	if day.Day() != 25 {
		t.Errorf("expected Amsterdam day 25, got %v", day)
	}
	if day.Day() == Day(utcEvening, time.UTC).Day() {
		t.Error("expected location to change the day bucket")
	}
}
