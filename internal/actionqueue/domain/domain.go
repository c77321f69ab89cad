// Package domain provides core business rules for the durable action queue.
package domain

import "time"

// Status is the lifecycle status of a queue item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusProcessing  Status = "processing"
	StatusSent        Status = "sent"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusRateLimited Status = "rate_limited"
)

// Channel is the delivery channel of an action.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
	ChannelSMS      Channel = "sms"
	ChannelVoice    Channel = "voice"
)

// ValidChannel reports whether c is a known delivery channel.
func ValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelLinkedIn, ChannelSMS, ChannelVoice:
		return true
	}
	return false
}

// Backoff returns the retry delay after the given number of completed
// attempts: base doubling per attempt, capped.
func Backoff(base, cap time.Duration, attempts int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if cap > 0 && delay > cap {
		return cap
	}
	return delay
}

// NextDayStart returns midnight of the following day in the scheduling
// location. Items parked for a daily cap resume here.
func NextDayStart(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}

// Day returns the calendar date key for daily cap accounting.
func Day(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}
