// Package domain provides core business rules for the lead pool bounded context.
package domain

import "time"

// PoolStatus is the platform-wide lifecycle status of a pool lead.
type PoolStatus string

const (
	StatusAvailable    PoolStatus = "available"
	StatusAssigned     PoolStatus = "assigned"
	StatusConverted    PoolStatus = "converted"
	StatusBounced      PoolStatus = "bounced"
	StatusUnsubscribed PoolStatus = "unsubscribed"
	StatusInvalid      PoolStatus = "invalid"
)

// VerificationStatus describes the confidence in a lead's email address.
type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "verified"
	VerificationGuessed  VerificationStatus = "guessed"
	VerificationInvalid  VerificationStatus = "invalid"
	VerificationCatchAll VerificationStatus = "catch_all"
	VerificationUnknown  VerificationStatus = "unknown"
)

// AssignmentStatus is the lifecycle status of a tenant assignment.
type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentReleased  AssignmentStatus = "released"
	AssignmentConverted AssignmentStatus = "converted"
	AssignmentExpired   AssignmentStatus = "expired"
)

// RejectReason is a typed reason returned by the just-in-time send gate.
type RejectReason string

const (
	RejectNone            RejectReason = ""
	RejectBounced         RejectReason = "lead_bounced"
	RejectUnsubscribed    RejectReason = "lead_unsubscribed"
	RejectInvalidEmail    RejectReason = "email_invalid"
	RejectUnverifiedEmail RejectReason = "email_unverified"
	RejectNotAssigned     RejectReason = "not_assigned_to_tenant"
	RejectMaxTouches      RejectReason = "max_touches_reached"
	RejectCoolingOff      RejectReason = "cooling_off"
)

// LeadState is the subset of pool lead fields the lifecycle rules evaluate.
type LeadState struct {
	PoolStatus     PoolStatus
	Verification   VerificationStatus
	IsBounced      bool
	IsUnsubscribed bool
}

// AssignmentState is the subset of assignment fields the send gate evaluates.
type AssignmentState struct {
	Status       AssignmentStatus
	TouchCount   int
	MaxTouches   int
	CoolingUntil *time.Time
}

// CanAssign reports whether a lead in the given state may be claimed by a
// tenant. The repository re-evaluates this under a row lock at commit time;
// callers treat a false result as LeadNotAvailable.
func CanAssign(lead LeadState) bool {
	if lead.IsBounced || lead.IsUnsubscribed {
		return false
	}
	return lead.PoolStatus == StatusAvailable
}

// ReleaseTarget returns the pool status a lead moves to when its assignment
// is released. Bounced and unsubscribed leads never return to the pool.
func ReleaseTarget(lead LeadState) PoolStatus {
	switch {
	case lead.IsBounced:
		return StatusBounced
	case lead.IsUnsubscribed:
		return StatusUnsubscribed
	case lead.Verification == VerificationInvalid:
		return StatusInvalid
	default:
		return StatusAvailable
	}
}

// ValidateSend is the last-mile gate run on every dispatch attempt. It is a
// pure function of the lead and assignment state, so repeated calls with the
// same inputs return the same reason.
func ValidateSend(lead LeadState, assignment *AssignmentState, channel string, now time.Time) RejectReason {
	if lead.IsBounced {
		return RejectBounced
	}
	if lead.IsUnsubscribed {
		return RejectUnsubscribed
	}
	if lead.Verification == VerificationInvalid {
		return RejectInvalidEmail
	}
	if channel == "email" && lead.Verification != VerificationVerified {
		return RejectUnverifiedEmail
	}
	if assignment == nil || assignment.Status != AssignmentActive {
		return RejectNotAssigned
	}
	if assignment.TouchCount >= assignment.MaxTouches {
		return RejectMaxTouches
	}
	if assignment.CoolingUntil != nil && now.Before(*assignment.CoolingUntil) {
		return RejectCoolingOff
	}
	return RejectNone
}
