// Package domain holds campaign lifecycle rules and the allocation budget.
package domain

// Status is a campaign lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// AllocationLimit is the total lead allocation budget per tenant, in percent.
// The sum across non-terminal campaigns may never exceed it.
const AllocationLimit = 100

// Terminal reports whether a campaign in this status no longer consumes
// allocation budget.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusArchived
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// CanTransition reports whether a campaign may move from one status to
// another. Terminal states are final.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusDraft:
		return to == StatusActive || to == StatusArchived
	case StatusActive:
		return to == StatusPaused || to == StatusCompleted || to == StatusArchived
	case StatusPaused:
		return to == StatusActive || to == StatusCompleted || to == StatusArchived
	}
	return false
}

// AllocationFits reports whether adding pct to the tenant's existing
// non-terminal allocation stays within the budget.
func AllocationFits(existingSum, pct int) bool {
	return existingSum+pct <= AllocationLimit
}
