// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"outreach_portal_backend/platform/events"
	"outreach_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Lead Pool Events
// =============================================================================

// LeadAssigned is published when a pool lead is exclusively assigned to a tenant.
type LeadAssigned struct {
	BaseEvent
	LeadID       uuid.UUID  `json:"leadId"`
	TenantID     uuid.UUID  `json:"tenantId"`
	CampaignID   *uuid.UUID `json:"campaignId,omitempty"`
	AssignmentID uuid.UUID  `json:"assignmentId"`
}

func (e LeadAssigned) EventName() string { return "leadpool.lead.assigned" }

// LeadReleased is published when an assignment ends and the lead returns to
// the pool (or becomes permanently ineligible).
type LeadReleased struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	TenantID     uuid.UUID `json:"tenantId"`
	AssignmentID uuid.UUID `json:"assignmentId"`
	BackInPool   bool      `json:"backInPool"`
}

func (e LeadReleased) EventName() string { return "leadpool.lead.released" }

// =============================================================================
// Resource Events
// =============================================================================

// ResourceGranted is published when a shared resource is granted to a tenant.
type ResourceGranted struct {
	BaseEvent
	ResourceID uuid.UUID `json:"resourceId"`
	TenantID   uuid.UUID `json:"tenantId"`
	GrantID    uuid.UUID `json:"grantId"`
}

func (e ResourceGranted) EventName() string { return "resources.grant.created" }

// ResourceHealthChanged is published when a resource's derived health status
// transitions. Consumers use it for operational visibility; throttling itself
// happens at dispatch time.
type ResourceHealthChanged struct {
	BaseEvent
	ResourceID    uuid.UUID `json:"resourceId"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	BounceRate    float64   `json:"bounceRate"`
	ComplaintRate float64   `json:"complaintRate"`
}

func (e ResourceHealthChanged) EventName() string { return "resources.health.changed" }

// =============================================================================
// Action Queue Events
// =============================================================================

// ActionCompleted is published when a queue item reaches a terminal or
// rescheduled state after a dispatch attempt.
type ActionCompleted struct {
	BaseEvent
	ItemID     uuid.UUID `json:"itemId"`
	ResourceID uuid.UUID `json:"resourceId"`
	TenantID   uuid.UUID `json:"tenantId"`
	Outcome    string    `json:"outcome"` // sent | failed | rate_limited | retry_scheduled | rejected
	Attempts   int       `json:"attempts"`
	At         time.Time `json:"at"`
}

func (e ActionCompleted) EventName() string { return "actionqueue.item.completed" }
