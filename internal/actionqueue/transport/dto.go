// Package transport defines request/response DTOs for the action queue API.
package transport

import (
	"time"

	"outreach_portal_backend/internal/actionqueue/repository"

	"github.com/google/uuid"
)

// EnqueueRequest schedules one outreach action.
type EnqueueRequest struct {
	ResourceID  uuid.UUID  `json:"resourceId" validate:"required"`
	LeadID      uuid.UUID  `json:"leadId" validate:"required"`
	ActionType  string     `json:"actionType" validate:"required,max=100"`
	Channel     string     `json:"channel" validate:"required,oneof=email linkedin sms voice"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	Priority    int        `json:"priority" validate:"omitempty,min=0,max=100"`
	MaxAttempts int        `json:"maxAttempts" validate:"omitempty,min=1,max=10"`
}

// ItemResponse is the API shape of a queue item.
type ItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ResourceID  uuid.UUID `json:"resourceId"`
	LeadID      uuid.UUID `json:"leadId"`
	TenantID    uuid.UUID `json:"tenantId"`
	ActionType  string    `json:"actionType"`
	Channel     string    `json:"channel"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Priority    int       `json:"priority"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"maxAttempts"`
	LastError   *string   `json:"lastError,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToItemResponse maps a repository queue item to its API shape.
func ToItemResponse(item repository.QueueItem) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		ResourceID:  item.ResourceID,
		LeadID:      item.LeadID,
		TenantID:    item.TenantID,
		ActionType:  item.ActionType,
		Channel:     string(item.Channel),
		ScheduledAt: item.ScheduledAt,
		Priority:    item.Priority,
		Status:      string(item.Status),
		Attempts:    item.Attempts,
		MaxAttempts: item.MaxAttempts,
		LastError:   item.LastError,
		CreatedAt:   item.CreatedAt,
	}
}

// ToItemResponses maps a slice of repository queue items.
func ToItemResponses(items []repository.QueueItem) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, item := range items {
		out[i] = ToItemResponse(item)
	}
	return out
}
