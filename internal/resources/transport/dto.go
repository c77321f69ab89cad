// Package transport defines request/response DTOs for the resources API.
package transport

import (
	"time"

	"outreach_portal_backend/internal/resources/repository"

	"github.com/google/uuid"
)

// RegisterResourceRequest adds a resource to the shared pool.
type RegisterResourceRequest struct {
	Type               string `json:"type" validate:"required,oneof=sending_domain phone_number social_seat"`
	Value              string `json:"value" validate:"required,max=255"`
	MaxTenants         int    `json:"maxTenants" validate:"omitempty,min=1,max=100"`
	DailyLimitOverride *int   `json:"dailyLimitOverride,omitempty" validate:"omitempty,min=0,max=10000"`
}

// RequestResourceRequest asks for grants of the given resource type.
// Count defaults to one.
type RequestResourceRequest struct {
	Type  string `json:"type" validate:"required,oneof=sending_domain phone_number social_seat"`
	Count int    `json:"count" validate:"omitempty,min=1,max=20"`
}

// SendEventRequest reports a deliverability event for a resource.
type SendEventRequest struct {
	EventType  string     `json:"eventType" validate:"required,oneof=sent accepted bounced complained"`
	OccurredAt *time.Time `json:"occurredAt,omitempty"`
}

// ResourceResponse is the API shape of a shared resource.
type ResourceResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Type               string     `json:"type"`
	Value              string     `json:"value"`
	Status             string     `json:"status"`
	Health             string     `json:"health"`
	MaxTenants         int        `json:"maxTenants"`
	CurrentTenants     int        `json:"currentTenants"`
	ActivatedAt        *time.Time `json:"activatedAt,omitempty"`
	DailyLimitOverride *int       `json:"dailyLimitOverride,omitempty"`
	EffectiveLimit     int        `json:"effectiveDailyLimit"`
	BounceRate         float64    `json:"bounceRate"`
	ComplaintRate      float64    `json:"complaintRate"`
	AcceptRate         float64    `json:"acceptRate"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// GrantResponse is the API shape of a tenant resource grant.
type GrantResponse struct {
	ID          uuid.UUID  `json:"id"`
	ResourceID  uuid.UUID  `json:"resourceId"`
	TenantID    uuid.UUID  `json:"tenantId"`
	GrantedAt   time.Time  `json:"grantedAt"`
	ReleasedAt  *time.Time `json:"releasedAt,omitempty"`
	ActionsUsed int64      `json:"actionsUsed"`
}

// GrantedResourceResponse pairs a new grant with its resource.
type GrantedResourceResponse struct {
	Grant    GrantResponse    `json:"grant"`
	Resource ResourceResponse `json:"resource"`
}

// ToResourceResponse maps a repository resource to its API shape.
// effectiveLimit is computed by the service from warm-up and health state.
func ToResourceResponse(res repository.Resource, effectiveLimit int) ResourceResponse {
	return ResourceResponse{
		ID:                 res.ID,
		Type:               string(res.Type),
		Value:              res.Value,
		Status:             string(res.Status),
		Health:             string(res.Health),
		MaxTenants:         res.MaxTenants,
		CurrentTenants:     res.CurrentTenants,
		ActivatedAt:        res.ActivatedAt,
		DailyLimitOverride: res.DailyLimitOverride,
		EffectiveLimit:     effectiveLimit,
		BounceRate:         res.BounceRate,
		ComplaintRate:      res.ComplaintRate,
		AcceptRate:         res.AcceptRate,
		CreatedAt:          res.CreatedAt,
	}
}

// ToGrantResponse maps a repository grant to its API shape.
func ToGrantResponse(g repository.Grant) GrantResponse {
	return GrantResponse{
		ID:          g.ID,
		ResourceID:  g.ResourceID,
		TenantID:    g.TenantID,
		GrantedAt:   g.GrantedAt,
		ReleasedAt:  g.ReleasedAt,
		ActionsUsed: g.ActionsUsed,
	}
}
