// Package transport defines request/response DTOs for the campaigns API.
package transport

import (
	"time"

	"outreach_portal_backend/internal/campaigns/repository"

	"github.com/google/uuid"
)

// CreateCampaignRequest creates a campaign with its allocation share.
type CreateCampaignRequest struct {
	Name              string `json:"name" validate:"required,max=200"`
	LeadAllocationPct int    `json:"leadAllocationPct" validate:"required,min=1,max=100"`
}

// UpdateAllocationRequest replaces a campaign's allocation share.
type UpdateAllocationRequest struct {
	LeadAllocationPct int `json:"leadAllocationPct" validate:"required,min=1,max=100"`
}

// UpdateStatusRequest transitions a campaign's lifecycle state.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft active paused completed archived"`
}

// CampaignResponse is the API shape of a campaign.
type CampaignResponse struct {
	ID                uuid.UUID `json:"id"`
	TenantID          uuid.UUID `json:"tenantId"`
	Name              string    `json:"name"`
	Status            string    `json:"status"`
	LeadAllocationPct int       `json:"leadAllocationPct"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ToCampaignResponse maps a repository campaign to its API shape.
func ToCampaignResponse(c repository.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:                c.ID,
		TenantID:          c.TenantID,
		Name:              c.Name,
		Status:            string(c.Status),
		LeadAllocationPct: c.LeadAllocationPct,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// ToCampaignResponses maps a slice of repository campaigns.
func ToCampaignResponses(campaigns []repository.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, len(campaigns))
	for i, c := range campaigns {
		out[i] = ToCampaignResponse(c)
	}
	return out
}
