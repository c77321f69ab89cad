// Package transport defines request/response DTOs for the lead pool API.
package transport

import (
	"time"

	"outreach_portal_backend/internal/leadpool/repository"

	"github.com/google/uuid"
)

// SubmitLeadRequest adds a prospect to the platform pool.
type SubmitLeadRequest struct {
	ExternalRef  string     `json:"externalRef" validate:"required,max=255"`
	Email        string     `json:"email" validate:"required,email"`
	FirstName    *string    `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName     *string    `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Company      *string    `json:"company,omitempty" validate:"omitempty,max=255"`
	Title        *string    `json:"title,omitempty" validate:"omitempty,max=255"`
	CompanySize  *int       `json:"companySize,omitempty" validate:"omitempty,min=1"`
	Industry     *string    `json:"industry,omitempty" validate:"omitempty,max=100"`
	Country      *string    `json:"country,omitempty" validate:"omitempty,len=2"`
	Verification string     `json:"verification" validate:"omitempty,oneof=verified guessed invalid catch_all unknown"`
	SignalAt     *time.Time `json:"signalAt,omitempty"`
}

// AssignLeadRequest claims a pool lead for the calling tenant.
type AssignLeadRequest struct {
	CampaignID *uuid.UUID `json:"campaignId,omitempty"`
	Reason     string     `json:"reason" validate:"omitempty,max=255"`
	MaxTouches int        `json:"maxTouches" validate:"omitempty,min=1,max=50"`
}

// ReleaseLeadRequest ends an active assignment.
type ReleaseLeadRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

// FlagLeadRequest marks a lead globally bounced and/or unsubscribed.
type FlagLeadRequest struct {
	Bounced      bool `json:"bounced"`
	Unsubscribed bool `json:"unsubscribed"`
}

// TouchRequest records an outreach touch against an assignment.
type TouchRequest struct {
	CoolingOffHours int `json:"coolingOffHours" validate:"omitempty,min=0,max=720"`
}

// ScoreLeadRequest triggers scoring, optionally with tenant weights.
type ScoreLeadRequest struct {
	Weights *WeightsDTO `json:"weights,omitempty"`
}

// WeightsDTO is the tenant multiplier vector for the scoring factors.
type WeightsDTO struct {
	DataQuality float64 `json:"dataQuality" validate:"min=0,max=1.5"`
	Authority   float64 `json:"authority" validate:"min=0,max=1.5"`
	CompanyFit  float64 `json:"companyFit" validate:"min=0,max=1.5"`
	Timing      float64 `json:"timing" validate:"min=0,max=1.5"`
	Risk        float64 `json:"risk" validate:"min=0,max=1.5"`
}

// LeadResponse is the API shape of a pool lead.
type LeadResponse struct {
	ID           uuid.UUID  `json:"id"`
	ExternalRef  string     `json:"externalRef"`
	Email        string     `json:"email"`
	FirstName    *string    `json:"firstName,omitempty"`
	LastName     *string    `json:"lastName,omitempty"`
	Company      *string    `json:"company,omitempty"`
	Title        *string    `json:"title,omitempty"`
	CompanySize  *int       `json:"companySize,omitempty"`
	Industry     *string    `json:"industry,omitempty"`
	Country      *string    `json:"country,omitempty"`
	Verification string     `json:"verification"`
	PoolStatus   string     `json:"poolStatus"`
	Score        *int       `json:"score,omitempty"`
	ScoreTier    *string    `json:"scoreTier,omitempty"`
	ScoredAt     *time.Time `json:"scoredAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// AssignmentResponse is the API shape of a tenant assignment.
type AssignmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	LeadID       uuid.UUID  `json:"leadId"`
	TenantID     uuid.UUID  `json:"tenantId"`
	CampaignID   *uuid.UUID `json:"campaignId,omitempty"`
	Status       string     `json:"status"`
	TouchCount   int        `json:"touchCount"`
	MaxTouches   int        `json:"maxTouches"`
	CoolingUntil *time.Time `json:"coolingUntil,omitempty"`
	AssignedAt   time.Time  `json:"assignedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
}

// ScoreResponse is the API shape of one scoring run.
type ScoreResponse struct {
	LeadID       uuid.UUID `json:"leadId"`
	Total        int       `json:"total"`
	Tier         string    `json:"tier"`
	DataQuality  float64   `json:"dataQuality"`
	Authority    float64   `json:"authority"`
	CompanyFit   float64   `json:"companyFit"`
	Timing       float64   `json:"timing"`
	Risk         float64   `json:"risk"`
	ScoreVersion string    `json:"scoreVersion"`
}

// ValidationResponse is the outcome of the just-in-time send gate.
type ValidationResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// ToLeadResponse maps a repository lead to its API shape.
func ToLeadResponse(lead repository.PoolLead) LeadResponse {
	return LeadResponse{
		ID:           lead.ID,
		ExternalRef:  lead.ExternalRef,
		Email:        lead.Email,
		FirstName:    lead.FirstName,
		LastName:     lead.LastName,
		Company:      lead.Company,
		Title:        lead.Title,
		CompanySize:  lead.CompanySize,
		Industry:     lead.Industry,
		Country:      lead.Country,
		Verification: string(lead.Verification),
		PoolStatus:   string(lead.PoolStatus),
		Score:        lead.Score,
		ScoreTier:    lead.ScoreTier,
		ScoredAt:     lead.ScoredAt,
		CreatedAt:    lead.CreatedAt,
	}
}

// ToLeadResponses maps a slice of repository leads.
func ToLeadResponses(leads []repository.PoolLead) []LeadResponse {
	out := make([]LeadResponse, len(leads))
	for i, lead := range leads {
		out[i] = ToLeadResponse(lead)
	}
	return out
}

// ToAssignmentResponse maps a repository assignment to its API shape.
func ToAssignmentResponse(a repository.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:           a.ID,
		LeadID:       a.LeadID,
		TenantID:     a.TenantID,
		CampaignID:   a.CampaignID,
		Status:       string(a.Status),
		TouchCount:   a.TouchCount,
		MaxTouches:   a.MaxTouches,
		CoolingUntil: a.CoolingUntil,
		AssignedAt:   a.AssignedAt,
		EndedAt:      a.EndedAt,
	}
}
