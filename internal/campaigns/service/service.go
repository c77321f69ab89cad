// Package service implements campaign management with the tenant-wide
// allocation budget check.
package service

import (
	"context"

	"outreach_portal_backend/internal/campaigns/domain"
	"outreach_portal_backend/internal/campaigns/repository"
	"outreach_portal_backend/internal/campaigns/transport"
	"outreach_portal_backend/platform/apperr"
	"outreach_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the campaigns service.
type Repository interface {
	repository.CampaignReader
	repository.CampaignWriter
}

// Service handles campaign operations.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// New creates a new campaigns service.
func New(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Create registers a campaign. The repository validates the tenant's
// allocation budget transactionally.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req transport.CreateCampaignRequest) (transport.CampaignResponse, error) {
	c, err := s.repo.Create(ctx, repository.CreateParams{
		TenantID:          tenantID,
		Name:              req.Name,
		LeadAllocationPct: req.LeadAllocationPct,
	})
	if err != nil {
		return transport.CampaignResponse{}, err
	}

	s.log.Info("campaign created", "campaign_id", c.ID, "tenant_id", tenantID, "allocation_pct", c.LeadAllocationPct)
	return transport.ToCampaignResponse(c), nil
}

// GetByID retrieves a tenant's campaign.
func (s *Service) GetByID(ctx context.Context, id, tenantID uuid.UUID) (transport.CampaignResponse, error) {
	c, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return transport.CampaignResponse{}, err
	}
	return transport.ToCampaignResponse(c), nil
}

// List retrieves all of a tenant's campaigns.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]transport.CampaignResponse, error) {
	campaigns, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return transport.ToCampaignResponses(campaigns), nil
}

// UpdateAllocation replaces a campaign's allocation share, re-validating the
// tenant budget with the current value excluded.
func (s *Service) UpdateAllocation(ctx context.Context, id, tenantID uuid.UUID, req transport.UpdateAllocationRequest) (transport.CampaignResponse, error) {
	c, err := s.repo.UpdateAllocation(ctx, id, tenantID, req.LeadAllocationPct)
	if err != nil {
		return transport.CampaignResponse{}, err
	}

	s.log.Info("campaign allocation updated", "campaign_id", id, "tenant_id", tenantID, "allocation_pct", req.LeadAllocationPct)
	return transport.ToCampaignResponse(c), nil
}

// UpdateStatus transitions a campaign's lifecycle state. Completed and
// archived campaigns free their allocation share and cannot come back.
func (s *Service) UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, req transport.UpdateStatusRequest) (transport.CampaignResponse, error) {
	to := domain.Status(req.Status)
	if !domain.ValidStatus(to) {
		return transport.CampaignResponse{}, apperr.Validation("unknown campaign status")
	}

	current, err := s.repo.GetByID(ctx, id, tenantID)
	if err != nil {
		return transport.CampaignResponse{}, err
	}
	if !domain.CanTransition(current.Status, to) {
		return transport.CampaignResponse{}, apperr.Conflict("invalid campaign status transition").
			WithDetails(map[string]any{"from": string(current.Status), "to": string(to)})
	}

	c, err := s.repo.UpdateStatus(ctx, id, tenantID, to)
	if err != nil {
		return transport.CampaignResponse{}, err
	}

	s.log.Info("campaign status changed", "campaign_id", id, "from", string(current.Status), "to", string(to))
	return transport.ToCampaignResponse(c), nil
}
