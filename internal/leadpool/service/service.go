// Package service implements lead pool lifecycle operations: intake,
// exclusive assignment, release, conversion, and the just-in-time send gate.
package service

import (
	"context"
	"time"

	"outreach_portal_backend/internal/events"
	"outreach_portal_backend/internal/leadpool/domain"
	"outreach_portal_backend/internal/leadpool/repository"
	"outreach_portal_backend/internal/leadpool/transport"
	"outreach_portal_backend/platform/apperr"
	"outreach_portal_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultMaxTouches = 8

// Repository defines the data access interface needed by the lifecycle service.
type Repository interface {
	repository.LeadReader
	repository.LeadWriter
}

// Service handles lead pool lifecycle operations.
type Service struct {
	repo     Repository
	eventBus events.Bus
	log      *logger.Logger
}

// New creates a new lead pool service.
func New(repo Repository, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, eventBus: eventBus, log: log}
}

// Submit adds a prospect to the platform pool. External refs are idempotent:
// resubmitting an existing ref updates enrichment attributes in place.
func (s *Service) Submit(ctx context.Context, req transport.SubmitLeadRequest) (transport.LeadResponse, error) {
	verification := domain.VerificationStatus(req.Verification)
	if verification == "" {
		verification = domain.VerificationUnknown
	}

	lead, err := s.repo.Submit(ctx, repository.SubmitParams{
		ExternalRef:  req.ExternalRef,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Company:      req.Company,
		Title:        req.Title,
		CompanySize:  req.CompanySize,
		Industry:     req.Industry,
		Country:      req.Country,
		Verification: verification,
		SignalAt:     req.SignalAt,
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	return transport.ToLeadResponse(lead), nil
}

// GetByID retrieves a pool lead.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// ListByTenant lists leads currently assigned to a tenant.
func (s *Service) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]transport.LeadResponse, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	leads, err := s.repo.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	return transport.ToLeadResponses(leads), nil
}

// Assign exclusively claims a pool lead for a tenant. The availability check
// runs again inside the repository transaction under a row lock, so two
// concurrent claims on the same lead yield exactly one winner; the loser
// receives a conflict.
func (s *Service) Assign(ctx context.Context, leadID, tenantID, actorID uuid.UUID, req transport.AssignLeadRequest) (transport.AssignmentResponse, error) {
	maxTouches := req.MaxTouches
	if maxTouches < 1 {
		maxTouches = defaultMaxTouches
	}

	assignment, err := s.repo.Assign(ctx, repository.AssignParams{
		LeadID:     leadID,
		TenantID:   tenantID,
		CampaignID: req.CampaignID,
		AssignedBy: actorID,
		Reason:     req.Reason,
		MaxTouches: maxTouches,
	})
	if err != nil {
		return transport.AssignmentResponse{}, err
	}

	s.eventBus.Publish(ctx, events.LeadAssigned{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       leadID,
		TenantID:     tenantID,
		CampaignID:   req.CampaignID,
		AssignmentID: assignment.ID,
	})

	s.log.Info("lead assigned", "lead_id", leadID, "tenant_id", tenantID, "assignment_id", assignment.ID)
	return transport.ToAssignmentResponse(assignment), nil
}

// Release ends an active assignment. The lead returns to the pool unless it
// is globally bounced, unsubscribed, or invalid, in which case it moves to
// the matching terminal status.
func (s *Service) Release(ctx context.Context, assignmentID, tenantID uuid.UUID, req transport.ReleaseLeadRequest) (transport.AssignmentResponse, error) {
	assignment, lead, err := s.repo.Release(ctx, assignmentID, tenantID, req.Reason)
	if err != nil {
		return transport.AssignmentResponse{}, err
	}

	s.eventBus.Publish(ctx, events.LeadReleased{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		TenantID:     tenantID,
		AssignmentID: assignment.ID,
		BackInPool:   lead.PoolStatus == domain.StatusAvailable,
	})

	s.log.Info("lead released", "lead_id", lead.ID, "tenant_id", tenantID, "pool_status", lead.PoolStatus)
	return transport.ToAssignmentResponse(assignment), nil
}

// Convert marks an assignment as converted. The lead leaves the pool
// permanently and stays with the tenant.
func (s *Service) Convert(ctx context.Context, assignmentID, tenantID uuid.UUID) (transport.AssignmentResponse, error) {
	assignment, err := s.repo.Convert(ctx, assignmentID, tenantID)
	if err != nil {
		return transport.AssignmentResponse{}, err
	}

	s.log.Info("lead converted", "lead_id", assignment.LeadID, "tenant_id", tenantID)
	return transport.ToAssignmentResponse(assignment), nil
}

// Touch records an outreach touch against an assignment and optionally arms
// a cooling-off window before the next touch.
func (s *Service) Touch(ctx context.Context, assignmentID, tenantID uuid.UUID, req transport.TouchRequest) (transport.AssignmentResponse, error) {
	var coolingUntil *time.Time
	if req.CoolingOffHours > 0 {
		until := time.Now().Add(time.Duration(req.CoolingOffHours) * time.Hour)
		coolingUntil = &until
	}

	assignment, err := s.repo.IncrementTouch(ctx, assignmentID, tenantID, coolingUntil)
	if err != nil {
		return transport.AssignmentResponse{}, err
	}
	return transport.ToAssignmentResponse(assignment), nil
}

// TouchByLead increments the touch counter on the lead's active assignment.
// Called by the dispatcher after a successful send, where only the lead is
// known.
func (s *Service) TouchByLead(ctx context.Context, leadID, tenantID uuid.UUID) error {
	assignment, err := s.repo.GetActiveAssignment(ctx, leadID)
	if err != nil {
		return err
	}
	if assignment == nil || assignment.TenantID != tenantID {
		return apperr.Conflict("lead has no active assignment for tenant")
	}
	_, err = s.repo.IncrementTouch(ctx, assignment.ID, tenantID, nil)
	return err
}

// Flag marks a lead globally bounced and/or unsubscribed. Any active
// assignment is expired in the same transaction so no tenant keeps working
// an ineligible lead.
func (s *Service) Flag(ctx context.Context, leadID uuid.UUID, req transport.FlagLeadRequest) (transport.LeadResponse, error) {
	if !req.Bounced && !req.Unsubscribed {
		return transport.LeadResponse{}, apperr.BadRequest("at least one flag must be set")
	}

	lead, err := s.repo.Flag(ctx, leadID, req.Bounced, req.Unsubscribed)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.log.Info("lead flagged", "lead_id", leadID, "bounced", req.Bounced, "unsubscribed", req.Unsubscribed)
	return transport.ToLeadResponse(lead), nil
}

// ValidateSend runs the just-in-time gate an action must pass immediately
// before contacting a lead. It never mutates state; the dispatcher calls it
// on every attempt, including retries.
func (s *Service) ValidateSend(ctx context.Context, leadID, tenantID uuid.UUID, channel string) (domain.RejectReason, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return "", err
	}

	assignment, err := s.repo.GetActiveAssignment(ctx, leadID)
	if err != nil {
		return "", err
	}

	var assignmentState *domain.AssignmentState
	if assignment != nil && assignment.TenantID == tenantID {
		assignmentState = &domain.AssignmentState{
			Status:       assignment.Status,
			TouchCount:   assignment.TouchCount,
			MaxTouches:   assignment.MaxTouches,
			CoolingUntil: assignment.CoolingUntil,
		}
	}

	leadState := domain.LeadState{
		PoolStatus:     lead.PoolStatus,
		Verification:   lead.Verification,
		IsBounced:      lead.IsBounced,
		IsUnsubscribed: lead.IsUnsubscribed,
	}

	return domain.ValidateSend(leadState, assignmentState, channel, time.Now()), nil
}
