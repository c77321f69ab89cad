// Package service implements shared resource allocation: tier-quota checks,
// capacity-aware grants, warm-up aware limits, and deliverability health.
package service

import (
	"context"
	"time"

	"outreach_portal_backend/internal/events"
	"outreach_portal_backend/internal/resources/domain"
	"outreach_portal_backend/internal/resources/repository"
	"outreach_portal_backend/internal/resources/transport"
	"outreach_portal_backend/internal/resources/warmup"
	"outreach_portal_backend/platform/apperr"
	"outreach_portal_backend/platform/logger"
	"outreach_portal_backend/platform/phone"

	"github.com/google/uuid"
)

const healthWindow = 30 * 24 * time.Hour

// Repository defines the data access interface needed by the resources service.
type Repository interface {
	repository.ResourceReader
	repository.ResourceWriter
}

// Service handles resource allocation and health operations.
type Service struct {
	repo     Repository
	policy   *warmup.Policy
	loc      *time.Location
	eventBus events.Bus
	log      *logger.Logger
}

// New creates a new resources service. loc is the scheduling timezone all
// warm-up day arithmetic uses.
func New(repo Repository, policy *warmup.Policy, loc *time.Location, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, policy: policy, loc: loc, eventBus: eventBus, log: log}
}

// Register adds a resource to the shared pool. Phone numbers are normalized
// to E.164 so the uniqueness constraint catches formatting duplicates.
func (s *Service) Register(ctx context.Context, req transport.RegisterResourceRequest) (transport.ResourceResponse, error) {
	resourceType := domain.ResourceType(req.Type)
	if !domain.ValidType(resourceType) {
		return transport.ResourceResponse{}, apperr.Validation("unknown resource type")
	}

	value := req.Value
	if resourceType == domain.TypePhoneNumber {
		value = phone.NormalizeE164(value)
	}

	res, err := s.repo.Register(ctx, repository.RegisterParams{
		Type:               resourceType,
		Value:              value,
		MaxTenants:         req.MaxTenants,
		DailyLimitOverride: req.DailyLimitOverride,
	})
	if err != nil {
		return transport.ResourceResponse{}, err
	}

	s.log.Info("resource registered", "resource_id", res.ID, "type", res.Type, "value", res.Value)
	return transport.ToResourceResponse(res, s.EffectiveDailyLimit(res, time.Now())), nil
}

// Retire removes a resource from allocation.
func (s *Service) Retire(ctx context.Context, id uuid.UUID) (transport.ResourceResponse, error) {
	res, err := s.repo.Retire(ctx, id)
	if err != nil {
		return transport.ResourceResponse{}, err
	}

	s.log.Info("resource retired", "resource_id", res.ID, "type", res.Type)
	return transport.ToResourceResponse(res, 0), nil
}

// GetByID retrieves one resource with its current effective limit.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.ResourceResponse, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ResourceResponse{}, err
	}
	return transport.ToResourceResponse(res, s.EffectiveDailyLimit(res, time.Now())), nil
}

// List retrieves resources, optionally filtered by type.
func (s *Service) List(ctx context.Context, resourceType string, limit, offset int) ([]transport.ResourceResponse, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var typeFilter *domain.ResourceType
	if resourceType != "" {
		t := domain.ResourceType(resourceType)
		if !domain.ValidType(t) {
			return nil, apperr.Validation("unknown resource type")
		}
		typeFilter = &t
	}

	resources, err := s.repo.List(ctx, typeFilter, limit, offset)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]transport.ResourceResponse, len(resources))
	for i, res := range resources {
		out[i] = transport.ToResourceResponse(res, s.EffectiveDailyLimit(res, now))
	}
	return out, nil
}

// ListGrants retrieves a tenant's active grants.
func (s *Service) ListGrants(ctx context.Context, tenantID uuid.UUID) ([]transport.GrantResponse, error) {
	grants, err := s.repo.ListGrantsByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.GrantResponse, len(grants))
	for i, g := range grants {
		out[i] = transport.ToGrantResponse(g)
	}
	return out, nil
}

// Request grants the tenant the requested number of the best available
// resources of the given type. The tier quota is checked for the whole batch
// first; each capacity check runs under a row lock in the repository so
// concurrent requests cannot oversubscribe a resource. A mid-batch failure
// unwinds the grants already made, so the request is all or nothing.
func (s *Service) Request(ctx context.Context, tenantID uuid.UUID, req transport.RequestResourceRequest) ([]transport.GrantedResourceResponse, error) {
	resourceType := domain.ResourceType(req.Type)
	if !domain.ValidType(resourceType) {
		return nil, apperr.Validation("unknown resource type")
	}
	count := req.Count
	if count < 1 {
		count = 1
	}

	tier, err := s.repo.TenantTier(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	quota, err := s.repo.QuotaFor(ctx, tier, resourceType)
	if err != nil {
		return nil, err
	}
	held, err := s.repo.CountActiveGrants(ctx, tenantID, resourceType)
	if err != nil {
		return nil, err
	}
	if held+count > quota {
		return nil, apperr.Forbidden("resource quota reached for tier").
			WithDetails(map[string]any{"tier": tier, "quota": quota, "held": held, "requested": count})
	}

	now := time.Now()
	rampCompleteBefore := now.AddDate(0, 0, -s.policy.RampDays(resourceType))

	granted := make([]transport.GrantedResourceResponse, 0, count)
	for i := 0; i < count; i++ {
		grant, res, err := s.repo.GrantBest(ctx, resourceType, tenantID, rampCompleteBefore)
		if err != nil {
			for _, g := range granted {
				if _, revokeErr := s.repo.Revoke(ctx, g.Grant.ID, tenantID); revokeErr != nil {
					s.log.Warn("grant unwind failed", "grant_id", g.Grant.ID, "error", revokeErr)
				}
			}
			return nil, err
		}

		s.eventBus.Publish(ctx, events.ResourceGranted{
			BaseEvent:  events.NewBaseEvent(),
			ResourceID: res.ID,
			TenantID:   tenantID,
			GrantID:    grant.ID,
		})
		granted = append(granted, transport.GrantedResourceResponse{
			Grant:    transport.ToGrantResponse(grant),
			Resource: transport.ToResourceResponse(res, s.EffectiveDailyLimit(res, now)),
		})
	}

	s.log.Info("resources granted", "tenant_id", tenantID, "type", resourceType, "count", len(granted))
	return granted, nil
}

// Revoke releases an active grant back to the shared pool.
func (s *Service) Revoke(ctx context.Context, grantID, tenantID uuid.UUID) (transport.GrantResponse, error) {
	grant, err := s.repo.Revoke(ctx, grantID, tenantID)
	if err != nil {
		return transport.GrantResponse{}, err
	}

	s.log.Info("resource grant revoked", "grant_id", grantID, "resource_id", grant.ResourceID, "tenant_id", tenantID)
	return transport.ToGrantResponse(grant), nil
}

// ReportSendEvent records one deliverability event against a resource.
// Events feed the trailing 30-day window the health recompute aggregates.
func (s *Service) ReportSendEvent(ctx context.Context, resourceID uuid.UUID, req transport.SendEventRequest) error {
	occurredAt := time.Now()
	if req.OccurredAt != nil {
		occurredAt = *req.OccurredAt
	}
	return s.repo.RecordSendEvent(ctx, resourceID, req.EventType, occurredAt)
}

// EffectiveDailyLimit computes how many sends a resource may make today,
// combining its warm-up ramp position with its health status. A resource
// that was never activated has no ramp position and may not send. An
// explicit per-resource override takes precedence over both.
func (s *Service) EffectiveDailyLimit(res repository.Resource, now time.Time) int {
	if res.Status == domain.StatusRetired {
		return 0
	}

	warmupLimit := 0
	if res.ActivatedAt != nil {
		day := warmup.DayNumber(*res.ActivatedAt, now, s.loc)
		warmupLimit = s.policy.LimitFor(res.Type, day)
	}

	return domain.EffectiveDailyLimit(res.Health, warmupLimit, res.DailyLimitOverride)
}

// DailyLimit fetches a resource and computes its effective limit for today.
// The dispatcher consults this on every send attempt.
func (s *Service) DailyLimit(ctx context.Context, resourceID uuid.UUID, now time.Time) (int, error) {
	res, err := s.repo.GetByID(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	return s.EffectiveDailyLimit(res, now), nil
}

// RecomputeHealth re-derives the trailing window and health status for up to
// limit resources, publishing a transition event for every status change.
func (s *Service) RecomputeHealth(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = 100
	}

	resources, err := s.repo.ListForHealthRecompute(ctx, limit)
	if err != nil {
		return 0, err
	}

	since := time.Now().Add(-healthWindow)
	updated := 0
	for _, res := range resources {
		counts, err := s.repo.WindowCounts(ctx, res.ID, since)
		if err != nil {
			s.log.Warn("window aggregation failed", "resource_id", res.ID, "error", err)
			continue
		}

		health := domain.Classify(counts)
		rates := counts.ComputeRates()

		previous, err := s.repo.ApplyHealthUpdate(ctx, repository.HealthUpdate{
			ResourceID: res.ID,
			Counts:     counts,
			Rates:      rates,
			Health:     health,
		})
		if err != nil {
			s.log.Warn("health update failed", "resource_id", res.ID, "error", err)
			continue
		}
		updated++

		if previous != health {
			s.log.HealthTransition(res.ID.String(), string(previous), string(health), rates.Bounce, rates.Complaint)
			s.eventBus.Publish(ctx, events.ResourceHealthChanged{
				BaseEvent:     events.NewBaseEvent(),
				ResourceID:    res.ID,
				From:          string(previous),
				To:            string(health),
				BounceRate:    rates.Bounce,
				ComplaintRate: rates.Complaint,
			})
		}
	}
	return updated, nil
}
