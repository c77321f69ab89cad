// Package service implements the durable action queue: scheduling, lease
// claims, and dispatch with daily caps and retry backoff.
package service

import (
	"context"
	"time"

	"outreach_portal_backend/internal/actionqueue/domain"
	"outreach_portal_backend/internal/actionqueue/repository"
	"outreach_portal_backend/internal/actionqueue/transport"
	"outreach_portal_backend/platform/apperr"
	"outreach_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the queue service.
type Repository interface {
	repository.QueueReader
	repository.QueueWriter
	repository.DailyCapStore
}

// Service handles queue item scheduling operations.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// New creates a new action queue service.
func New(repo Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Enqueue schedules an action for dispatch. The item is durable immediately;
// delivery happens asynchronously once scheduled_at is due.
func (s *Service) Enqueue(ctx context.Context, tenantID uuid.UUID, req transport.EnqueueRequest) (transport.ItemResponse, error) {
	channel := domain.Channel(req.Channel)
	if !domain.ValidChannel(channel) {
		return transport.ItemResponse{}, apperr.Validation("unknown channel")
	}

	scheduledAt := time.Now()
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}

	item, err := s.repo.Enqueue(ctx, repository.EnqueueParams{
		ResourceID:  req.ResourceID,
		LeadID:      req.LeadID,
		TenantID:    tenantID,
		ActionType:  req.ActionType,
		Channel:     channel,
		ScheduledAt: scheduledAt,
		Priority:    req.Priority,
		MaxAttempts: req.MaxAttempts,
	})
	if err != nil {
		return transport.ItemResponse{}, err
	}

	s.log.Debug("action enqueued", "item_id", item.ID, "tenant_id", tenantID, "channel", channel)
	return transport.ToItemResponse(item), nil
}

// GetByID retrieves a queue item scoped to the tenant.
func (s *Service) GetByID(ctx context.Context, id, tenantID uuid.UUID) (transport.ItemResponse, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ItemResponse{}, err
	}
	if item.TenantID != tenantID {
		return transport.ItemResponse{}, apperr.NotFound("queue item not found")
	}
	return transport.ToItemResponse(item), nil
}

// List retrieves a tenant's queue items, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, status string, limit, offset int) ([]transport.ItemResponse, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var statusFilter *domain.Status
	if status != "" {
		st := domain.Status(status)
		statusFilter = &st
	}

	items, err := s.repo.ListByTenant(ctx, tenantID, statusFilter, limit, offset)
	if err != nil {
		return nil, err
	}
	return transport.ToItemResponses(items), nil
}

// Cancel withdraws a pending or parked item before dispatch.
func (s *Service) Cancel(ctx context.Context, id, tenantID uuid.UUID) (transport.ItemResponse, error) {
	item, err := s.repo.Cancel(ctx, id, tenantID)
	if err != nil {
		return transport.ItemResponse{}, err
	}

	s.log.Info("action cancelled", "item_id", id, "tenant_id", tenantID)
	return transport.ToItemResponse(item), nil
}
