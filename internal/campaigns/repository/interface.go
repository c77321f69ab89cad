// Package repository provides data access for campaigns and their
// lead allocation budget.
package repository

import (
	"context"
	"time"

	"outreach_portal_backend/internal/campaigns/domain"

	"github.com/google/uuid"
)

// Campaign is a tenant campaign row.
type Campaign struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Name              string
	Status            domain.Status
	LeadAllocationPct int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateParams holds the fields for a new campaign.
type CreateParams struct {
	TenantID          uuid.UUID
	Name              string
	LeadAllocationPct int
}

// CampaignReader defines read operations.
type CampaignReader interface {
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (Campaign, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Campaign, error)
}

// CampaignWriter defines write operations. Create and UpdateAllocation lock
// the tenant's non-terminal campaign rows, sum their allocation, and reject
// with a conflict when the budget would be exceeded.
type CampaignWriter interface {
	Create(ctx context.Context, params CreateParams) (Campaign, error)
	UpdateAllocation(ctx context.Context, id, tenantID uuid.UUID, pct int) (Campaign, error)
	UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, status domain.Status) (Campaign, error)
}
