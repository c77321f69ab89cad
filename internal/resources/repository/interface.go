package repository

import (
	"context"
	"time"

	"outreach_portal_backend/internal/resources/domain"

	"github.com/google/uuid"
)

// Resource is a shared piece of outreach infrastructure: a sending domain,
// phone number, or social seat.
type Resource struct {
	ID                 uuid.UUID
	Type               domain.ResourceType
	Value              string
	Status             domain.ResourceStatus
	MaxTenants         int
	CurrentTenants     int
	ActivatedAt        *time.Time
	DailyLimitOverride *int
	Sends30d           int64
	Bounces30d         int64
	Complaints30d      int64
	Accepts30d         int64
	BounceRate         float64
	ComplaintRate      float64
	AcceptRate         float64
	Health             domain.HealthStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Counts returns the resource's trailing window counters.
func (r Resource) Counts() domain.WindowCounts {
	return domain.WindowCounts{
		Sends:      r.Sends30d,
		Bounces:    r.Bounces30d,
		Complaints: r.Complaints30d,
		Accepts:    r.Accepts30d,
	}
}

// Grant is an active or historical tenant hold on a resource.
type Grant struct {
	ID          uuid.UUID
	ResourceID  uuid.UUID
	TenantID    uuid.UUID
	GrantedAt   time.Time
	ReleasedAt  *time.Time
	ActionsUsed int64
}

// RegisterParams describes a new resource entering the shared pool.
type RegisterParams struct {
	Type               domain.ResourceType
	Value              string
	MaxTenants         int
	DailyLimitOverride *int
}

// HealthUpdate is the recomputed window state written back to a resource row.
type HealthUpdate struct {
	ResourceID uuid.UUID
	Counts     domain.WindowCounts
	Rates      domain.Rates
	Health     domain.HealthStatus
}

// ResourceReader provides read operations for resources and grants.
type ResourceReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Resource, error)
	List(ctx context.Context, resourceType *domain.ResourceType, limit, offset int) ([]Resource, error)
	ListGrantsByTenant(ctx context.Context, tenantID uuid.UUID) ([]Grant, error)
	// CountActiveGrants counts the tenant's live grants of one resource type,
	// for quota enforcement.
	CountActiveGrants(ctx context.Context, tenantID uuid.UUID, resourceType domain.ResourceType) (int, error)
	TenantTier(ctx context.Context, tenantID uuid.UUID) (string, error)
	QuotaFor(ctx context.Context, tier string, resourceType domain.ResourceType) (int, error)
	// ListForHealthRecompute returns resources with send activity that need
	// their trailing window re-derived.
	ListForHealthRecompute(ctx context.Context, limit int) ([]Resource, error)
	// WindowCounts aggregates send events for a resource since the cutoff.
	WindowCounts(ctx context.Context, resourceID uuid.UUID, since time.Time) (domain.WindowCounts, error)
}

// ResourceWriter provides allocation and health write operations.
type ResourceWriter interface {
	Register(ctx context.Context, params RegisterParams) (Resource, error)
	Retire(ctx context.Context, id uuid.UUID) (Resource, error)
	// GrantBest picks the healthiest available resource of the requested type
	// with spare tenant capacity and grants it, all inside one transaction.
	// Resources activated before rampCompleteBefore rank ahead of ones still
	// warming up.
	GrantBest(ctx context.Context, resourceType domain.ResourceType, tenantID uuid.UUID, rampCompleteBefore time.Time) (Grant, Resource, error)
	// Revoke releases an active grant and decrements the resource's tenant count.
	Revoke(ctx context.Context, grantID, tenantID uuid.UUID) (Grant, error)
	// RecordSendEvent appends a raw deliverability event for window aggregation.
	RecordSendEvent(ctx context.Context, resourceID uuid.UUID, eventType string, occurredAt time.Time) error
	ApplyHealthUpdate(ctx context.Context, update HealthUpdate) (previous domain.HealthStatus, err error)
}

// Repository combines all resource repository operations.
type Repository interface {
	ResourceReader
	ResourceWriter
}
