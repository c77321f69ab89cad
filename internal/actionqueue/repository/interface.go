package repository

import (
	"context"
	"time"

	"outreach_portal_backend/internal/actionqueue/domain"

	"github.com/google/uuid"
)

// QueueItem is one durable outreach action awaiting dispatch.
type QueueItem struct {
	ID          uuid.UUID
	ResourceID  uuid.UUID
	LeadID      uuid.UUID
	TenantID    uuid.UUID
	ActionType  string
	Channel     domain.Channel
	ScheduledAt time.Time
	Priority    int
	Status      domain.Status
	Attempts    int
	MaxAttempts int
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EnqueueParams describes a new action entering the queue.
type EnqueueParams struct {
	ResourceID  uuid.UUID
	LeadID      uuid.UUID
	TenantID    uuid.UUID
	ActionType  string
	Channel     domain.Channel
	ScheduledAt time.Time
	Priority    int
	MaxAttempts int
}

// QueueReader provides read operations for queue items.
type QueueReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (QueueItem, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, status *domain.Status, limit, offset int) ([]QueueItem, error)
}

// QueueWriter provides dispatch lifecycle write operations.
type QueueWriter interface {
	Enqueue(ctx context.Context, params EnqueueParams) (QueueItem, error)
	// ClaimDue atomically claims up to limit due pending items: each claimed
	// row flips to processing with its attempt counter incremented. Claims
	// use SKIP LOCKED so concurrent dispatchers never double-claim.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]QueueItem, error)
	// ReawakenRateLimited returns rate_limited items whose park window has
	// passed to pending so the next claim pass picks them up.
	ReawakenRateLimited(ctx context.Context, now time.Time) (int, error)
	// ReclaimStale treats a processing claim with no write since before as
	// abandoned: items with attempt budget left go back to pending, the rest
	// fail terminally.
	ReclaimStale(ctx context.Context, before time.Time) (int, error)
	MarkSent(ctx context.Context, id uuid.UUID) (QueueItem, error)
	// MarkFailedRetry re-schedules a failed attempt on the same row.
	MarkFailedRetry(ctx context.Context, id uuid.UUID, retryAt time.Time, lastError string) (QueueItem, error)
	// MarkFailed terminally fails an item that exhausted its attempts.
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) (QueueItem, error)
	// MarkRateLimited parks an item until resumeAt without consuming an
	// attempt: the claim's increment is rolled back.
	MarkRateLimited(ctx context.Context, id uuid.UUID, resumeAt time.Time) (QueueItem, error)
	// MarkRejected terminally cancels an item the send gate refused.
	MarkRejected(ctx context.Context, id uuid.UUID, reason string) (QueueItem, error)
	Cancel(ctx context.Context, id, tenantID uuid.UUID) (QueueItem, error)
}

// DailyCapStore reserves per-resource daily send slots.
type DailyCapStore interface {
	// ReserveDailySlot increments the resource's counter for the day if the
	// limit allows, returning false when the cap is already reached. The
	// reservation happens before the provider call so concurrent dispatchers
	// cannot overshoot the cap.
	ReserveDailySlot(ctx context.Context, resourceID uuid.UUID, day time.Time, limit int) (bool, error)
	// ReleaseDailySlot gives back a reservation whose provider call failed.
	ReleaseDailySlot(ctx context.Context, resourceID uuid.UUID, day time.Time) error
}

// Repository combines all action queue repository operations.
type Repository interface {
	QueueReader
	QueueWriter
	DailyCapStore
}
