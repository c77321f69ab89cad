package repository

import (
	"context"
	"time"

	"outreach_portal_backend/internal/leadpool/domain"

	"github.com/google/uuid"
)

// PoolLead is a prospect record owned by the platform.
type PoolLead struct {
	ID           uuid.UUID
	ExternalRef  string
	Email        string
	FirstName    *string
	LastName     *string
	Company      *string
	Title        *string
	CompanySize  *int
	Industry     *string
	Country      *string
	Verification domain.VerificationStatus
	PoolStatus   domain.PoolStatus
	IsBounced    bool
	IsUnsubscribed bool
	TenantID     *uuid.UUID
	CampaignID   *uuid.UUID
	Score        *int
	ScoreTier    *string
	ScoredAt     *time.Time
	SignalAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Assignment links one pool lead to one tenant.
type Assignment struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	TenantID     uuid.UUID
	CampaignID   *uuid.UUID
	AssignedBy   uuid.UUID
	Reason       *string
	Status       domain.AssignmentStatus
	TouchCount   int
	MaxTouches   int
	CoolingUntil *time.Time
	AssignedAt   time.Time
	EndedAt      *time.Time
}

// SubmitParams contains attributes for a lead entering the pool.
type SubmitParams struct {
	ExternalRef  string
	Email        string
	FirstName    *string
	LastName     *string
	Company      *string
	Title        *string
	CompanySize  *int
	Industry     *string
	Country      *string
	Verification domain.VerificationStatus
	SignalAt     *time.Time
}

// AssignParams identifies the lead being claimed and for whom.
type AssignParams struct {
	LeadID     uuid.UUID
	TenantID   uuid.UUID
	CampaignID *uuid.UUID
	AssignedBy uuid.UUID
	Reason     string
	MaxTouches int
}

// ScoreRecord is the persisted outcome of one scoring run.
type ScoreRecord struct {
	LeadID       uuid.UUID
	TenantID     *uuid.UUID
	DataQuality  float64
	Authority    float64
	CompanyFit   float64
	Timing       float64
	Risk         float64
	WeightsJSON  []byte
	Total        int
	Tier         string
	ScoreVersion string
}

// LeadReader provides read operations for pool leads.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (PoolLead, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]PoolLead, error)
	GetActiveAssignment(ctx context.Context, leadID uuid.UUID) (*Assignment, error)
	GetAssignment(ctx context.Context, id uuid.UUID) (Assignment, error)
	ListUnscored(ctx context.Context, limit int) ([]PoolLead, error)
}

// LeadWriter provides lifecycle write operations for pool leads.
type LeadWriter interface {
	Submit(ctx context.Context, params SubmitParams) (PoolLead, error)
	// Assign re-checks availability under a row lock, creates an active
	// assignment, and flips the lead to assigned in one transaction.
	Assign(ctx context.Context, params AssignParams) (Assignment, error)
	// Release ends an active assignment and returns the lead to the pool,
	// or to a terminal status when it is globally ineligible.
	Release(ctx context.Context, assignmentID, tenantID uuid.UUID, reason string) (Assignment, PoolLead, error)
	// Convert ends an active assignment terminally; the lead stays with the tenant.
	Convert(ctx context.Context, assignmentID, tenantID uuid.UUID) (Assignment, error)
	// IncrementTouch bumps the assignment's touch counter and optionally sets
	// a cooling-off window. Called by the delivery subsystem after a send.
	IncrementTouch(ctx context.Context, assignmentID, tenantID uuid.UUID, coolingUntil *time.Time) (Assignment, error)
	// Flag marks a lead globally bounced or unsubscribed; if it holds an
	// active assignment, the assignment is expired in the same transaction.
	Flag(ctx context.Context, leadID uuid.UUID, bounced, unsubscribed bool) (PoolLead, error)
	PersistScore(ctx context.Context, record ScoreRecord) error
}

// Repository combines all lead pool repository operations.
type Repository interface {
	LeadReader
	LeadWriter
}
