package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_portal_backend/internal/campaigns/domain"
	"outreach_portal_backend/platform/apperr"
)

const (
	campaignNotFoundMessage   = "campaign not found"
	allocationExceededMessage = "campaign allocation exceeded"

	campaignColumns = `id, tenant_id, name, status, lead_allocation_pct, created_at, updated_at`
)

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new campaigns repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ interface {
	CampaignReader
	CampaignWriter
} = (*Repo)(nil)

// GetByID retrieves a tenant's campaign.
func (r *Repo) GetByID(ctx context.Context, id, tenantID uuid.UUID) (Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 AND tenant_id = $2`

	c, err := scanCampaign(r.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, apperr.NotFound(campaignNotFoundMessage)
		}
		return Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// ListByTenant retrieves all of a tenant's campaigns.
func (r *Repo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE tenant_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// Create inserts a campaign after verifying the tenant's allocation budget
// under the tenant's allocation lock. The advisory lock serializes all
// allocation writes for the tenant, so two concurrent creates can never both
// read the same sum and overcommit.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Campaign, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Campaign{}, fmt.Errorf("begin create campaign: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockTenantAllocation(ctx, tx, params.TenantID); err != nil {
		return Campaign{}, err
	}
	sum, err := allocationSum(ctx, tx, params.TenantID, uuid.Nil)
	if err != nil {
		return Campaign{}, err
	}
	if !domain.AllocationFits(sum, params.LeadAllocationPct) {
		return Campaign{}, apperr.Conflict(allocationExceededMessage).
			WithDetails(map[string]any{"allocated": sum, "requested": params.LeadAllocationPct, "limit": domain.AllocationLimit})
	}

	c, err := scanCampaign(tx.QueryRow(ctx,
		`INSERT INTO campaigns (tenant_id, name, lead_allocation_pct)
		 VALUES ($1, $2, $3)
		 RETURNING `+campaignColumns,
		params.TenantID, params.Name, params.LeadAllocationPct,
	))
	if err != nil {
		return Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Campaign{}, fmt.Errorf("commit create campaign: %w", err)
	}
	return c, nil
}

// UpdateAllocation replaces a campaign's allocation percentage after
// re-validating the tenant budget with the row being updated excluded
// from the existing sum.
func (r *Repo) UpdateAllocation(ctx context.Context, id, tenantID uuid.UUID, pct int) (Campaign, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Campaign{}, fmt.Errorf("begin update allocation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockTenantAllocation(ctx, tx, tenantID); err != nil {
		return Campaign{}, err
	}
	sum, err := allocationSum(ctx, tx, tenantID, id)
	if err != nil {
		return Campaign{}, err
	}
	if !domain.AllocationFits(sum, pct) {
		return Campaign{}, apperr.Conflict(allocationExceededMessage).
			WithDetails(map[string]any{"allocated": sum, "requested": pct, "limit": domain.AllocationLimit})
	}

	c, err := scanCampaign(tx.QueryRow(ctx,
		`UPDATE campaigns
		 SET lead_allocation_pct = $3, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+campaignColumns,
		id, tenantID, pct,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, apperr.NotFound(campaignNotFoundMessage)
		}
		return Campaign{}, fmt.Errorf("update allocation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Campaign{}, fmt.Errorf("commit update allocation: %w", err)
	}
	return c, nil
}

// UpdateStatus transitions a campaign's lifecycle state. Reactivating a
// terminal campaign is blocked in the service layer; here only the write.
func (r *Repo) UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, status domain.Status) (Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx,
		`UPDATE campaigns
		 SET status = $3, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+campaignColumns,
		id, tenantID, string(status),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, apperr.NotFound(campaignNotFoundMessage)
		}
		return Campaign{}, fmt.Errorf("update status: %w", err)
	}
	return c, nil
}

// lockTenantAllocation takes a transaction-scoped advisory lock keyed on the
// tenant. Row locks alone cannot serialize the budget check against inserts:
// a concurrent transaction's new campaign row is a phantom the locked read
// never sees. The advisory lock makes check-then-write atomic per tenant and
// releases on commit or rollback.
func lockTenantAllocation(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`,
		tenantID,
	)
	if err != nil {
		return fmt.Errorf("lock tenant allocation: %w", err)
	}
	return nil
}

// allocationSum totals the tenant's non-terminal campaign allocation,
// excluding one row (uuid.Nil to exclude none). Callers must hold the
// tenant's allocation lock.
func allocationSum(ctx context.Context, tx pgx.Tx, tenantID, exclude uuid.UUID) (int, error) {
	var sum int
	err := tx.QueryRow(ctx,
		`SELECT coalesce(sum(lead_allocation_pct), 0)
		 FROM campaigns
		 WHERE tenant_id = $1 AND status IN ('draft', 'active', 'paused') AND id <> $2`,
		tenantID, exclude,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum campaign allocation: %w", err)
	}
	return sum, nil
}

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	err := row.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Status, &c.LeadAllocationPct,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}
