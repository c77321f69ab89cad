package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_portal_backend/internal/resources/domain"
	"outreach_portal_backend/platform/apperr"
)

const (
	resourceNotFoundMessage = "resource not found"
	grantNotFoundMessage    = "grant not found"

	resourceColumns = `id, resource_type, value, status, max_tenants, current_tenants,
		activated_at, daily_limit_override, sends_30d, bounces_30d, complaints_30d,
		accepts_30d, bounce_rate, complaint_rate, accept_rate, health_status,
		created_at, updated_at`

	grantColumns = `id, resource_id, tenant_id, granted_at, released_at, actions_used`
)

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new resources repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// GetByID retrieves a resource by ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`

	res, err := scanResource(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Resource{}, apperr.NotFound(resourceNotFoundMessage)
		}
		return Resource{}, fmt.Errorf("get resource: %w", err)
	}
	return res, nil
}

// List retrieves resources, optionally filtered by type.
func (r *Repo) List(ctx context.Context, resourceType *domain.ResourceType, limit, offset int) ([]Resource, error) {
	query := `SELECT ` + resourceColumns + `
		FROM resources
		WHERE ($1::text IS NULL OR resource_type = $1)
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, resourceType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	return collectResources(rows)
}

// ListGrantsByTenant retrieves a tenant's active grants.
func (r *Repo) ListGrantsByTenant(ctx context.Context, tenantID uuid.UUID) ([]Grant, error) {
	query := `SELECT ` + grantColumns + `
		FROM tenant_resource_grants
		WHERE tenant_id = $1 AND released_at IS NULL
		ORDER BY granted_at ASC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// CountActiveGrants counts a tenant's live grants of one resource type.
func (r *Repo) CountActiveGrants(ctx context.Context, tenantID uuid.UUID, resourceType domain.ResourceType) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*)
		 FROM tenant_resource_grants g
		 JOIN resources res ON res.id = g.resource_id
		 WHERE g.tenant_id = $1 AND g.released_at IS NULL AND res.resource_type = $2`,
		tenantID, string(resourceType),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active grants: %w", err)
	}
	return count, nil
}

// TenantTier returns the tenant's subscription tier, defaulting to standard
// for tenants without an explicit tier row.
func (r *Repo) TenantTier(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var tier string
	err := r.pool.QueryRow(ctx,
		`SELECT tier FROM tenant_tiers WHERE tenant_id = $1`, tenantID,
	).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "standard", nil
		}
		return "", fmt.Errorf("get tenant tier: %w", err)
	}
	return tier, nil
}

// QuotaFor returns the per-type resource quota for a tier.
func (r *Repo) QuotaFor(ctx context.Context, tier string, resourceType domain.ResourceType) (int, error) {
	var quota int
	err := r.pool.QueryRow(ctx,
		`SELECT max_resources FROM tenant_resource_quotas
		 WHERE tier = $1 AND resource_type = $2`,
		tier, string(resourceType),
	).Scan(&quota)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.NotFound("no quota configured for tier")
		}
		return 0, fmt.Errorf("get quota: %w", err)
	}
	return quota, nil
}

// ListForHealthRecompute returns non-retired resources with recorded sends.
func (r *Repo) ListForHealthRecompute(ctx context.Context, limit int) ([]Resource, error) {
	query := `SELECT ` + resourceColumns + `
		FROM resources
		WHERE status <> 'retired'
		ORDER BY updated_at ASC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list for health recompute: %w", err)
	}
	defer rows.Close()

	return collectResources(rows)
}

// WindowCounts aggregates raw send events for a resource since the cutoff.
func (r *Repo) WindowCounts(ctx context.Context, resourceID uuid.UUID, since time.Time) (domain.WindowCounts, error) {
	var counts domain.WindowCounts
	err := r.pool.QueryRow(ctx,
		`SELECT
			count(*) FILTER (WHERE event_type = 'sent'),
			count(*) FILTER (WHERE event_type = 'bounced'),
			count(*) FILTER (WHERE event_type = 'complained'),
			count(*) FILTER (WHERE event_type = 'accepted')
		 FROM send_events
		 WHERE resource_id = $1 AND occurred_at >= $2`,
		resourceID, since,
	).Scan(&counts.Sends, &counts.Bounces, &counts.Complaints, &counts.Accepts)
	if err != nil {
		return domain.WindowCounts{}, fmt.Errorf("aggregate send events: %w", err)
	}
	return counts, nil
}

// Register adds a new resource to the shared pool in warming status.
func (r *Repo) Register(ctx context.Context, params RegisterParams) (Resource, error) {
	maxTenants := params.MaxTenants
	if maxTenants < 1 {
		maxTenants = 1
	}

	query := `INSERT INTO resources
		(resource_type, value, status, max_tenants, activated_at, daily_limit_override)
		VALUES ($1, $2, 'warming', $3, now(), $4)
		RETURNING ` + resourceColumns

	res, err := scanResource(r.pool.QueryRow(ctx, query,
		string(params.Type), params.Value, maxTenants, params.DailyLimitOverride,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return Resource{}, apperr.Conflict("resource already registered")
		}
		return Resource{}, fmt.Errorf("register resource: %w", err)
	}
	return res, nil
}

// Retire removes a resource from allocation. Existing grants stay intact so
// in-flight work can drain; the dispatcher stops sending through it.
func (r *Repo) Retire(ctx context.Context, id uuid.UUID) (Resource, error) {
	res, err := scanResource(r.pool.QueryRow(ctx,
		`UPDATE resources SET status = 'retired', updated_at = now()
		 WHERE id = $1
		 RETURNING `+resourceColumns,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Resource{}, apperr.NotFound(resourceNotFoundMessage)
		}
		return Resource{}, fmt.Errorf("retire resource: %w", err)
	}
	return res, nil
}

// GrantBest selects the best available resource of the requested type and
// grants it to the tenant. Selection and the capacity increment happen under
// a row lock; SKIP LOCKED lets concurrent requests spread over different
// candidate rows instead of serializing on the first one.
func (r *Repo) GrantBest(ctx context.Context, resourceType domain.ResourceType, tenantID uuid.UUID, rampCompleteBefore time.Time) (Grant, Resource, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Grant{}, Resource{}, fmt.Errorf("begin grant: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res, err := scanResource(tx.QueryRow(ctx,
		`SELECT `+resourceColumns+`
		 FROM resources
		 WHERE resource_type = $1
		   AND status IN ('available', 'warming', 'assigned')
		   AND health_status <> 'critical'
		   AND current_tenants < max_tenants
		   AND id NOT IN (
		       SELECT resource_id FROM tenant_resource_grants
		       WHERE tenant_id = $2 AND released_at IS NULL
		   )
		 ORDER BY
		   (activated_at IS NOT NULL AND activated_at <= $3) DESC,
		   accept_rate DESC,
		   current_tenants ASC,
		   created_at ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		string(resourceType), tenantID, rampCompleteBefore,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, Resource{}, apperr.Conflict("no resource capacity available").WithOp("resources.grant")
		}
		return Grant{}, Resource{}, fmt.Errorf("select grant candidate: %w", err)
	}

	grant, err := scanGrant(tx.QueryRow(ctx,
		`INSERT INTO tenant_resource_grants (resource_id, tenant_id)
		 VALUES ($1, $2)
		 RETURNING `+grantColumns,
		res.ID, tenantID,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return Grant{}, Resource{}, apperr.Conflict("tenant already holds this resource")
		}
		return Grant{}, Resource{}, fmt.Errorf("insert grant: %w", err)
	}

	res, err = scanResource(tx.QueryRow(ctx,
		`UPDATE resources
		 SET current_tenants = current_tenants + 1,
		     status = CASE WHEN status = 'available' AND current_tenants + 1 >= max_tenants
		                   THEN 'assigned' ELSE status END,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+resourceColumns,
		res.ID,
	))
	if err != nil {
		return Grant{}, Resource{}, fmt.Errorf("increment tenant count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Grant{}, Resource{}, fmt.Errorf("commit grant: %w", err)
	}
	return grant, res, nil
}

// Revoke releases an active grant and frees its capacity slot.
func (r *Repo) Revoke(ctx context.Context, grantID, tenantID uuid.UUID) (Grant, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Grant{}, fmt.Errorf("begin revoke: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	grant, err := scanGrant(tx.QueryRow(ctx,
		`UPDATE tenant_resource_grants
		 SET released_at = now()
		 WHERE id = $1 AND tenant_id = $2 AND released_at IS NULL
		 RETURNING `+grantColumns,
		grantID, tenantID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, apperr.NotFound(grantNotFoundMessage)
		}
		return Grant{}, fmt.Errorf("release grant: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE resources
		 SET current_tenants = greatest(current_tenants - 1, 0),
		     status = CASE WHEN status = 'assigned' AND current_tenants - 1 < max_tenants
		                   THEN 'available' ELSE status END,
		     updated_at = now()
		 WHERE id = $1`,
		grant.ResourceID,
	)
	if err != nil {
		return Grant{}, fmt.Errorf("decrement tenant count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Grant{}, fmt.Errorf("commit revoke: %w", err)
	}
	return grant, nil
}

// RecordSendEvent appends one raw deliverability event.
func (r *Repo) RecordSendEvent(ctx context.Context, resourceID uuid.UUID, eventType string, occurredAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO send_events (resource_id, event_type, occurred_at)
		 VALUES ($1, $2, $3)`,
		resourceID, eventType, occurredAt,
	)
	if err != nil {
		return fmt.Errorf("record send event: %w", err)
	}
	return nil
}

// ApplyHealthUpdate writes the recomputed window back to the resource row
// and returns the status it replaced.
func (r *Repo) ApplyHealthUpdate(ctx context.Context, update HealthUpdate) (domain.HealthStatus, error) {
	var previous string
	err := r.pool.QueryRow(ctx,
		`UPDATE resources
		 SET sends_30d = $2, bounces_30d = $3, complaints_30d = $4, accepts_30d = $5,
		     bounce_rate = $6, complaint_rate = $7, accept_rate = $8,
		     health_status = $9, updated_at = now()
		 WHERE id = $1
		 RETURNING (SELECT health_status FROM resources WHERE id = $1)`,
		update.ResourceID,
		update.Counts.Sends, update.Counts.Bounces, update.Counts.Complaints, update.Counts.Accepts,
		update.Rates.Bounce, update.Rates.Complaint, update.Rates.Accept,
		string(update.Health),
	).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound(resourceNotFoundMessage)
		}
		return "", fmt.Errorf("apply health update: %w", err)
	}
	return domain.HealthStatus(previous), nil
}

func collectResources(rows pgx.Rows) ([]Resource, error) {
	var resources []Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (Resource, error) {
	var res Resource
	err := row.Scan(
		&res.ID, &res.Type, &res.Value, &res.Status, &res.MaxTenants, &res.CurrentTenants,
		&res.ActivatedAt, &res.DailyLimitOverride, &res.Sends30d, &res.Bounces30d,
		&res.Complaints30d, &res.Accepts30d, &res.BounceRate, &res.ComplaintRate,
		&res.AcceptRate, &res.Health, &res.CreatedAt, &res.UpdatedAt,
	)
	return res, err
}

func scanGrant(row rowScanner) (Grant, error) {
	var g Grant
	err := row.Scan(&g.ID, &g.ResourceID, &g.TenantID, &g.GrantedAt, &g.ReleasedAt, &g.ActionsUsed)
	return g, err
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
