package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_portal_backend/internal/leadpool/domain"
	"outreach_portal_backend/platform/apperr"
)

const (
	leadNotFoundMessage       = "lead not found"
	assignmentNotFoundMessage = "assignment not found"

	leadColumns = `id, external_ref, email, first_name, last_name, company, title,
		company_size, industry, country, email_verification, pool_status,
		is_bounced, is_unsubscribed, tenant_id, campaign_id,
		score, score_tier, scored_at, signal_at, created_at, updated_at`

	assignmentColumns = `id, lead_id, tenant_id, campaign_id, assigned_by, reason, status,
		touch_count, max_touches, cooling_until, assigned_at, ended_at`
)

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new lead pool repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetByID retrieves a pool lead by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (PoolLead, error) {
	query := `SELECT ` + leadColumns + ` FROM pool_leads WHERE id = $1`

	lead, err := scanLead(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PoolLead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return PoolLead{}, fmt.Errorf("get lead by id: %w", err)
	}
	return lead, nil
}

// ListByTenant retrieves leads currently owned by the tenant.
func (r *Repo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]PoolLead, error) {
	query := `SELECT ` + leadColumns + `
		FROM pool_leads
		WHERE tenant_id = $1
		ORDER BY score DESC NULLS LAST, created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list leads by tenant: %w", err)
	}
	defer rows.Close()

	var leads []PoolLead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// ListUnscored retrieves leads that have never been scored, oldest first.
func (r *Repo) ListUnscored(ctx context.Context, limit int) ([]PoolLead, error) {
	query := `SELECT ` + leadColumns + `
		FROM pool_leads
		WHERE scored_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unscored leads: %w", err)
	}
	defer rows.Close()

	var leads []PoolLead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// GetActiveAssignment returns the lead's active assignment, or nil.
func (r *Repo) GetActiveAssignment(ctx context.Context, leadID uuid.UUID) (*Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
		FROM assignments WHERE lead_id = $1 AND status = 'active'`

	a, err := scanAssignment(r.pool.QueryRow(ctx, query, leadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active assignment: %w", err)
	}
	return &a, nil
}

// GetAssignment retrieves an assignment by ID.
func (r *Repo) GetAssignment(ctx context.Context, id uuid.UUID) (Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`

	a, err := scanAssignment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, apperr.NotFound(assignmentNotFoundMessage)
		}
		return Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// Submit inserts a new lead in available, unscored state. Resubmitting an
// existing external ref refreshes enrichment attributes instead of creating
// a duplicate, so intake feeds can replay safely.
func (r *Repo) Submit(ctx context.Context, params SubmitParams) (PoolLead, error) {
	verification := params.Verification
	if verification == "" {
		verification = domain.VerificationUnknown
	}

	query := `INSERT INTO pool_leads
		(external_ref, email, first_name, last_name, company, title,
		 company_size, industry, country, email_verification, signal_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_ref) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = COALESCE(EXCLUDED.first_name, pool_leads.first_name),
			last_name = COALESCE(EXCLUDED.last_name, pool_leads.last_name),
			company = COALESCE(EXCLUDED.company, pool_leads.company),
			title = COALESCE(EXCLUDED.title, pool_leads.title),
			company_size = COALESCE(EXCLUDED.company_size, pool_leads.company_size),
			industry = COALESCE(EXCLUDED.industry, pool_leads.industry),
			country = COALESCE(EXCLUDED.country, pool_leads.country),
			email_verification = EXCLUDED.email_verification,
			signal_at = COALESCE(EXCLUDED.signal_at, pool_leads.signal_at),
			updated_at = now()
		RETURNING ` + leadColumns

	lead, err := scanLead(r.pool.QueryRow(ctx, query,
		params.ExternalRef, params.Email, params.FirstName, params.LastName,
		params.Company, params.Title, params.CompanySize, params.Industry,
		params.Country, string(verification), params.SignalAt,
	))
	if err != nil {
		return PoolLead{}, fmt.Errorf("submit lead: %w", err)
	}
	return lead, nil
}

// Assign claims a lead for a tenant. The availability check and the writes
// happen inside one transaction with the lead row locked, so two tenants
// racing for the same lead resolve to exactly one winner.
func (r *Repo) Assign(ctx context.Context, params AssignParams) (Assignment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Assignment{}, fmt.Errorf("begin assign: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var state domain.LeadState
	err = tx.QueryRow(ctx,
		`SELECT pool_status, email_verification, is_bounced, is_unsubscribed
		 FROM pool_leads WHERE id = $1 FOR UPDATE`,
		params.LeadID,
	).Scan(&state.PoolStatus, &state.Verification, &state.IsBounced, &state.IsUnsubscribed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, apperr.NotFound(leadNotFoundMessage)
		}
		return Assignment{}, fmt.Errorf("lock lead: %w", err)
	}

	if !domain.CanAssign(state) {
		return Assignment{}, apperr.Conflict("lead not available").WithOp("leadpool.assign")
	}

	maxTouches := params.MaxTouches
	if maxTouches < 1 {
		maxTouches = 8
	}

	assignment, err := scanAssignment(tx.QueryRow(ctx,
		`INSERT INTO assignments (lead_id, tenant_id, campaign_id, assigned_by, reason, max_touches)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+assignmentColumns,
		params.LeadID, params.TenantID, params.CampaignID, params.AssignedBy, params.Reason, maxTouches,
	))
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race despite the row lock (e.g., direct insert path).
			return Assignment{}, apperr.Conflict("lead not available").WithOp("leadpool.assign")
		}
		return Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE pool_leads
		 SET pool_status = 'assigned', tenant_id = $2, campaign_id = $3, updated_at = now()
		 WHERE id = $1`,
		params.LeadID, params.TenantID, params.CampaignID,
	)
	if err != nil {
		return Assignment{}, fmt.Errorf("mark lead assigned: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, fmt.Errorf("commit assign: %w", err)
	}
	return assignment, nil
}

// Release ends an active assignment. The lead returns to the pool unless it
// is globally bounced/unsubscribed, in which case it becomes permanently
// ineligible.
func (r *Repo) Release(ctx context.Context, assignmentID, tenantID uuid.UUID, reason string) (Assignment, PoolLead, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Assignment{}, PoolLead{}, fmt.Errorf("begin release: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	assignment, err := r.lockAssignment(ctx, tx, assignmentID, tenantID)
	if err != nil {
		return Assignment{}, PoolLead{}, err
	}
	if assignment.Status != domain.AssignmentActive {
		return Assignment{}, PoolLead{}, apperr.Conflict("assignment not active").WithOp("leadpool.release")
	}

	var state domain.LeadState
	err = tx.QueryRow(ctx,
		`SELECT pool_status, email_verification, is_bounced, is_unsubscribed
		 FROM pool_leads WHERE id = $1 FOR UPDATE`,
		assignment.LeadID,
	).Scan(&state.PoolStatus, &state.Verification, &state.IsBounced, &state.IsUnsubscribed)
	if err != nil {
		return Assignment{}, PoolLead{}, fmt.Errorf("lock lead for release: %w", err)
	}

	target := domain.ReleaseTarget(state)

	assignment, err = scanAssignment(tx.QueryRow(ctx,
		`UPDATE assignments
		 SET status = 'released', reason = $2, ended_at = now()
		 WHERE id = $1
		 RETURNING `+assignmentColumns,
		assignmentID, reason,
	))
	if err != nil {
		return Assignment{}, PoolLead{}, fmt.Errorf("release assignment: %w", err)
	}

	lead, err := scanLead(tx.QueryRow(ctx,
		`UPDATE pool_leads
		 SET pool_status = $2, tenant_id = NULL, campaign_id = NULL, updated_at = now()
		 WHERE id = $1
		 RETURNING `+leadColumns,
		assignment.LeadID, string(target),
	))
	if err != nil {
		return Assignment{}, PoolLead{}, fmt.Errorf("return lead to pool: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, PoolLead{}, fmt.Errorf("commit release: %w", err)
	}
	return assignment, lead, nil
}

// Convert marks an assignment converted; the lead stays with the tenant.
func (r *Repo) Convert(ctx context.Context, assignmentID, tenantID uuid.UUID) (Assignment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Assignment{}, fmt.Errorf("begin convert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	assignment, err := r.lockAssignment(ctx, tx, assignmentID, tenantID)
	if err != nil {
		return Assignment{}, err
	}
	if assignment.Status != domain.AssignmentActive {
		return Assignment{}, apperr.Conflict("assignment not active").WithOp("leadpool.convert")
	}

	assignment, err = scanAssignment(tx.QueryRow(ctx,
		`UPDATE assignments SET status = 'converted', ended_at = now()
		 WHERE id = $1 RETURNING `+assignmentColumns,
		assignmentID,
	))
	if err != nil {
		return Assignment{}, fmt.Errorf("convert assignment: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE pool_leads SET pool_status = 'converted', updated_at = now() WHERE id = $1`,
		assignment.LeadID,
	)
	if err != nil {
		return Assignment{}, fmt.Errorf("mark lead converted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, fmt.Errorf("commit convert: %w", err)
	}
	return assignment, nil
}

// IncrementTouch bumps the touch counter on an active assignment.
func (r *Repo) IncrementTouch(ctx context.Context, assignmentID, tenantID uuid.UUID, coolingUntil *time.Time) (Assignment, error) {
	a, err := scanAssignment(r.pool.QueryRow(ctx,
		`UPDATE assignments
		 SET touch_count = touch_count + 1, cooling_until = COALESCE($3, cooling_until)
		 WHERE id = $1 AND tenant_id = $2 AND status = 'active'
		 RETURNING `+assignmentColumns,
		assignmentID, tenantID, coolingUntil,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, apperr.Conflict("assignment not active").WithOp("leadpool.touch")
		}
		return Assignment{}, fmt.Errorf("increment touch: %w", err)
	}
	return a, nil
}

// Flag marks a lead globally bounced or unsubscribed and expires any active
// assignment in the same transaction.
func (r *Repo) Flag(ctx context.Context, leadID uuid.UUID, bounced, unsubscribed bool) (PoolLead, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PoolLead{}, fmt.Errorf("begin flag: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	status := "unsubscribed"
	if bounced {
		status = "bounced"
	}

	lead, err := scanLead(tx.QueryRow(ctx,
		`UPDATE pool_leads
		 SET is_bounced = is_bounced OR $2,
		     is_unsubscribed = is_unsubscribed OR $3,
		     pool_status = $4,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+leadColumns,
		leadID, bounced, unsubscribed, status,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PoolLead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return PoolLead{}, fmt.Errorf("flag lead: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE assignments SET status = 'expired', ended_at = now()
		 WHERE lead_id = $1 AND status = 'active'`,
		leadID,
	)
	if err != nil {
		return PoolLead{}, fmt.Errorf("expire assignment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return PoolLead{}, fmt.Errorf("commit flag: %w", err)
	}
	return lead, nil
}

// PersistScore stores the score breakdown and stamps the lead row.
func (r *Repo) PersistScore(ctx context.Context, record ScoreRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin persist score: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO lead_score_components
		 (lead_id, tenant_id, data_quality, authority, company_fit, timing, risk,
		  weights, total, tier, score_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.LeadID, record.TenantID, record.DataQuality, record.Authority,
		record.CompanyFit, record.Timing, record.Risk, record.WeightsJSON,
		record.Total, record.Tier, record.ScoreVersion,
	)
	if err != nil {
		return fmt.Errorf("insert score components: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE pool_leads
		 SET score = $2, score_tier = $3, scored_at = now(), updated_at = now()
		 WHERE id = $1`,
		record.LeadID, record.Total, record.Tier,
	)
	if err != nil {
		return fmt.Errorf("stamp lead score: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *Repo) lockAssignment(ctx context.Context, tx pgx.Tx, assignmentID, tenantID uuid.UUID) (Assignment, error) {
	a, err := scanAssignment(tx.QueryRow(ctx,
		`SELECT `+assignmentColumns+`
		 FROM assignments WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
		assignmentID, tenantID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, apperr.NotFound(assignmentNotFoundMessage)
		}
		return Assignment{}, fmt.Errorf("lock assignment: %w", err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (PoolLead, error) {
	var lead PoolLead
	err := row.Scan(
		&lead.ID, &lead.ExternalRef, &lead.Email, &lead.FirstName, &lead.LastName,
		&lead.Company, &lead.Title, &lead.CompanySize, &lead.Industry, &lead.Country,
		&lead.Verification, &lead.PoolStatus, &lead.IsBounced, &lead.IsUnsubscribed,
		&lead.TenantID, &lead.CampaignID, &lead.Score, &lead.ScoreTier,
		&lead.ScoredAt, &lead.SignalAt, &lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

func scanAssignment(row rowScanner) (Assignment, error) {
	var a Assignment
	err := row.Scan(
		&a.ID, &a.LeadID, &a.TenantID, &a.CampaignID, &a.AssignedBy, &a.Reason,
		&a.Status, &a.TouchCount, &a.MaxTouches, &a.CoolingUntil, &a.AssignedAt, &a.EndedAt,
	)
	return a, err
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
