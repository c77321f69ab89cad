package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_portal_backend/internal/actionqueue/domain"
	"outreach_portal_backend/platform/apperr"
)

const (
	itemNotFoundMessage = "queue item not found"

	itemColumns = `id, resource_id, lead_id, tenant_id, action_type, channel,
		scheduled_at, priority, status, attempts, max_attempts, last_error,
		created_at, updated_at`
)

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new action queue repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// GetByID retrieves a queue item by ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (QueueItem, error) {
	query := `SELECT ` + itemColumns + ` FROM action_queue_items WHERE id = $1`

	item, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QueueItem{}, apperr.NotFound(itemNotFoundMessage)
		}
		return QueueItem{}, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// ListByTenant retrieves a tenant's queue items, optionally by status.
func (r *Repo) ListByTenant(ctx context.Context, tenantID uuid.UUID, status *domain.Status, limit, offset int) ([]QueueItem, error) {
	query := `SELECT ` + itemColumns + `
		FROM action_queue_items
		WHERE tenant_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY scheduled_at ASC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, tenantID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Enqueue inserts a new pending item.
func (r *Repo) Enqueue(ctx context.Context, params EnqueueParams) (QueueItem, error) {
	maxAttempts := params.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	query := `INSERT INTO action_queue_items
		(resource_id, lead_id, tenant_id, action_type, channel, scheduled_at, priority, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + itemColumns

	item, err := scanItem(r.pool.QueryRow(ctx, query,
		params.ResourceID, params.LeadID, params.TenantID, params.ActionType,
		string(params.Channel), params.ScheduledAt, params.Priority, maxAttempts,
	))
	if err != nil {
		return QueueItem{}, fmt.Errorf("enqueue item: %w", err)
	}
	return item, nil
}

// ClaimDue atomically claims up to limit due pending items. The CTE selects
// with SKIP LOCKED and the outer UPDATE flips them to processing, so a row
// is observed by exactly one dispatcher.
func (r *Repo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]QueueItem, error) {
	query := `WITH due AS (
			SELECT id FROM action_queue_items
			WHERE status = 'pending'
			  AND scheduled_at <= $1
			  AND attempts < max_attempts
			ORDER BY priority DESC, scheduled_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE action_queue_items q
		SET status = 'processing', attempts = q.attempts + 1, updated_at = now()
		FROM due
		WHERE q.id = due.id
		RETURNING ` + prefixed("q", itemColumns)

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due items: %w", err)
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ReawakenRateLimited returns parked items whose window has passed to pending.
func (r *Repo) ReawakenRateLimited(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE action_queue_items
		 SET status = 'pending', updated_at = now()
		 WHERE status = 'rate_limited' AND scheduled_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("reawaken rate limited: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ReclaimStale handles claims abandoned by a crashed worker: processing items
// with no write since before go back to pending when attempt budget remains,
// and fail terminally otherwise.
func (r *Repo) ReclaimStale(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE action_queue_items
		 SET status = 'pending', updated_at = now()
		 WHERE status = 'processing' AND updated_at < $1 AND attempts < max_attempts`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale: %w", err)
	}
	reclaimed := int(tag.RowsAffected())

	_, err = r.pool.Exec(ctx,
		`UPDATE action_queue_items
		 SET status = 'failed', last_error = 'claim expired', updated_at = now()
		 WHERE status = 'processing' AND updated_at < $1 AND attempts >= max_attempts`,
		before,
	)
	if err != nil {
		return reclaimed, fmt.Errorf("fail stale: %w", err)
	}
	return reclaimed, nil
}

// MarkSent finalizes a successfully dispatched item.
func (r *Repo) MarkSent(ctx context.Context, id uuid.UUID) (QueueItem, error) {
	return r.transition(ctx, id,
		`UPDATE action_queue_items
		 SET status = 'sent', last_error = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'processing'
		 RETURNING `+itemColumns)
}

// MarkFailedRetry re-schedules a failed attempt on the same row with the
// retry time already backed off.
func (r *Repo) MarkFailedRetry(ctx context.Context, id uuid.UUID, retryAt time.Time, lastError string) (QueueItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`UPDATE action_queue_items
		 SET status = 'pending', scheduled_at = $2, last_error = $3, updated_at = now()
		 WHERE id = $1 AND status = 'processing'
		 RETURNING `+itemColumns,
		id, retryAt, lastError,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QueueItem{}, apperr.Conflict("item not processing").WithOp("actionqueue.retry")
		}
		return QueueItem{}, fmt.Errorf("mark retry: %w", err)
	}
	return item, nil
}

// MarkFailed terminally fails an item.
func (r *Repo) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) (QueueItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`UPDATE action_queue_items
		 SET status = 'failed', last_error = $2, updated_at = now()
		 WHERE id = $1 AND status = 'processing'
		 RETURNING `+itemColumns,
		id, lastError,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QueueItem{}, apperr.Conflict("item not processing").WithOp("actionqueue.fail")
		}
		return QueueItem{}, fmt.Errorf("mark failed: %w", err)
	}
	return item, nil
}

// MarkRateLimited parks an item until resumeAt. The attempt consumed by the
// claim is handed back: hitting a daily cap is not a delivery failure.
func (r *Repo) MarkRateLimited(ctx context.Context, id uuid.UUID, resumeAt time.Time) (QueueItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`UPDATE action_queue_items
		 SET status = 'rate_limited', scheduled_at = $2,
		     attempts = greatest(attempts - 1, 0), updated_at = now()
		 WHERE id = $1 AND status = 'processing'
		 RETURNING `+itemColumns,
		id, resumeAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QueueItem{}, apperr.Conflict("item not processing").WithOp("actionqueue.ratelimit")
		}
		return QueueItem{}, fmt.Errorf("mark rate limited: %w", err)
	}
	return item, nil
}

// MarkRejected terminally cancels an item the just-in-time gate refused.
// Rejections are deterministic, so retrying would only reject again.
func (r *Repo) MarkRejected(ctx context.Context, id uuid.UUID, reason string) (QueueItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`UPDATE action_queue_items
		 SET status = 'cancelled', last_error = $2, updated_at = now()
		 WHERE id = $1 AND status = 'processing'
		 RETURNING `+itemColumns,
		id, "rejected: "+reason,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QueueItem{}, apperr.Conflict("item not processing").WithOp("actionqueue.reject")
		}
		return QueueItem{}, fmt.Errorf("mark rejected: %w", err)
	}
	return item, nil
}

// Cancel withdraws a not-yet-dispatched item.
func (r *Repo) Cancel(ctx context.Context, id, tenantID uuid.UUID) (QueueItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx,
		`UPDATE action_queue_items
		 SET status = 'cancelled', updated_at = now()
		 WHERE id = $1 AND tenant_id = $2 AND status IN ('pending', 'rate_limited')
		 RETURNING `+itemColumns,
		id, tenantID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QueueItem{}, apperr.Conflict("item cannot be cancelled").WithOp("actionqueue.cancel")
		}
		return QueueItem{}, fmt.Errorf("cancel item: %w", err)
	}
	return item, nil
}

// ReserveDailySlot reserves one send against the resource's cap for the day.
// The conditional increment makes the reservation atomic: two dispatchers
// racing for the last slot resolve to exactly one reservation. The first
// reservation of a day fixes the limit; later reservations only consume
// slots against it, so the day's band never moves once chosen.
func (r *Repo) ReserveDailySlot(ctx context.Context, resourceID uuid.UUID, day time.Time, limit int) (bool, error) {
	if limit < 1 {
		return false, nil
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO account_daily_states (resource_id, day, daily_limit, actions_sent)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (resource_id, day) DO UPDATE
		 SET actions_sent = account_daily_states.actions_sent + 1
		 WHERE account_daily_states.actions_sent < account_daily_states.daily_limit`,
		resourceID, day, limit,
	)
	if err != nil {
		return false, fmt.Errorf("reserve daily slot: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseDailySlot returns a reservation whose send did not happen.
func (r *Repo) ReleaseDailySlot(ctx context.Context, resourceID uuid.UUID, day time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE account_daily_states
		 SET actions_sent = greatest(actions_sent - 1, 0)
		 WHERE resource_id = $1 AND day = $2`,
		resourceID, day,
	)
	if err != nil {
		return fmt.Errorf("release daily slot: %w", err)
	}
	return nil
}

func (r *Repo) transition(ctx context.Context, id uuid.UUID, query string) (QueueItem, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QueueItem{}, apperr.Conflict("item not processing").WithOp("actionqueue.transition")
		}
		return QueueItem{}, fmt.Errorf("transition item: %w", err)
	}
	return item, nil
}

// prefixed qualifies every column in list with the given table alias.
func prefixed(alias, list string) string {
	out := ""
	for i, col := range splitColumns(list) {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + col
	}
	return out
}

func splitColumns(list string) []string {
	var cols []string
	current := ""
	for _, r := range list {
		switch r {
		case ',':
			cols = append(cols, current)
			current = ""
		case ' ', '\n', '\t':
		default:
			current += string(r)
		}
	}
	if current != "" {
		cols = append(cols, current)
	}
	return cols
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (QueueItem, error) {
	var item QueueItem
	err := row.Scan(
		&item.ID, &item.ResourceID, &item.LeadID, &item.TenantID, &item.ActionType,
		&item.Channel, &item.ScheduledAt, &item.Priority, &item.Status,
		&item.Attempts, &item.MaxAttempts, &item.LastError,
		&item.CreatedAt, &item.UpdatedAt,
	)
	return item, err
}
