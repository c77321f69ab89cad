package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"outreach_portal_backend/internal/actionqueue/domain"
	"outreach_portal_backend/internal/actionqueue/repository"
	"outreach_portal_backend/internal/delivery"
	"outreach_portal_backend/internal/events"
	leaddomain "outreach_portal_backend/internal/leadpool/domain"
	leadtransport "outreach_portal_backend/internal/leadpool/transport"
	resourcetransport "outreach_portal_backend/internal/resources/transport"
	"outreach_portal_backend/platform/apperr"
	"outreach_portal_backend/platform/config"
	"outreach_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Outcome labels for completed dispatch attempts.
const (
	OutcomeSent           = "sent"
	OutcomeFailed         = "failed"
	OutcomeRetryScheduled = "retry_scheduled"
	OutcomeRateLimited    = "rate_limited"
	OutcomeRejected       = "rejected"
)

// LeadGate is the lead pool surface the dispatcher needs: the just-in-time
// send gate, recipient details, and touch accounting.
type LeadGate interface {
	ValidateSend(ctx context.Context, leadID, tenantID uuid.UUID, channel string) (leaddomain.RejectReason, error)
	GetByID(ctx context.Context, id uuid.UUID) (leadtransport.LeadResponse, error)
	TouchByLead(ctx context.Context, leadID, tenantID uuid.UUID) error
}

// ResourcePool is the resources surface the dispatcher needs: effective
// limits, resource identity, and deliverability event reporting.
type ResourcePool interface {
	GetByID(ctx context.Context, id uuid.UUID) (resourcetransport.ResourceResponse, error)
	DailyLimit(ctx context.Context, resourceID uuid.UUID, now time.Time) (int, error)
	ReportSendEvent(ctx context.Context, resourceID uuid.UUID, req resourcetransport.SendEventRequest) error
}

// Dispatcher executes claimed queue items end to end.
type Dispatcher struct {
	repo      Repository
	leads     LeadGate
	resources ResourcePool
	providers *delivery.Registry
	cfg       config.DispatchConfig
	eventBus  events.Bus
	log       *logger.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(repo Repository, leads LeadGate, resources ResourcePool, providers *delivery.Registry, cfg config.DispatchConfig, eventBus events.Bus, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		leads:     leads,
		resources: resources,
		providers: providers,
		cfg:       cfg,
		eventBus:  eventBus,
		log:       log,
	}
}

// staleClaimTimeout bounds how long a processing claim may go without a
// write before another poller may take it over.
const staleClaimTimeout = 10 * time.Minute

// Poll runs one poller pass: stale claims are recovered, parked items whose
// window passed return to pending, then due pending items are claimed.
// Claimed items come back in processing state with their attempt already
// counted.
func (d *Dispatcher) Poll(ctx context.Context, now time.Time) ([]repository.QueueItem, error) {
	reclaimed, err := d.repo.ReclaimStale(ctx, now.Add(-staleClaimTimeout))
	if err != nil {
		return nil, err
	}
	if reclaimed > 0 {
		d.log.Warn("stale claims reclaimed", "count", reclaimed)
	}

	reawakened, err := d.repo.ReawakenRateLimited(ctx, now)
	if err != nil {
		return nil, err
	}
	if reawakened > 0 {
		d.log.Debug("rate limited items reawakened", "count", reawakened)
	}

	return d.repo.ClaimDue(ctx, now, d.cfg.GetDispatchBatchSize())
}

// Dispatch executes one claimed item. The item must be in processing state;
// every exit path moves it to a definite next state, so a crash between
// claim and completion is the only way an item can stall in processing.
func (d *Dispatcher) Dispatch(ctx context.Context, itemID uuid.UUID) error {
	item, err := d.repo.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != domain.StatusProcessing {
		return apperr.Conflict("item not in processing state").WithOp("actionqueue.dispatch")
	}

	now := time.Now()
	loc := d.cfg.GetSchedulingLocation()

	// Last-mile eligibility gate. Runs on every attempt: lead state may have
	// changed between scheduling and dispatch, or between retries.
	reason, err := d.leads.ValidateSend(ctx, item.LeadID, item.TenantID, string(item.Channel))
	if err != nil {
		return d.failAttempt(ctx, item, fmt.Errorf("send gate: %w", err), now)
	}
	if reason != leaddomain.RejectNone {
		if _, err := d.repo.MarkRejected(ctx, item.ID, string(reason)); err != nil {
			return err
		}
		d.complete(ctx, item, OutcomeRejected, now)
		return nil
	}

	limit, err := d.resources.DailyLimit(ctx, item.ResourceID, now)
	if err != nil {
		return d.failAttempt(ctx, item, fmt.Errorf("daily limit: %w", err), now)
	}
	day := domain.Day(now, loc)
	limit = d.jittered(limit, item.ResourceID, day)
	if limit < 1 {
		return d.parkForToday(ctx, item, now, loc)
	}

	// Reserve the slot before contacting the provider. Concurrent workers
	// race on the conditional increment, never on the provider call.
	reserved, err := d.repo.ReserveDailySlot(ctx, item.ResourceID, day, limit)
	if err != nil {
		return d.failAttempt(ctx, item, fmt.Errorf("reserve slot: %w", err), now)
	}
	if !reserved {
		return d.parkForToday(ctx, item, now, loc)
	}

	if err := d.send(ctx, item); err != nil {
		if releaseErr := d.repo.ReleaseDailySlot(ctx, item.ResourceID, day); releaseErr != nil {
			d.log.Warn("slot release failed", "item_id", item.ID, "error", releaseErr)
		}
		return d.failAttempt(ctx, item, err, now)
	}

	if _, err := d.repo.MarkSent(ctx, item.ID); err != nil {
		return err
	}

	if err := d.resources.ReportSendEvent(ctx, item.ResourceID, resourcetransport.SendEventRequest{EventType: "sent"}); err != nil {
		d.log.Warn("send event report failed", "item_id", item.ID, "error", err)
	}
	if err := d.leads.TouchByLead(ctx, item.LeadID, item.TenantID); err != nil {
		d.log.Warn("touch record failed", "item_id", item.ID, "error", err)
	}

	d.complete(ctx, item, OutcomeSent, now)
	return nil
}

// send resolves the provider and recipient and performs the delivery call.
// No queue rows are locked while the provider is on the wire.
func (d *Dispatcher) send(ctx context.Context, item repository.QueueItem) error {
	provider, err := d.providers.For(item.Channel)
	if err != nil {
		return err
	}

	lead, err := d.leads.GetByID(ctx, item.LeadID)
	if err != nil {
		return fmt.Errorf("resolve lead: %w", err)
	}
	resource, err := d.resources.GetByID(ctx, item.ResourceID)
	if err != nil {
		return fmt.Errorf("resolve resource: %w", err)
	}

	return provider.Send(ctx, delivery.Message{
		Via:        resource.Value,
		To:         lead.Email,
		ToName:     displayName(lead),
		ActionType: item.ActionType,
		Subject:    item.ActionType,
	})
}

// parkForToday moves the item to rate_limited until the next day boundary.
// The attempt the claim consumed is refunded inside MarkRateLimited.
func (d *Dispatcher) parkForToday(ctx context.Context, item repository.QueueItem, now time.Time, loc *time.Location) error {
	resumeAt := domain.NextDayStart(now, loc)
	if _, err := d.repo.MarkRateLimited(ctx, item.ID, resumeAt); err != nil {
		return err
	}
	d.complete(ctx, item, OutcomeRateLimited, now)
	return nil
}

// failAttempt re-schedules the item with backoff, or terminally fails it
// when the attempt budget is spent.
func (d *Dispatcher) failAttempt(ctx context.Context, item repository.QueueItem, cause error, now time.Time) error {
	if item.Attempts >= item.MaxAttempts {
		if _, err := d.repo.MarkFailed(ctx, item.ID, cause.Error()); err != nil {
			return err
		}
		d.complete(ctx, item, OutcomeFailed, now)
		return nil
	}

	delay := domain.Backoff(d.cfg.GetRetryBackoffBase(), d.cfg.GetRetryBackoffCap(), item.Attempts)
	if _, err := d.repo.MarkFailedRetry(ctx, item.ID, now.Add(delay), cause.Error()); err != nil {
		return err
	}
	d.complete(ctx, item, OutcomeRetryScheduled, now)
	return nil
}

func (d *Dispatcher) complete(ctx context.Context, item repository.QueueItem, outcome string, now time.Time) {
	d.log.DispatchOutcome(item.ID.String(), item.ResourceID.String(), outcome, item.Attempts)
	d.eventBus.Publish(ctx, events.ActionCompleted{
		BaseEvent:  events.NewBaseEvent(),
		ItemID:     item.ID,
		ResourceID: item.ResourceID,
		TenantID:   item.TenantID,
		Outcome:    outcome,
		Attempts:   item.Attempts,
		At:         now,
	})
}

// jittered lowers the limit by up to the configured percentage so daily
// volumes do not land on the exact same number every day. The reduction is
// derived from the resource and day, so every dispatcher sees the same
// limit for the whole day.
func (d *Dispatcher) jittered(limit int, resourceID uuid.UUID, day time.Time) int {
	pct := d.cfg.GetDailyLimitJitterPct()
	if pct < 1 || limit < 1 {
		return limit
	}

	h := fnv.New64a()
	h.Write(resourceID[:])
	h.Write([]byte(day.Format("2006-01-02")))
	reduction := limit * int(h.Sum64()%uint64(pct+1)) / 100
	return limit - reduction
}

func displayName(lead leadtransport.LeadResponse) string {
	switch {
	case lead.FirstName != nil && lead.LastName != nil:
		return *lead.FirstName + " " + *lead.LastName
	case lead.FirstName != nil:
		return *lead.FirstName
	default:
		return ""
	}
}
