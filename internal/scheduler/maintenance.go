package scheduler

import (
	"context"
	"time"

	"outreach_portal_backend/platform/config"
	"outreach_portal_backend/platform/logger"
)

const defaultMaintenanceInterval = time.Hour

// Maintenance periodically enqueues the health recompute and lead rescore
// sweeps. Both handlers are idempotent window functions, so a duplicate run
// after a restart is harmless.
type Maintenance struct {
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

func NewMaintenance(client *Client, cfg config.HealthConfig, log *logger.Logger) *Maintenance {
	interval := cfg.GetHealthRecomputeInterval()
	if interval <= 0 {
		interval = defaultMaintenanceInterval
	}

	return &Maintenance{
		client:   client,
		interval: interval,
		log:      log,
	}
}

func (m *Maintenance) Run(ctx context.Context) {
	if m == nil || m.client == nil {
		return
	}

	m.enqueue(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.enqueue(ctx)
		}
	}
}

func (m *Maintenance) enqueue(ctx context.Context) {
	if err := m.client.EnqueueHealthRecompute(ctx, HealthRecomputePayload{}); err != nil {
		m.log.Warn("health recompute enqueue failed", "error", err)
	}
	if err := m.client.EnqueueLeadRescore(ctx, LeadRescorePayload{}); err != nil {
		m.log.Warn("lead rescore enqueue failed", "error", err)
	}
}
