package scheduler

import (
	"context"
	"time"

	queueservice "outreach_portal_backend/internal/actionqueue/service"
	"outreach_portal_backend/platform/config"
	"outreach_portal_backend/platform/logger"
)

// ActionPoller claims due queue items in batches and hands each one to a
// dispatch worker through asynq. Claimed items are already in processing
// state, so a failed enqueue leaves them stalled until the stale-claim sweep.
type ActionPoller struct {
	dispatcher *queueservice.Dispatcher
	client     *Client
	interval   time.Duration
	log        *logger.Logger
}

func NewActionPoller(dispatcher *queueservice.Dispatcher, client *Client, cfg config.DispatchConfig, log *logger.Logger) *ActionPoller {
	interval := cfg.GetDispatchPollInterval()
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &ActionPoller{
		dispatcher: dispatcher,
		client:     client,
		interval:   interval,
		log:        log,
	}
}

func (p *ActionPoller) Run(ctx context.Context) {
	if p == nil || p.dispatcher == nil || p.client == nil {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		items, err := p.dispatcher.Poll(ctx, time.Now())
		if err != nil {
			p.log.Warn("action claim failed", "error", err)
			continue
		}
		if len(items) == 0 {
			continue
		}

		for _, item := range items {
			err := p.client.EnqueueActionDispatch(ctx, ActionDispatchPayload{
				ItemID: item.ID.String(),
			})
			if err != nil {
				p.log.Warn("dispatch enqueue failed", "item_id", item.ID, "error", err)
			}
		}
	}
}
