package scheduler

import (
	"context"
	"fmt"

	queueservice "outreach_portal_backend/internal/actionqueue/service"
	"outreach_portal_backend/internal/leadpool/scoring"
	resourceservice "outreach_portal_backend/internal/resources/service"
	"outreach_portal_backend/platform/apperr"
	"outreach_portal_backend/platform/config"
	"outreach_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	defaultHealthRecomputeBatch = 500
	defaultRescoreBatch         = 200
)

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	dispatcher *queueservice.Dispatcher
	resources  *resourceservice.Service
	scoring    *scoring.Service
	log        *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, dispatcher *queueservice.Dispatcher, resources *resourceservice.Service, scorer *scoring.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		dispatcher: dispatcher,
		resources:  resources,
		scoring:    scorer,
		log:        log,
	}

	mux.HandleFunc(TaskActionDispatch, w.handleActionDispatch)
	mux.HandleFunc(TaskHealthRecompute, w.handleHealthRecompute)
	mux.HandleFunc(TaskLeadRescore, w.handleLeadRescore)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleActionDispatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseActionDispatchPayload(task)
	if err != nil {
		return err
	}

	itemID, err := uuid.Parse(payload.ItemID)
	if err != nil {
		return err
	}

	err = w.dispatcher.Dispatch(ctx, itemID)
	if err != nil {
		// An item no longer in processing was already handled elsewhere,
		// typically a stale-claim reclaim. Nothing left to do.
		if apperr.Is(err, apperr.KindConflict) || apperr.Is(err, apperr.KindNotFound) {
			w.log.Debug("dispatch skipped", "item_id", itemID, "reason", err.Error())
			return nil
		}
		return err
	}
	return nil
}

func (w *Worker) handleHealthRecompute(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseHealthRecomputePayload(task)
	if err != nil {
		return err
	}

	limit := payload.Limit
	if limit < 1 {
		limit = defaultHealthRecomputeBatch
	}

	updated, err := w.resources.RecomputeHealth(ctx, limit)
	if err != nil {
		return err
	}
	if updated > 0 {
		w.log.Info("resource health recomputed", "updated", updated)
	}
	return nil
}

func (w *Worker) handleLeadRescore(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadRescorePayload(task)
	if err != nil {
		return err
	}

	limit := payload.Limit
	if limit < 1 {
		limit = defaultRescoreBatch
	}

	scored, err := w.scoring.RescoreUnscored(ctx, limit)
	if err != nil {
		return err
	}
	if scored > 0 {
		w.log.Info("pool leads scored", "scored", scored)
	}
	return nil
}
