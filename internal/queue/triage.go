package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/danhigham/telequeue/internal/domain"
	"github.com/danhigham/telequeue/internal/metrics"
	"github.com/danhigham/telequeue/internal/state"
	"github.com/danhigham/telequeue/internal/telegram"
)

const (
	TriggerPoll   = "poll"
	TriggerPush   = "push"
	TriggerManual = "manual"
)

// Triage keeps the local queue snapshot in step with the backend. Periodic
// polls and push-triggered refreshes share one in-flight fetch.
type Triage struct {
	store     *state.Store
	client    telegram.QueueAPI
	interval  time.Duration
	scheduler *gocron.Scheduler
	group     singleflight.Group
	logger    *zap.Logger

	mu  sync.Mutex
	ctx context.Context
}

func NewTriage(store *state.Store, client telegram.QueueAPI, interval time.Duration, logger *zap.Logger) *Triage {
	return &Triage{
		store:     store,
		client:    client,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger.Named("queue"),
		ctx:       context.Background(),
	}
}

// Start polls the queue every interval until Stop.
func (t *Triage) Start(ctx context.Context) error {
	t.mu.Lock()
	t.ctx = ctx
	t.mu.Unlock()

	_, err := t.scheduler.Every(t.interval).Do(func() {
		_ = t.Refresh(ctx, TriggerPoll)
	})
	if err != nil {
		return fmt.Errorf("schedule queue poll: %w", err)
	}

	t.logger.Info("queue polling started", zap.Duration("interval", t.interval))
	t.scheduler.StartAsync()
	return nil
}

func (t *Triage) Stop() {
	t.scheduler.Stop()
}

// Trigger refreshes the queue in the background, e.g. after an inbound message.
func (t *Triage) Trigger(chatID int64) {
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()

	t.logger.Debug("refresh triggered by incoming message", zap.Int64("chat_id", chatID))
	go func() { _ = t.Refresh(ctx, TriggerPush) }()
}

// Refresh fetches the server snapshot and reconciles it into the local
// queue. It does nothing while signed out. Failures are logged, not surfaced.
func (t *Triage) Refresh(ctx context.Context, trigger string) error {
	if t.store.Snapshot().Session.Step != domain.AuthStepAuthenticated {
		return nil
	}

	_, err, shared := t.group.Do("queue", func() (interface{}, error) {
		gen := t.store.Generation()

		queue, err := t.client.GetQueue(ctx)
		if err != nil {
			return nil, err
		}

		if !t.store.UpdateIf(gen, func(s state.State) state.State { return s.ReconcileQueue(queue) }) {
			metrics.StaleResponsesTotal.WithLabelValues("queue_refresh").Inc()
		}
		return nil, nil
	})

	result := "ok"
	switch {
	case err != nil:
		result = "error"
		t.logger.Debug("queue refresh failed", zap.String("trigger", trigger), zap.Error(err))
	case shared:
		result = "shared"
	}
	metrics.QueueRefreshesTotal.WithLabelValues(trigger, result).Inc()
	return err
}

// Act applies a triage decision and takes the returned snapshot as is.
func (t *Triage) Act(ctx context.Context, chatID int64, action domain.QueueAction) error {
	if !action.Valid() {
		return &domain.ValidationError{Field: "action", Message: fmt.Sprintf("unknown queue action %q", action)}
	}
	gen := t.store.Generation()

	queue, err := t.client.QueueAction(ctx, chatID, action)
	if err != nil {
		t.logger.Warn("queue action failed",
			zap.Int64("chat_id", chatID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return err
	}

	if !t.store.UpdateIf(gen, func(s state.State) state.State { return s.ReplaceQueue(queue) }) {
		metrics.StaleResponsesTotal.WithLabelValues("queue_action").Inc()
	}
	return nil
}
