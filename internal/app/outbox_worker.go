package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/logging"
	"github.com/example/intake/internal/metrics"
	"github.com/example/intake/internal/ports/secondary"
)

// TaskHandler performs one kind of outbox task.
type TaskHandler interface {
	Handle(ctx context.Context, task *secondary.OutboxTask) error
}

// TaskHandlerFunc adapts a function to TaskHandler.
type TaskHandlerFunc func(ctx context.Context, task *secondary.OutboxTask) error

// Handle calls f.
func (f TaskHandlerFunc) Handle(ctx context.Context, task *secondary.OutboxTask) error {
	return f(ctx, task)
}

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent failure")

// Permanent wraps err so the worker fails the task without retrying.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", errPermanent, err)
}

// OutboxWorkerConfig tunes the worker loop.
type OutboxWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	RetryBase    time.Duration
	StaleAfter   time.Duration
}

// DrainStats counts the outcomes of one or more batches.
type DrainStats struct {
	Processed int
	Sent      int
	Failed    int
	Retrying  int
}

func (s *DrainStats) add(o DrainStats) {
	s.Processed += o.Processed
	s.Sent += o.Sent
	s.Failed += o.Failed
	s.Retrying += o.Retrying
}

// OutboxWorker claims due tasks and dispatches them to handlers by kind.
type OutboxWorker struct {
	repo     secondary.OutboxRepository
	handlers map[string]TaskHandler
	notify   <-chan struct{}
	cfg      OutboxWorkerConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewOutboxWorker creates a worker. notify may be nil, in which case the
// worker relies on polling alone.
func NewOutboxWorker(
	repo secondary.OutboxRepository,
	handlers map[string]TaskHandler,
	notify <-chan struct{},
	cfg OutboxWorkerConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *OutboxWorker {
	return &OutboxWorker{
		repo:     repo,
		handlers: handlers,
		notify:   notify,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Run processes tasks until ctx is cancelled. Tasks left in sending by a
// crashed process are requeued at start and then every StaleAfter/2, so a
// claim made shortly before a restart is still recovered.
func (w *OutboxWorker) Run(ctx context.Context) error {
	w.requeueStale(ctx)
	lastRequeue := w.now()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("outbox drain failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if w.cfg.StaleAfter > 0 && w.now().Sub(lastRequeue) >= w.cfg.StaleAfter/2 {
				w.requeueStale(ctx)
				lastRequeue = w.now()
			}
		case <-w.notify:
		}
	}
}

func (w *OutboxWorker) requeueStale(ctx context.Context) {
	if w.cfg.StaleAfter <= 0 {
		return
	}
	n, err := w.repo.RequeueStale(ctx, w.now().Add(-w.cfg.StaleAfter))
	if err != nil {
		w.logger.Error("failed to requeue stale outbox tasks", zap.Error(err))
	} else if n > 0 {
		w.logger.Info("requeued stale outbox tasks", zap.Int("count", n))
	}
}

// Drain processes batches until nothing is due.
func (w *OutboxWorker) Drain(ctx context.Context) (DrainStats, error) {
	return w.drain(ctx)
}

func (w *OutboxWorker) drain(ctx context.Context) (DrainStats, error) {
	var total DrainStats
	for {
		stats, err := w.DrainOnce(ctx)
		total.add(stats)
		if err != nil {
			return total, err
		}
		if stats.Processed == 0 || ctx.Err() != nil {
			return total, nil
		}
	}
}

// DrainOnce claims and processes a single batch.
func (w *OutboxWorker) DrainOnce(ctx context.Context) (DrainStats, error) {
	var stats DrainStats

	tasks, err := w.repo.ClaimDue(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to claim outbox tasks: %w", err)
	}

	for _, task := range tasks {
		stats.Processed++
		switch w.process(ctx, task) {
		case outbox.StatusSent:
			stats.Sent++
		case outbox.StatusFailed:
			stats.Failed++
		default:
			stats.Retrying++
		}
	}

	return stats, nil
}

// process runs one task and records its outcome, returning the new status.
func (w *OutboxWorker) process(ctx context.Context, task *secondary.OutboxTask) outbox.Status {
	log := w.logger.With(
		zap.String("task_id", task.ID),
		zap.String("kind", task.Kind),
		logging.Ref(task.InstructionRef),
		zap.Int("attempt", task.Attempts),
	)

	handler, ok := w.handlers[task.Kind]
	var err error
	if !ok {
		err = Permanent(fmt.Errorf("no handler for task kind %q", task.Kind))
	} else {
		err = handler.Handle(ctx, task)
	}

	if err == nil {
		if markErr := w.repo.MarkSent(ctx, task.ID); markErr != nil {
			log.Error("failed to mark outbox task sent", zap.Error(markErr))
		}
		w.metrics.OutboxTasks.WithLabelValues(task.Kind, metrics.ResultSent).Inc()
		log.Debug("outbox task sent")
		return outbox.StatusSent
	}

	var next *time.Time
	if !errors.Is(err, errPermanent) {
		if at, retry := outbox.NextAttempt(task.Attempts, task.MaxAttempts, w.cfg.RetryBase, w.now()); retry {
			next = &at
		}
	}

	if failErr := w.repo.Fail(ctx, task.ID, err.Error(), next); failErr != nil {
		log.Error("failed to record outbox failure", zap.Error(failErr))
	}

	if next != nil {
		w.metrics.OutboxTasks.WithLabelValues(task.Kind, metrics.ResultRetry).Inc()
		log.Warn("outbox task failed, will retry", zap.Time("next_attempt_at", *next), zap.Error(err))
		return outbox.StatusQueued
	}

	w.metrics.OutboxTasks.WithLabelValues(task.Kind, metrics.ResultFailed).Inc()
	log.Error("outbox task failed", zap.Error(err))
	return outbox.StatusFailed
}
