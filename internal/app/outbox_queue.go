package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/intake/internal/core/effects"
	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/metrics"
	"github.com/example/intake/internal/ports/secondary"
)

// TaskQueue hands side effects to the durable outbox.
type TaskQueue interface {
	// Enqueue persists the task. The bool is false when an equivalent
	// task is already pending and nothing was written.
	Enqueue(ctx context.Context, eff effects.EnqueueEffect) (*secondary.OutboxTask, bool, error)
}

// OutboxQueue implements TaskQueue over an OutboxRepository and wakes the
// worker whenever a task is written.
type OutboxQueue struct {
	repo        secondary.OutboxRepository
	maxAttempts map[string]int
	notify      chan struct{}
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewOutboxQueue creates a queue. maxAttempts overrides the per-kind defaults.
func NewOutboxQueue(repo secondary.OutboxRepository, maxAttempts map[string]int, m *metrics.Metrics) *OutboxQueue {
	return &OutboxQueue{
		repo:        repo,
		maxAttempts: maxAttempts,
		notify:      make(chan struct{}, 1),
		metrics:     m,
		now:         time.Now,
	}
}

// Enqueue persists the task described by eff.
func (q *OutboxQueue) Enqueue(ctx context.Context, eff effects.EnqueueEffect) (*secondary.OutboxTask, bool, error) {
	payload, err := json.Marshal(eff.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode %s payload: %w", eff.Kind, err)
	}

	task := &secondary.OutboxTask{
		ID:             uuid.NewString(),
		Kind:           eff.Kind,
		InstructionRef: eff.InstructionRef,
		Payload:        payload,
		MaxAttempts:    q.MaxAttempts(eff.Kind),
		NextAttemptAt:  q.now(),
		DedupeKey:      eff.DedupeKey,
	}

	ok, err := q.repo.Enqueue(ctx, task)
	if err != nil {
		return nil, false, fmt.Errorf("failed to enqueue %s: %w", eff.Kind, err)
	}
	if !ok {
		q.metrics.OutboxTasks.WithLabelValues(eff.Kind, metrics.ResultDeduped).Inc()
		return nil, false, nil
	}

	q.metrics.OutboxTasks.WithLabelValues(eff.Kind, metrics.ResultEnqueued).Inc()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return task, true, nil
}

// MaxAttempts returns the attempt budget for a task kind.
func (q *OutboxQueue) MaxAttempts(kind string) int {
	if n, ok := q.maxAttempts[kind]; ok && n > 0 {
		return n
	}
	return outbox.DefaultMaxAttempts(kind)
}

// Notify returns the channel signalled after each successful enqueue.
func (q *OutboxQueue) Notify() <-chan struct{} {
	return q.notify
}

var _ TaskQueue = (*OutboxQueue)(nil)
