package app

import (
	"context"
	"fmt"

	"github.com/example/intake/internal/ports/primary"
	"github.com/example/intake/internal/ports/secondary"
)

// OutboxServiceImpl implements the OutboxService interface.
type OutboxServiceImpl struct {
	repo   secondary.OutboxRepository
	worker *OutboxWorker
}

// NewOutboxService creates a new OutboxService.
func NewOutboxService(repo secondary.OutboxRepository, worker *OutboxWorker) *OutboxServiceImpl {
	return &OutboxServiceImpl{repo: repo, worker: worker}
}

// ListTasks lists tasks matching the filters.
func (s *OutboxServiceImpl) ListTasks(ctx context.Context, filters secondary.OutboxFilters) ([]*secondary.OutboxTask, error) {
	tasks, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox tasks: %w", err)
	}
	return tasks, nil
}

// Drain processes due tasks until none remain.
func (s *OutboxServiceImpl) Drain(ctx context.Context) (*primary.DrainResult, error) {
	stats, err := s.worker.Drain(ctx)
	result := &primary.DrainResult{
		Processed: stats.Processed,
		Sent:      stats.Sent,
		Failed:    stats.Failed,
		Retrying:  stats.Retrying,
	}
	return result, err
}

// Ensure OutboxServiceImpl implements the interface
var _ primary.OutboxService = (*OutboxServiceImpl)(nil)
