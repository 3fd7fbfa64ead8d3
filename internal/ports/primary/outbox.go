package primary

import (
	"context"

	"github.com/example/intake/internal/ports/secondary"
)

// OutboxService defines the primary port for operating the task queue.
type OutboxService interface {
	// ListTasks lists tasks matching the filters.
	ListTasks(ctx context.Context, filters secondary.OutboxFilters) ([]*secondary.OutboxTask, error)

	// Drain processes due tasks until none remain and reports how many ran.
	Drain(ctx context.Context) (*DrainResult, error)
}

// DrainResult summarises a drain.
type DrainResult struct {
	Processed int
	Sent      int
	Failed    int
	Retrying  int
}
