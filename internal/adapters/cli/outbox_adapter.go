package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/ports/primary"
	"github.com/example/intake/internal/ports/secondary"
)

// OutboxAdapter translates CLI operations to OutboxService calls.
type OutboxAdapter struct {
	service primary.OutboxService
	out     io.Writer
}

// NewOutboxAdapter creates a new OutboxAdapter with the given service.
func NewOutboxAdapter(service primary.OutboxService, out io.Writer) *OutboxAdapter {
	return &OutboxAdapter{
		service: service,
		out:     out,
	}
}

// List lists outbox tasks with optional status and instruction filters.
func (a *OutboxAdapter) List(ctx context.Context, status, ref string, limit int) error {
	tasks, err := a.service.ListTasks(ctx, secondary.OutboxFilters{
		Status:         outbox.Status(status),
		InstructionRef: ref,
		Limit:          limit,
	})
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "No tasks found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-38s %-20s %-9s %-8s %s\n", "ID", "KIND", "STATUS", "ATTEMPT", "INSTRUCTION")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────────────────────────────────")
	for _, t := range tasks {
		fmt.Fprintf(a.out, "%-38s %-20s %s %-8s %s\n",
			t.ID, t.Kind, taskStatus(t.Status), fmt.Sprintf("%d/%d", t.Attempts, t.MaxAttempts), t.InstructionRef)
		if t.LastError != "" && t.Status != outbox.StatusSent {
			fmt.Fprintf(a.out, "  └ %s\n", t.LastError)
		}
	}
	fmt.Fprintln(a.out)

	return nil
}

// Drain runs due tasks until none remain.
func (a *OutboxAdapter) Drain(ctx context.Context) error {
	result, err := a.service.Drain(ctx)
	if err != nil {
		return fmt.Errorf("failed to drain outbox: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Processed %d task(s): %d sent, %d failed, %d retrying\n",
		result.Processed, result.Sent, result.Failed, result.Retrying)
	return nil
}

// taskStatus pads before colouring so escape codes do not break alignment.
func taskStatus(s outbox.Status) string {
	padded := fmt.Sprintf("%-9s", s)
	switch s {
	case outbox.StatusSent:
		return color.New(color.FgGreen).Sprint(padded)
	case outbox.StatusFailed:
		return color.New(color.FgRed).Sprint(padded)
	case outbox.StatusSending:
		return color.New(color.FgYellow).Sprint(padded)
	default:
		return padded
	}
}
