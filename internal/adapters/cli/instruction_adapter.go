// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/ports/primary"
)

// InstructionAdapter is a thin adapter that translates CLI operations to InstructionService calls.
type InstructionAdapter struct {
	service primary.InstructionService
	out     io.Writer
}

// NewInstructionAdapter creates a new InstructionAdapter with the given service.
func NewInstructionAdapter(service primary.InstructionService, out io.Writer) *InstructionAdapter {
	return &InstructionAdapter{
		service: service,
		out:     out,
	}
}

// Show displays an instruction. Payment fields are never shown.
func (a *InstructionAdapter) Show(ctx context.Context, ref string) (*instruction.Instruction, error) {
	inst, err := a.service.GetInstruction(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get instruction: %w", err)
	}
	if inst == nil {
		return nil, fmt.Errorf("instruction %s not found", ref)
	}

	fmt.Fprintf(a.out, "\nInstruction: %s\n", inst.Ref)
	fmt.Fprintf(a.out, "Stage:       %s\n", inst.Stage)
	fmt.Fprintf(a.out, "Status:      %s\n", statusLabel(inst.InternalStatus))
	if name := displayName(inst); name != "" {
		fmt.Fprintf(a.out, "Client:      %s\n", name)
	}
	if inst.Email != "" {
		fmt.Fprintf(a.out, "Email:       %s\n", inst.Email)
	}
	if inst.WorkType != "" {
		fmt.Fprintf(a.out, "Work type:   %s\n", inst.WorkType)
	}
	if inst.SolicitorID != "" {
		fmt.Fprintf(a.out, "Solicitor:   %s\n", inst.SolicitorID)
	}
	if inst.PoidDate != "" {
		fmt.Fprintf(a.out, "POID:        %s\n", inst.PoidDate)
	}
	if inst.PaymentDisabled {
		fmt.Fprintf(a.out, "Payments:    %s\n", color.New(color.FgYellow).Sprint("disabled"))
	}
	fmt.Fprintf(a.out, "Updated:     %s\n", inst.UpdatedAt)
	fmt.Fprintln(a.out)

	return inst, nil
}

// Complete marks an instruction as completed.
func (a *InstructionAdapter) Complete(ctx context.Context, ref string) error {
	inst, err := a.service.CompleteInstruction(ctx, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Instruction %s marked as %s\n", inst.Ref, inst.Stage)
	return nil
}

// SendEmails queues the notification emails and lists them.
func (a *InstructionAdapter) SendEmails(ctx context.Context, ref string) error {
	resp, err := a.service.SendEmails(ctx, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Queued %d email(s) for %s\n", len(resp.Queued), ref)
	for _, q := range resp.Queued {
		fmt.Fprintf(a.out, "  %-15s %-16s %v\n", q.TaskID, q.Template, q.To)
	}
	for _, w := range resp.Warnings {
		fmt.Fprintf(a.out, "  %s %s\n", color.New(color.FgYellow).Sprint("!"), w)
	}
	return nil
}

func statusLabel(s instruction.Status) string {
	switch s {
	case instruction.StatusPaid:
		return color.New(color.FgGreen).Sprint(s)
	case instruction.StatusPoid:
		return color.New(color.FgCyan).Sprint(s)
	default:
		return string(s)
	}
}

func displayName(inst *instruction.Instruction) string {
	switch {
	case inst.FirstName != "" || inst.LastName != "":
		return inst.FirstName + " " + inst.LastName
	default:
		return inst.CompanyName
	}
}
