// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces through which the outside world drives the application.
package primary

import (
	"context"

	"github.com/example/intake/internal/core/instruction"
)

// InstructionService defines the primary port for instruction intake.
type InstructionService interface {
	// GetInstruction returns the instruction with payment fields stripped,
	// or nil when no instruction has the reference.
	GetInstruction(ctx context.Context, ref string) (*instruction.Instruction, error)

	// SubmitInstruction reconciles a client submission into the store and
	// triggers the POID side effects on the transition into poid.
	SubmitInstruction(ctx context.Context, req SubmitInstructionRequest) (*SubmitInstructionResponse, error)

	// CompleteInstruction marks the instruction completed. Idempotent.
	CompleteInstruction(ctx context.Context, ref string) (*instruction.Instruction, error)

	// SendEmails queues the notification emails for an instruction.
	SendEmails(ctx context.Context, ref string) (*SendEmailsResponse, error)
}

// SubmitInstructionRequest contains a client submission.
type SubmitInstructionRequest struct {
	InstructionRef string
	Stage          string
	Fields         map[string]any // raw JSON body minus instructionRef and stage
}

// SubmitInstructionResponse contains the result of a submission.
// When Completed is set the instruction was already finished and nothing was written.
type SubmitInstructionResponse struct {
	Completed   bool
	Instruction *instruction.Instruction
	Warnings    []string
}

// SendEmailsResponse lists the emails handed to the outbox.
type SendEmailsResponse struct {
	Queued   []QueuedEmail
	Warnings []string
}

// QueuedEmail describes one queued email.
type QueuedEmail struct {
	TaskID   string   `json:"taskId"`
	Template string   `json:"template"`
	To       []string `json:"to"`
}
