// Package outbox contains the pure rules for durable background tasks:
// task kinds, payload shapes and the retry schedule.
package outbox

import (
	"time"
)

// Task kinds understood by the worker.
const (
	KindVerificationSubmit = "verification.submit"
	KindEmailSend          = "email.send"
	KindEventPublish       = "event.publish"
)

// Status is the lifecycle state of an outbox task.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusSending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further attempts will be made.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Email templates.
const (
	TemplateClientSuccess = "client_success"
	TemplateClientFailure = "client_failure"
	TemplateFeeEarner     = "fee_earner"
	TemplateAccounts      = "accounts"
)

// Lifecycle events published for downstream consumers.
const (
	EventPoid      = "poid"
	EventCompleted = "completed"
	EventPaid      = "paid"
)

// VerificationPayload asks the worker to submit an instruction for ID verification.
type VerificationPayload struct {
	InstructionRef string `json:"instructionRef"`
}

// EmailPayload asks the worker to render and send one templated email.
type EmailPayload struct {
	Template       string   `json:"template"`
	InstructionRef string   `json:"instructionRef"`
	To             []string `json:"to"`
}

// EventPayload asks the worker to publish a lifecycle event.
type EventPayload struct {
	Event          string            `json:"event"`
	InstructionRef string            `json:"instructionRef"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	OccurredAt     string            `json:"occurredAt"`
}

// VerificationDedupeKey keys verification tasks so a pending submission is never doubled.
func VerificationDedupeKey(ref string) string {
	return "verification:" + ref
}

// DefaultMaxAttempts returns the attempt budget for a task kind.
// Verification and email get a single attempt: the outbox only adds
// durability, and the mailer's own transport fallback is the only email retry.
func DefaultMaxAttempts(kind string) int {
	switch kind {
	case KindVerificationSubmit, KindEmailSend:
		return 1
	case KindEventPublish:
		return 3
	default:
		return 1
	}
}

// maxBackoff caps exponential growth.
const maxBackoff = time.Hour

// NextAttempt returns when a failed task should run again.
// attempts is the number of attempts already made. The second return value
// is false when the budget is exhausted and the task should fail terminally.
func NextAttempt(attempts, maxAttempts int, base time.Duration, now time.Time) (time.Time, bool) {
	if attempts >= maxAttempts {
		return time.Time{}, false
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			delay = maxBackoff
			break
		}
	}
	return now.Add(delay), true
}
