package secondary

import (
	"context"
	"errors"

	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/core/outbox"
)

// VerificationClient submits an instruction to the ID-verification provider.
type VerificationClient interface {
	Submit(ctx context.Context, inst *instruction.Instruction) (*VerificationResult, error)
}

// VerificationResult is the provider's answer to a submission.
type VerificationResult struct {
	Provider      string
	OverallResult string
	Raw           []byte
}

// Email is a rendered message ready for a transport.
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
}

// Mailer sends rendered emails.
type Mailer interface {
	Send(ctx context.Context, email Email) error

	// Transport names the mailer for logs and metrics (graph, smtp, debug).
	Transport() string
}

// EmailRenderer renders a named template for an instruction.
type EmailRenderer interface {
	Render(template string, inst *instruction.Instruction) (subject, body string, err error)
}

// EventPublisher announces instruction lifecycle events to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event outbox.EventPayload) error
}

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// PaymentGateway is the card payment provider.
type PaymentGateway interface {
	// CreateIntent creates a payment intent the client can confirm.
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)

	// ParseWebhook verifies and decodes a webhook delivery.
	ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}

// IntentRequest describes the payment to collect.
type IntentRequest struct {
	Amount         int64 // minor units
	Currency       string
	InstructionRef string
	Product        string
}

// Intent is the gateway's view of a created payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
}

// WebhookEvent is a verified gateway notification about an intent.
// IntentID is empty for event types that do not concern an intent.
type WebhookEvent struct {
	ID             string
	Type           string
	IntentID       string
	IntentStatus   string
	InstructionRef string
}
