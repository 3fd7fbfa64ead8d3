package primary

import (
	"context"
	"errors"

	"github.com/example/intake/internal/ports/secondary"
)

// ErrPaymentsDisabled is returned when card payments are switched off.
var ErrPaymentsDisabled = errors.New("payments are disabled")

// ErrGatewayUnavailable is returned when no payment gateway is configured.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// PaymentService defines the primary port for card payments.
type PaymentService interface {
	// CreatePaymentIntent creates a gateway intent and records the payment.
	CreatePaymentIntent(ctx context.Context, req CreatePaymentIntentRequest) (*CreatePaymentIntentResponse, error)

	// HandleWebhook verifies and applies a gateway notification.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	// GetPayment returns a payment by intent id, or nil when unknown.
	GetPayment(ctx context.Context, intentID string) (*secondary.PaymentRecord, error)
}

// CreatePaymentIntentRequest contains parameters for a card payment.
type CreatePaymentIntentRequest struct {
	InstructionRef string
	Amount         float64 // major units, e.g. pounds
	Currency       string
	Product        string
}

// CreatePaymentIntentResponse is what the client needs to confirm the payment.
type CreatePaymentIntentResponse struct {
	PaymentID    string
	IntentID     string
	ClientSecret string
	Status       string
}
