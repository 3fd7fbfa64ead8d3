// Package stripe implements the payment gateway on Stripe PaymentIntents.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/example/intake/internal/ports/secondary"
)

// metadataRef carries the instruction reference on every intent.
const metadataRef = "instructionRef"

// Config holds the Stripe credentials. Backends overrides the API endpoint
// and is only set in tests.
type Config struct {
	SecretKey     string
	WebhookSecret string
	Backends      *stripe.Backends
}

// Gateway is a secondary.PaymentGateway backed by Stripe.
type Gateway struct {
	api           *client.API
	webhookSecret string
}

// New creates a Gateway.
func New(cfg Config) *Gateway {
	return &Gateway{
		api:           client.New(cfg.SecretKey, cfg.Backends),
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateIntent creates an intent with automatic payment methods enabled.
func (g *Gateway) CreateIntent(ctx context.Context, req secondary.IntentRequest) (*secondary.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataRef, req.InstructionRef)
	if req.Product != "" {
		params.Description = stripe.String(req.Product)
		params.AddMetadata("product", req.Product)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &secondary.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Signature failures wrap secondary.ErrInvalidSignature.
func (g *Gateway) ParseWebhook(payload []byte, signatureHeader string) (*secondary.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", secondary.ErrInvalidSignature, err)
	}

	out := &secondary.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "payment_intent.") || event.Data == nil {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent from %s: %w", event.ID, err)
	}
	out.IntentID = pi.ID
	out.IntentStatus = string(pi.Status)
	out.InstructionRef = pi.Metadata[metadataRef]
	return out, nil
}

var _ secondary.PaymentGateway = (*Gateway)(nil)
