package app

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/logging"
	"github.com/example/intake/internal/metrics"
	"github.com/example/intake/internal/ports/secondary"
)

// VerificationHandler submits instructions for ID verification and stores
// the provider's raw response.
type VerificationHandler struct {
	instructions  secondary.InstructionRepository
	client        secondary.VerificationClient
	verifications secondary.VerificationRepository
	logger        *zap.Logger
}

// NewVerificationHandler creates a VerificationHandler.
func NewVerificationHandler(
	instructions secondary.InstructionRepository,
	client secondary.VerificationClient,
	verifications secondary.VerificationRepository,
	logger *zap.Logger,
) *VerificationHandler {
	return &VerificationHandler{
		instructions:  instructions,
		client:        client,
		verifications: verifications,
		logger:        logger,
	}
}

// Handle performs a verification.submit task.
func (h *VerificationHandler) Handle(ctx context.Context, task *secondary.OutboxTask) error {
	var payload outbox.VerificationPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return Permanent(fmt.Errorf("invalid verification payload: %w", err))
	}

	inst, err := loadForTask(ctx, h.instructions, payload.InstructionRef)
	if err != nil {
		return err
	}

	result, err := h.client.Submit(ctx, inst)
	if err != nil {
		return fmt.Errorf("verification submit failed: %w", err)
	}

	// The submission went through; a storage failure here must not trigger a resubmission.
	record := &secondary.VerificationRecord{
		InstructionRef: inst.Ref,
		Provider:       result.Provider,
		OverallResult:  result.OverallResult,
		RawResponse:    string(result.Raw),
	}
	if err := h.verifications.Create(ctx, record); err != nil {
		h.logger.Error("failed to store verification response", logging.Ref(inst.Ref), zap.Error(err))
		return nil
	}

	h.logger.Info("verification submitted",
		logging.Ref(inst.Ref),
		zap.String("provider", result.Provider),
		zap.String("overall_result", result.OverallResult),
	)
	return nil
}

// EmailHandler renders and sends a notification email.
type EmailHandler struct {
	instructions secondary.InstructionRepository
	renderer     secondary.EmailRenderer
	mailer       secondary.Mailer
	metrics      *metrics.Metrics
}

// NewEmailHandler creates an EmailHandler.
func NewEmailHandler(
	instructions secondary.InstructionRepository,
	renderer secondary.EmailRenderer,
	mailer secondary.Mailer,
	m *metrics.Metrics,
) *EmailHandler {
	return &EmailHandler{
		instructions: instructions,
		renderer:     renderer,
		mailer:       mailer,
		metrics:      m,
	}
}

// Handle performs an email.send task.
func (h *EmailHandler) Handle(ctx context.Context, task *secondary.OutboxTask) error {
	var payload outbox.EmailPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return Permanent(fmt.Errorf("invalid email payload: %w", err))
	}
	if len(payload.To) == 0 {
		return Permanent(fmt.Errorf("email %s has no recipients", payload.Template))
	}

	inst, err := loadForTask(ctx, h.instructions, payload.InstructionRef)
	if err != nil {
		return err
	}

	subject, body, err := h.renderer.Render(payload.Template, inst)
	if err != nil {
		return Permanent(fmt.Errorf("failed to render %s: %w", payload.Template, err))
	}

	err = h.mailer.Send(ctx, secondary.Email{To: payload.To, Subject: subject, HTMLBody: body})
	result := metrics.ResultSent
	if err != nil {
		result = metrics.ResultFailed
	}
	h.metrics.EmailsSent.WithLabelValues(h.mailer.Transport(), result).Inc()
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", payload.Template, err)
	}
	return nil
}

// EventHandler publishes lifecycle events.
type EventHandler struct {
	publisher secondary.EventPublisher
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(publisher secondary.EventPublisher) *EventHandler {
	return &EventHandler{publisher: publisher}
}

// Handle performs an event.publish task.
func (h *EventHandler) Handle(ctx context.Context, task *secondary.OutboxTask) error {
	var payload outbox.EventPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return Permanent(fmt.Errorf("invalid event payload: %w", err))
	}
	if err := h.publisher.Publish(ctx, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", payload.Event, err)
	}
	return nil
}

func loadForTask(ctx context.Context, repo secondary.InstructionRepository, ref string) (*instruction.Instruction, error) {
	inst, err := repo.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load instruction: %w", err)
	}
	if inst == nil {
		return nil, Permanent(fmt.Errorf("instruction %s: %w", ref, secondary.ErrNotFound))
	}
	return inst, nil
}

var (
	_ TaskHandler = (*VerificationHandler)(nil)
	_ TaskHandler = (*EmailHandler)(nil)
	_ TaskHandler = (*EventHandler)(nil)
)
