package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/intake/internal/core/effects"
	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/core/payment"
	"github.com/example/intake/internal/logging"
	"github.com/example/intake/internal/ports/primary"
	"github.com/example/intake/internal/ports/secondary"
)

// PaymentServiceConfig holds payment settings read at startup.
type PaymentServiceConfig struct {
	Disabled bool
	Currency string
}

// PaymentServiceImpl implements the PaymentService interface.
type PaymentServiceImpl struct {
	gateway      secondary.PaymentGateway // nil when no gateway is configured
	payments     secondary.PaymentRepository
	instructions secondary.InstructionRepository
	executor     EffectExecutor
	locks        *KeyedMutex
	cfg          PaymentServiceConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewPaymentService creates a new PaymentService with injected dependencies.
func NewPaymentService(
	gateway secondary.PaymentGateway,
	payments secondary.PaymentRepository,
	instructions secondary.InstructionRepository,
	executor EffectExecutor,
	locks *KeyedMutex,
	cfg PaymentServiceConfig,
	logger *zap.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		gateway:      gateway,
		payments:     payments,
		instructions: instructions,
		executor:     executor,
		locks:        locks,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// CreatePaymentIntent creates a gateway intent and records the payment.
func (s *PaymentServiceImpl) CreatePaymentIntent(ctx context.Context, req primary.CreatePaymentIntentRequest) (*primary.CreatePaymentIntentResponse, error) {
	// 1. Validate
	if err := instruction.RequireRef(req.InstructionRef); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, &instruction.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if s.cfg.Disabled {
		return nil, primary.ErrPaymentsDisabled
	}
	if s.gateway == nil {
		return nil, primary.ErrGatewayUnavailable
	}

	// 2. The instruction must exist
	inst, err := s.instructions.Get(ctx, req.InstructionRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load instruction: %w", err)
	}
	if inst == nil {
		return nil, fmt.Errorf("instruction %s: %w", req.InstructionRef, secondary.ErrNotFound)
	}

	// 3. Create the intent
	intent, err := s.gateway.CreateIntent(ctx, secondary.IntentRequest{
		Amount:         payment.ToMinorUnits(req.Amount),
		Currency:       payment.NormalizeCurrency(req.Currency, s.cfg.Currency),
		InstructionRef: req.InstructionRef,
		Product:        req.Product,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	// 4. Record it
	mapping := payment.MapStatus(intent.Status)
	record := &secondary.PaymentRecord{
		ID:              uuid.NewString(),
		PaymentIntentID: intent.ID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Status:          mapping.PaymentStatus,
		InternalStatus:  mapping.InternalStatus,
		InstructionRef:  req.InstructionRef,
		Product:         req.Product,
	}
	if err := s.payments.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	return &primary.CreatePaymentIntentResponse{
		PaymentID:    record.ID,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       mapping.PaymentStatus,
	}, nil
}

// HandleWebhook verifies a gateway notification and applies it to the
// payment and, on a final outcome, the instruction.
func (s *PaymentServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return primary.ErrGatewayUnavailable
	}

	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if event.IntentID == "" {
		s.logger.Debug("ignoring webhook event", zap.String("type", event.Type))
		return nil
	}

	record, err := s.loadPayment(ctx, event)
	if err != nil || record == nil {
		return err
	}

	unlock, err := s.locks.Lock(ctx, record.InstructionRef)
	if err != nil {
		return err
	}
	defer unlock()

	// reload under the lock so concurrent deliveries see each other's writes
	record, err = s.loadPayment(ctx, event)
	if err != nil || record == nil {
		return err
	}

	mapping := payment.MapEvent(event.Type, event.IntentStatus)
	if payment.Regresses(record.InternalStatus, mapping.InternalStatus) {
		s.logger.Info("ignoring out-of-order webhook",
			zap.String("intent_id", event.IntentID),
			zap.String("type", event.Type),
			zap.String("current", record.InternalStatus),
			zap.String("next", mapping.InternalStatus))
		return nil
	}

	if err := s.payments.UpdateStatus(ctx, event.IntentID, mapping.PaymentStatus, mapping.InternalStatus); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	switch mapping.InternalStatus {
	case payment.InternalPaid:
		return s.applyToInstruction(ctx, record.InstructionRef, instruction.Patch{
			instruction.FieldInternalStatus:   string(instruction.StatusPaid),
			instruction.FieldPaymentResult:    instruction.PaymentResultSuccess,
			instruction.FieldPaymentAmount:    payment.FormatMinorUnits(record.Amount),
			instruction.FieldPaymentTimestamp: s.now().UTC().Format(instruction.TimestampLayout),
		}, true)
	case payment.InternalFailed:
		return s.applyToInstruction(ctx, record.InstructionRef, instruction.Patch{
			instruction.FieldPaymentResult: instruction.PaymentResultFailed,
		}, false)
	}
	return nil
}

func (s *PaymentServiceImpl) loadPayment(ctx context.Context, event *secondary.WebhookEvent) (*secondary.PaymentRecord, error) {
	record, err := s.payments.GetByIntentID(ctx, event.IntentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if record == nil {
		// Intents created elsewhere on the same account are acknowledged and ignored.
		s.logger.Warn("webhook for unknown payment intent", zap.String("intent_id", event.IntentID), zap.String("type", event.Type))
	}
	return record, nil
}

// applyToInstruction runs with the instruction's lock held.
func (s *PaymentServiceImpl) applyToInstruction(ctx context.Context, ref string, patch instruction.Patch, paid bool) error {
	inst, err := s.instructions.Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to load instruction: %w", err)
	}
	if inst == nil {
		s.logger.Warn("payment for unknown instruction", logging.Ref(ref))
		return nil
	}

	if inst.PaymentMethod == "" {
		patch[instruction.FieldPaymentMethod] = "card"
	}
	if _, err := s.instructions.Upsert(ctx, ref, patch); err != nil {
		return fmt.Errorf("failed to update instruction payment: %w", err)
	}

	if paid && inst.InternalStatus != instruction.StatusPaid {
		eff := instruction.EventTask(ref, outbox.EventPaid, s.now())
		if err := s.executor.Execute(ctx, []effects.Effect{eff}); err != nil {
			s.logger.Warn("failed to queue paid event", logging.Ref(ref), zap.Error(err))
		}
	}
	return nil
}

// GetPayment returns a payment by intent id, or nil when unknown.
func (s *PaymentServiceImpl) GetPayment(ctx context.Context, intentID string) (*secondary.PaymentRecord, error) {
	if intentID == "" {
		return nil, &instruction.ValidationError{Field: "intentId", Message: "is required"}
	}
	record, err := s.payments.GetByIntentID(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return record, nil
}

// Ensure PaymentServiceImpl implements the interface
var _ primary.PaymentService = (*PaymentServiceImpl)(nil)
