package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/intake/internal/core/effects"
	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/logging"
	"github.com/example/intake/internal/metrics"
	"github.com/example/intake/internal/ports/primary"
	"github.com/example/intake/internal/ports/secondary"
)

// InstructionServiceConfig holds the settings the reconciler reads once at startup.
type InstructionServiceConfig struct {
	PaymentsDisabled  bool
	FeeEarnerDomain   string
	FeeEarnerFallback string
	AccountsAddress   string
}

// InstructionServiceImpl implements the InstructionService interface.
type InstructionServiceImpl struct {
	instructions secondary.InstructionRepository
	deals        secondary.DealRepository
	executor     EffectExecutor
	queue        TaskQueue
	locks        *KeyedMutex
	cfg          InstructionServiceConfig
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewInstructionService creates a new InstructionService with injected dependencies.
func NewInstructionService(
	instructions secondary.InstructionRepository,
	deals secondary.DealRepository,
	executor EffectExecutor,
	queue TaskQueue,
	locks *KeyedMutex,
	cfg InstructionServiceConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *InstructionServiceImpl {
	return &InstructionServiceImpl{
		instructions: instructions,
		deals:        deals,
		executor:     executor,
		queue:        queue,
		locks:        locks,
		cfg:          cfg,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// GetInstruction returns the instruction without payment fields, or nil.
func (s *InstructionServiceImpl) GetInstruction(ctx context.Context, ref string) (*instruction.Instruction, error) {
	if err := instruction.RequireRef(ref); err != nil {
		return nil, err
	}

	inst, err := s.instructions.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get instruction: %w", err)
	}
	return inst.WithoutPayment(), nil
}

// SubmitInstruction reconciles a client submission.
func (s *InstructionServiceImpl) SubmitInstruction(ctx context.Context, req primary.SubmitInstructionRequest) (*primary.SubmitInstructionResponse, error) {
	ref := req.InstructionRef

	// 1. Validate request
	if err := instruction.RequireRef(ref); err != nil {
		return nil, err
	}
	hint, err := instruction.ParseStageHint(req.Stage)
	if err != nil {
		return nil, err
	}

	// 2. Serialize writers of the same instruction
	unlock, err := s.locks.Lock(ctx, ref)
	if err != nil {
		s.metrics.Reconciliations.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}
	defer unlock()

	// 3. Load existing record and check guard
	existing, err := s.instructions.Get(ctx, ref)
	if err != nil {
		s.metrics.Reconciliations.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to load instruction: %w", err)
	}

	guardCtx := instruction.ReconcileContext{InstructionRef: ref, Exists: existing != nil, StageHint: hint}
	if existing != nil {
		guardCtx.Stage = existing.Stage
	}
	if result := instruction.CanReconcile(guardCtx); !result.Allowed {
		s.metrics.Reconciliations.WithLabelValues(metrics.ResultCompleted).Inc()
		return &primary.SubmitInstructionResponse{Completed: true}, nil
	}

	// 4. Filter and normalize incoming fields
	fields, warnings := instruction.SplitIncoming(req.Fields)
	fields = instruction.Normalize(fields)

	// 5. Deal prefill for new records (best effort)
	var prefill *instruction.DealPrefill
	if existing == nil {
		prefill = s.lookupPrefill(ctx, ref)
	}

	// 6. Plan the write
	now := s.now()
	plan := instruction.PlanReconcile(instruction.ReconcileInput{
		InstructionRef: ref,
		Existing:       existing,
		Incoming:       fields,
		StageHint:      hint,
		Prefill:        prefill,
		Now:            now,
	})
	warnings = append(warnings, plan.Warnings...)

	// 7. Primary write - the only step whose failure reaches the caller
	persisted, err := s.instructions.Upsert(ctx, ref, plan.Patch)
	if err != nil {
		s.metrics.Reconciliations.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to save instruction: %w", err)
	}

	// 8. POID side effects fire once, on the transition
	if instruction.DetectPoidTransition(plan.PreviousStatus, persisted.InternalStatus) {
		s.metrics.PoidTransitions.Inc()
		persisted = s.enterPoid(ctx, persisted, now)
	}

	s.metrics.Reconciliations.WithLabelValues(metrics.ResultWritten).Inc()
	return &primary.SubmitInstructionResponse{
		Instruction: persisted,
		Warnings:    warnings,
	}, nil
}

// lookupPrefill finds the deal a new instruction came from. Failures are
// logged and yield no prefill.
func (s *InstructionServiceImpl) lookupPrefill(ctx context.Context, ref string) *instruction.DealPrefill {
	parsed, err := instruction.ParseRef(ref)
	if err != nil {
		s.logger.Debug("skipping deal prefill", logging.Ref(ref), zap.Error(err))
		return nil
	}

	deal, err := s.deals.GetByPasscodeIncludingLinked(ctx, parsed.Passcode, parsed.ProspectID)
	if err != nil {
		s.logger.Warn("deal prefill lookup failed", logging.Ref(ref), zap.Error(err))
		return nil
	}
	if deal == nil {
		return nil
	}

	return &instruction.DealPrefill{
		WorkType:    deal.ServiceDescription,
		SolicitorID: deal.PitchedBy,
	}
}

// enterPoid runs the POID snapshot and queues verification. It returns the
// freshest view of the record; failures are logged, never returned.
func (s *InstructionServiceImpl) enterPoid(ctx context.Context, inst *instruction.Instruction, now time.Time) *instruction.Instruction {
	ref := inst.Ref
	input := instruction.PoidInput{
		Instruction:      inst,
		PaymentsDisabled: s.cfg.PaymentsDisabled,
		Now:              now,
	}

	if s.cfg.PaymentsDisabled {
		input.DealID, input.LatestWorkType = s.lookupSnapshotDeal(ctx, ref)
	}

	plan := instruction.PlanPoid(input)

	if err := s.executor.Execute(ctx, plan.SnapshotEffects()); err != nil {
		s.logger.Error("poid snapshot incomplete", logging.Ref(ref), zap.Error(err))
	}

	tasks := make([]effects.Effect, 0, len(plan.Tasks))
	for _, e := range plan.Tasks {
		tasks = append(tasks, e)
	}
	if err := s.executor.Execute(ctx, tasks); err != nil {
		s.logger.Error("poid follow-ups not queued", logging.Ref(ref), zap.Error(err))
	}

	if len(plan.Snapshot) == 0 {
		return inst
	}
	fresh, err := s.instructions.Get(ctx, ref)
	if err != nil || fresh == nil {
		s.logger.Warn("failed to reload instruction after snapshot", logging.Ref(ref), zap.Error(err))
		return inst
	}
	return fresh
}

// lookupSnapshotDeal resolves the deal to link and the latest service
// description for the workType backfill. Failures are logged and leave
// the zero values.
func (s *InstructionServiceImpl) lookupSnapshotDeal(ctx context.Context, ref string) (int64, string) {
	parsed, err := instruction.ParseRef(ref)
	if err != nil {
		s.logger.Warn("cannot resolve deal for snapshot", logging.Ref(ref), zap.Error(err))
		return 0, ""
	}

	latest, err := s.deals.GetLatest(ctx, parsed.ProspectID)
	if err != nil {
		s.logger.Warn("latest deal lookup failed", logging.Ref(ref), zap.Error(err))
	}

	var dealID int64
	deal, err := s.deals.GetByPasscodeIncludingLinked(ctx, parsed.Passcode, parsed.ProspectID)
	switch {
	case err != nil:
		s.logger.Warn("deal lookup for snapshot failed", logging.Ref(ref), zap.Error(err))
	case deal != nil:
		dealID = deal.DealID
	}
	if dealID == 0 && latest != nil {
		dealID = latest.DealID
	}

	var workType string
	if latest != nil {
		workType = latest.ServiceDescription
	}
	return dealID, workType
}

// CompleteInstruction marks the instruction completed and closes its deals.
func (s *InstructionServiceImpl) CompleteInstruction(ctx context.Context, ref string) (*instruction.Instruction, error) {
	if err := instruction.RequireRef(ref); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.instructions.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load instruction: %w", err)
	}
	if result := instruction.CanCompleteInstruction(instruction.CompleteContext{
		InstructionRef: ref,
		Exists:         existing != nil,
	}); !result.Allowed {
		return nil, fmt.Errorf("%s: %w", result.Reason, secondary.ErrNotFound)
	}

	completed, err := s.instructions.MarkCompleted(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to complete instruction: %w", err)
	}

	// Follow-ups only on the first completion
	if existing.Stage != instruction.StageCompleted {
		if err := s.executor.Execute(ctx, instruction.PlanCompletion(ref, s.now())); err != nil {
			s.logger.Warn("completion follow-ups failed", logging.Ref(ref), zap.Error(err))
		}
	}

	return completed, nil
}

// SendEmails queues the notification emails for an instruction.
func (s *InstructionServiceImpl) SendEmails(ctx context.Context, ref string) (*primary.SendEmailsResponse, error) {
	if err := instruction.RequireRef(ref); err != nil {
		return nil, err
	}

	inst, err := s.instructions.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load instruction: %w", err)
	}
	if inst == nil {
		return nil, fmt.Errorf("instruction %s: %w", ref, secondary.ErrNotFound)
	}

	tasks, warnings := instruction.PlanEmails(instruction.EmailInput{
		Instruction:       inst,
		FeeEarnerDomain:   s.cfg.FeeEarnerDomain,
		FeeEarnerFallback: s.cfg.FeeEarnerFallback,
		AccountsAddress:   s.cfg.AccountsAddress,
	})

	resp := &primary.SendEmailsResponse{Queued: []primary.QueuedEmail{}, Warnings: warnings}
	for _, t := range tasks {
		task, queued, err := s.queue.Enqueue(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("failed to queue email: %w", err)
		}
		if !queued {
			continue
		}
		payload := t.Payload.(outbox.EmailPayload)
		resp.Queued = append(resp.Queued, primary.QueuedEmail{
			TaskID:   task.ID,
			Template: payload.Template,
			To:       payload.To,
		})
	}

	return resp, nil
}

// Ensure InstructionServiceImpl implements the interface
var _ primary.InstructionService = (*InstructionServiceImpl)(nil)
