// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/intake/internal/core/effects"
	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/logging"
	"github.com/example/intake/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor implements EffectExecutor against the repositories
// and the outbox. Every effect is attempted; a failure is logged and does
// not stop the rest.
type DefaultEffectExecutor struct {
	instructions secondary.InstructionRepository
	deals        secondary.DealRepository
	queue        TaskQueue
	logger       *zap.Logger
}

// NewEffectExecutor creates a new DefaultEffectExecutor.
func NewEffectExecutor(
	instructions secondary.InstructionRepository,
	deals secondary.DealRepository,
	queue TaskQueue,
	logger *zap.Logger,
) *DefaultEffectExecutor {
	return &DefaultEffectExecutor{
		instructions: instructions,
		deals:        deals,
		queue:        queue,
		logger:       logger,
	}
}

// Execute runs every effect and returns the joined failures.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	var errs []error
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			err = fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
			e.logger.Warn("effect failed", zap.String("effect", describe(eff)), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.PersistEffect:
		return e.executePersist(ctx, typed)
	case effects.EnqueueEffect:
		_, _, err := e.queue.Enqueue(ctx, typed)
		return err
	case effects.LogEffect:
		e.executeLog(typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executePersist(ctx context.Context, eff effects.PersistEffect) error {
	switch eff.Entity + "/" + eff.Operation {
	case "instruction/patch":
		data, ok := eff.Data.(instruction.PatchData)
		if !ok {
			return fmt.Errorf("instruction/patch: unexpected data %T", eff.Data)
		}
		_, err := e.instructions.Upsert(ctx, data.InstructionRef, data.Patch)
		return err
	case "deal/link_instruction":
		data, ok := eff.Data.(instruction.DealLink)
		if !ok {
			return fmt.Errorf("deal/link_instruction: unexpected data %T", eff.Data)
		}
		return e.deals.LinkInstruction(ctx, data.DealID, data.InstructionRef)
	case "deal/close_for_instruction":
		ref, ok := eff.Data.(string)
		if !ok {
			return fmt.Errorf("deal/close_for_instruction: unexpected data %T", eff.Data)
		}
		n, err := e.deals.CloseForInstruction(ctx, ref)
		if err == nil {
			e.logger.Debug("closed deals", logging.Ref(ref), zap.Int("count", n))
		}
		return err
	default:
		return fmt.Errorf("unknown persist operation: %s/%s", eff.Entity, eff.Operation)
	}
}

func (e *DefaultEffectExecutor) executeLog(eff effects.LogEffect) {
	fields := make([]zap.Field, 0, len(eff.Fields))
	for k, v := range eff.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch eff.Level {
	case "debug":
		e.logger.Debug(eff.Message, fields...)
	case "warn":
		e.logger.Warn(eff.Message, fields...)
	case "error":
		e.logger.Error(eff.Message, fields...)
	default:
		e.logger.Info(eff.Message, fields...)
	}
}

func describe(eff effects.Effect) string {
	switch typed := eff.(type) {
	case effects.PersistEffect:
		return typed.Entity + "/" + typed.Operation
	case effects.EnqueueEffect:
		return "enqueue/" + typed.Kind
	default:
		return eff.EffectType()
	}
}
