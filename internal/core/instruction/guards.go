package instruction

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// ReconcileContext provides the state needed to decide whether a submission
// may modify an instruction.
type ReconcileContext struct {
	InstructionRef string
	Exists         bool
	Stage          Stage
	StageHint      Stage
}

// CanReconcile evaluates whether a submission may write to the instruction.
// Rule: Completed instructions are closed unless the client explicitly re-visits.
func CanReconcile(ctx ReconcileContext) GuardResult {
	if ctx.Exists && ctx.Stage == StageCompleted && ctx.StageHint != StageRevisit {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("instruction %s is already completed", ctx.InstructionRef),
		}
	}
	return GuardResult{Allowed: true}
}

// CompleteContext provides context for the completion guard.
type CompleteContext struct {
	InstructionRef string
	Exists         bool
}

// CanCompleteInstruction evaluates whether an instruction can be marked completed.
// Rule: Instruction must exist. Completing twice is a no-op.
func CanCompleteInstruction(ctx CompleteContext) GuardResult {
	if !ctx.Exists {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("instruction %s not found", ctx.InstructionRef),
		}
	}
	return GuardResult{Allowed: true}
}
