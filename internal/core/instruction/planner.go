package instruction

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/intake/internal/core/effects"
	"github.com/example/intake/internal/core/outbox"
)

// DealPrefill carries the business fields a deal may contribute to a new
// instruction. It deliberately has no amount: payment data is owned by the
// payment flow and is never copied from a deal.
type DealPrefill struct {
	WorkType    string
	SolicitorID string
}

// ReconcileInput contains everything needed to plan a submission.
// All values are pre-fetched by the caller - no I/O in the planner.
type ReconcileInput struct {
	InstructionRef string
	Existing       *Instruction      // nil when no record exists
	Incoming       map[string]string // normalized, client-writable fields
	StageHint      Stage             // empty when the client sent none
	Prefill        *DealPrefill      // only consulted for new records
	Now            time.Time
}

// ReconcilePlan is the result of planning a submission.
type ReconcilePlan struct {
	Patch          Patch
	Merged         *Instruction // expected post-write state
	Warnings       []string
	IsNew          bool
	PreviousStatus Status
}

// PlanReconcile merges existing, incoming and deal-derived data into the
// patch that should be persisted. Incoming values win per field; the
// internal status is never lowered.
func PlanReconcile(in ReconcileInput) ReconcilePlan {
	plan := ReconcilePlan{
		Patch: Patch{},
		IsNew: in.Existing == nil,
	}

	merged := &Instruction{Ref: in.InstructionRef}
	if in.Existing != nil {
		merged = in.Existing.Clone()
		plan.PreviousStatus = in.Existing.InternalStatus
	}

	set := func(f Field, v string) {
		plan.Patch[f] = v
		merged.Set(f, v)
	}

	// 1. Incoming fields, last write wins
	keys := make([]string, 0, len(in.Incoming))
	for k := range in.Incoming {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		f, ok := LookupField(key)
		if !ok || !f.ClientWritable() {
			continue
		}
		value := in.Incoming[key]
		if f == FieldInternalStatus {
			next := Status(value)
			if !next.Known() {
				plan.Warnings = append(plan.Warnings, fmt.Sprintf("unknown internalStatus %q ignored", value))
				continue
			}
			if Regresses(merged.InternalStatus, next) {
				plan.Warnings = append(plan.Warnings, fmt.Sprintf("internalStatus %q would regress %q and was ignored", value, merged.InternalStatus))
				continue
			}
		}
		set(f, value)
	}

	// 2. Stage: hint, then stored value, then default
	stage := in.StageHint
	if stage == "" {
		stage = merged.Stage
	}
	if stage == "" {
		stage = InitialStage()
	}
	set(FieldStage, string(stage))

	// 3. Bank transfers are marked paid optimistically
	if merged.PaymentMethod == PaymentMethodBank {
		bank := ApplyBankTransfer(in.Now)
		set(FieldPaymentResult, bank.PaymentResult)
		set(FieldInternalStatus, string(bank.InternalStatus))
		set(FieldPaymentTimestamp, bank.PaymentTimestamp)
	}

	// 4. New records: deal prefill and default status
	if plan.IsNew {
		if in.Prefill != nil {
			if merged.WorkType == "" && in.Prefill.WorkType != "" {
				set(FieldWorkType, in.Prefill.WorkType)
			}
			if merged.SolicitorID == "" && in.Prefill.SolicitorID != "" {
				set(FieldSolicitorID, in.Prefill.SolicitorID)
			}
		}
		if merged.InternalStatus == "" {
			set(FieldInternalStatus, string(InitialStatus()))
		}
	}

	plan.Merged = merged
	return plan
}

// DealLink is the data of a deal/link_instruction persist effect.
type DealLink struct {
	DealID         int64
	InstructionRef string
}

// PatchData is the data of an instruction/patch persist effect.
type PatchData struct {
	InstructionRef string
	Patch          Patch
}

// PoidInput contains the inputs needed to plan the POID side effects.
type PoidInput struct {
	Instruction      *Instruction // persisted state after the write
	PaymentsDisabled bool
	DealID           int64  // 0 when no deal could be resolved
	LatestWorkType   string // service description of the prospect's latest deal
	Now              time.Time
}

// PoidPlan represents the planned effects for an instruction entering POID.
// Notices record snapshot steps that had to be skipped.
type PoidPlan struct {
	Snapshot []effects.PersistEffect
	Notices  []effects.LogEffect
	Tasks    []effects.EnqueueEffect
}

// SnapshotEffects returns the snapshot writes followed by the notices.
func (p PoidPlan) SnapshotEffects() []effects.Effect {
	result := make([]effects.Effect, 0, len(p.Snapshot)+len(p.Notices))
	for _, e := range p.Snapshot {
		result = append(result, e)
	}
	for _, e := range p.Notices {
		result = append(result, e)
	}
	return result
}

// Effects returns all effects as a flat slice for execution.
func (p PoidPlan) Effects() []effects.Effect {
	result := p.SnapshotEffects()
	for _, e := range p.Tasks {
		result = append(result, e)
	}
	return result
}

// PlanPoid creates the plan for an instruction that has just entered POID.
// When payments are administratively disabled the deal snapshot is taken
// synchronously; verification is always handed to the outbox.
func PlanPoid(in PoidInput) PoidPlan {
	ref := in.Instruction.Ref
	plan := PoidPlan{}

	if in.PaymentsDisabled {
		if in.DealID != 0 {
			plan.Snapshot = append(plan.Snapshot, effects.PersistEffect{
				Entity:    "deal",
				Operation: "link_instruction",
				Data:      DealLink{DealID: in.DealID, InstructionRef: ref},
			})
		} else {
			plan.Notices = append(plan.Notices, effects.LogEffect{
				Level:   "warn",
				Message: "no deal to link in poid snapshot",
				Fields:  map[string]any{"instruction_ref": ref},
			})
		}

		patch := Patch{
			FieldPaymentDisabled: "true",
			FieldPoidDate:        in.Now.UTC().Format(TimestampLayout),
		}
		if in.Instruction.WorkType == "" {
			if in.LatestWorkType != "" {
				patch[FieldWorkType] = in.LatestWorkType
			} else {
				plan.Notices = append(plan.Notices, effects.LogEffect{
					Level:   "info",
					Message: "workType left empty, no deal service description",
					Fields:  map[string]any{"instruction_ref": ref},
				})
			}
		}
		plan.Snapshot = append(plan.Snapshot, effects.PersistEffect{
			Entity:    "instruction",
			Operation: "patch",
			Data:      PatchData{InstructionRef: ref, Patch: patch},
		})
	}

	plan.Tasks = append(plan.Tasks,
		effects.EnqueueEffect{
			Kind:           outbox.KindVerificationSubmit,
			InstructionRef: ref,
			Payload:        outbox.VerificationPayload{InstructionRef: ref},
			DedupeKey:      outbox.VerificationDedupeKey(ref),
		},
		eventTask(ref, outbox.EventPoid, in.Now, map[string]string{
			"paymentDisabled": fmt.Sprintf("%t", in.PaymentsDisabled),
		}),
	)

	return plan
}

// PlanCompletion returns the best-effort follow-ups of completing an instruction.
func PlanCompletion(ref string, now time.Time) []effects.Effect {
	return []effects.Effect{
		effects.PersistEffect{
			Entity:    "deal",
			Operation: "close_for_instruction",
			Data:      ref,
		},
		eventTask(ref, outbox.EventCompleted, now, nil),
	}
}

// EmailInput contains what is needed to decide which emails to send.
type EmailInput struct {
	Instruction       *Instruction
	FeeEarnerDomain   string // recipients are <solicitor initials>@domain
	FeeEarnerFallback string // used when no solicitor is assigned
	AccountsAddress   string
}

// PlanEmails decides which notification emails an instruction gets.
// The fee earner is always notified; the client receives success or
// failure depending on payment; accounts hear about bank transfers.
func PlanEmails(in EmailInput) ([]effects.EnqueueEffect, []string) {
	ref := in.Instruction.Ref
	var tasks []effects.EnqueueEffect
	var warnings []string

	email := func(template string, to string) effects.EnqueueEffect {
		return effects.EnqueueEffect{
			Kind:           outbox.KindEmailSend,
			InstructionRef: ref,
			Payload: outbox.EmailPayload{
				Template:       template,
				InstructionRef: ref,
				To:             []string{to},
			},
		}
	}

	feeEarner := FeeEarnerAddress(in.Instruction.SolicitorID, in.FeeEarnerDomain, in.FeeEarnerFallback)
	if feeEarner == "" {
		warnings = append(warnings, "no fee earner address available")
	} else {
		tasks = append(tasks, email(outbox.TemplateFeeEarner, feeEarner))
	}

	if in.Instruction.Email == "" {
		warnings = append(warnings, "instruction has no client email")
	} else if in.Instruction.InternalStatus == StatusPaid {
		tasks = append(tasks, email(outbox.TemplateClientSuccess, in.Instruction.Email))
	} else {
		tasks = append(tasks, email(outbox.TemplateClientFailure, in.Instruction.Email))
	}

	if in.Instruction.PaymentMethod == PaymentMethodBank && in.AccountsAddress != "" {
		tasks = append(tasks, email(outbox.TemplateAccounts, in.AccountsAddress))
	}

	return tasks, warnings
}

// FeeEarnerAddress derives the fee earner mailbox from solicitor initials.
func FeeEarnerAddress(solicitorID, domain, fallback string) string {
	initials := normalizeInitials(solicitorID)
	if initials == "" || domain == "" {
		return fallback
	}
	return initials + "@" + domain
}

func normalizeInitials(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		}
	}
	return string(out)
}

func eventTask(ref, event string, now time.Time, attrs map[string]string) effects.EnqueueEffect {
	return effects.EnqueueEffect{
		Kind:           outbox.KindEventPublish,
		InstructionRef: ref,
		Payload: outbox.EventPayload{
			Event:          event,
			InstructionRef: ref,
			Attributes:     attrs,
			OccurredAt:     now.UTC().Format(TimestampLayout),
		},
	}
}

// EventTask builds an event.publish task for the given lifecycle event.
func EventTask(ref, event string, now time.Time) effects.EnqueueEffect {
	return eventTask(ref, event, now, nil)
}
