package instruction

import "time"

// TimestampLayout is the wire and storage format for server-stamped times.
const TimestampLayout = time.RFC3339

var statusRank = map[Status]int{
	StatusPitch: 1,
	StatusPoid:  2,
	StatusPaid:  3,
}

// Known reports whether s is a recognised internal status.
func (s Status) Known() bool {
	_, ok := statusRank[s]
	return ok
}

// Regresses reports whether moving from current to next would lower the status.
// An empty current status never blocks.
func Regresses(current, next Status) bool {
	return statusRank[next] < statusRank[current]
}

// InitialStatus returns the internal status given to new instructions.
func InitialStatus() Status {
	return StatusPitch
}

// InitialStage returns the stage used when neither client nor record supply one.
func InitialStage() Stage {
	return StageInProgress
}

// DetectPoidTransition reports whether an instruction has just entered POID.
func DetectPoidTransition(previous, next Status) bool {
	return previous != StatusPoid && next == StatusPoid
}

// BankTransferResult holds the fields forced by a client-asserted bank transfer.
type BankTransferResult struct {
	PaymentResult    string
	InternalStatus   Status
	PaymentTimestamp string
}

// ApplyBankTransfer returns the optimistic payment state for a bank transfer.
// Bank transfers are not gateway-confirmed, so accounts reconcile them later.
func ApplyBankTransfer(now time.Time) BankTransferResult {
	return BankTransferResult{
		PaymentResult:    PaymentResultVerifying,
		InternalStatus:   StatusPaid,
		PaymentTimestamp: now.UTC().Format(TimestampLayout),
	}
}
