// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
	"time"

	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/core/outbox"
)

// ErrNotFound is returned when a write targets a record that does not exist.
// Reads return (nil, nil) for missing records instead.
var ErrNotFound = errors.New("not found")

// InstructionRepository defines the secondary port for instruction persistence.
type InstructionRepository interface {
	// Get retrieves an instruction by reference. Returns (nil, nil) when absent.
	Get(ctx context.Context, ref string) (*instruction.Instruction, error)

	// Upsert updates the supplied fields of an existing instruction, or inserts
	// a new one seeded with ref and the fields. Returns the post-write row.
	Upsert(ctx context.Context, ref string, patch instruction.Patch) (*instruction.Instruction, error)

	// MarkCompleted sets stage=completed. Calling it twice is harmless.
	// Returns ErrNotFound when the instruction does not exist.
	MarkCompleted(ctx context.Context, ref string) (*instruction.Instruction, error)
}

// DealRepository defines the secondary port for deal lookups.
// Deals are owned by the pitch subsystem; intake only reads them, links
// them to an instruction and closes them.
type DealRepository interface {
	// GetByPasscodeIncludingLinked finds the most recent deal for a passcode
	// whose prospect or linked prospect matches. Returns (nil, nil) when absent.
	GetByPasscodeIncludingLinked(ctx context.Context, passcode, prospectID string) (*DealRecord, error)

	// GetLatest returns the most recent deal for a prospect. Returns (nil, nil) when absent.
	GetLatest(ctx context.Context, prospectID string) (*DealRecord, error)

	// LinkInstruction records the instruction a deal became.
	LinkInstruction(ctx context.Context, dealID int64, ref string) error

	// CloseForInstruction closes every open deal linked to the instruction.
	CloseForInstruction(ctx context.Context, ref string) (int, error)
}

// DealRecord represents a deal as stored in persistence.
type DealRecord struct {
	DealID             int64
	ProspectID         string
	LinkedProspectID   string
	Passcode           string
	Amount             float64
	AreaOfWork         string
	ServiceDescription string
	PitchedBy          string // initials of the assigned contact
	Status             string // open, closed
	InstructionRef     string
	CreatedAt          string
}

// Deal statuses.
const (
	DealStatusOpen   = "open"
	DealStatusClosed = "closed"
)

// PaymentRepository defines the secondary port for payment persistence.
type PaymentRepository interface {
	// Create persists a new payment. ID must be pre-populated.
	Create(ctx context.Context, payment *PaymentRecord) error

	// GetByIntentID retrieves a payment by gateway intent id. Returns (nil, nil) when absent.
	GetByIntentID(ctx context.Context, intentID string) (*PaymentRecord, error)

	// UpdateStatus records the latest gateway and internal status.
	// Returns ErrNotFound when no payment has the intent id.
	UpdateStatus(ctx context.Context, intentID, status, internalStatus string) error
}

// PaymentRecord represents a payment as stored in persistence.
type PaymentRecord struct {
	ID              string
	PaymentIntentID string
	Amount          int64 // minor units
	Currency        string
	Status          string
	InternalStatus  string
	InstructionRef  string
	Product         string
	CreatedAt       string
	UpdatedAt       string
}

// VerificationRepository stores raw ID-verification responses.
type VerificationRepository interface {
	// Create persists a verification result and fills in its ID.
	Create(ctx context.Context, record *VerificationRecord) error

	// ListByInstruction returns every verification for an instruction, newest first.
	ListByInstruction(ctx context.Context, ref string) ([]*VerificationRecord, error)
}

// VerificationRecord represents one provider response.
type VerificationRecord struct {
	ID             int64
	InstructionRef string
	Provider       string
	OverallResult  string
	RawResponse    string
	CreatedAt      string
}

// OutboxRepository defines the secondary port for the durable task queue.
type OutboxRepository interface {
	// Enqueue persists a queued task. When DedupeKey is set and a non-terminal
	// task with the same key exists, nothing is written and false is returned.
	Enqueue(ctx context.Context, task *OutboxTask) (bool, error)

	// ClaimDue marks up to limit queued tasks due at or before now as sending
	// and returns them, oldest first.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*OutboxTask, error)

	// MarkSent records a successful attempt.
	MarkSent(ctx context.Context, id string) error

	// Fail records a failed attempt. A nil next marks the task terminally
	// failed; otherwise it is queued again for next.
	Fail(ctx context.Context, id string, lastErr string, next *time.Time) error

	// RequeueStale returns sending tasks locked before the cutoff to queued.
	RequeueStale(ctx context.Context, before time.Time) (int, error)

	// List retrieves tasks matching the given filters, newest first.
	List(ctx context.Context, filters OutboxFilters) ([]*OutboxTask, error)
}

// OutboxTask represents a queued side effect as stored in persistence.
type OutboxTask struct {
	ID             string
	Kind           string
	InstructionRef string
	Payload        []byte // JSON
	Status         outbox.Status
	Attempts       int
	MaxAttempts    int
	NextAttemptAt  time.Time
	DedupeKey      string
	LastError      string
	CreatedAt      string
	UpdatedAt      string
}

// OutboxFilters contains filter options for querying outbox tasks.
type OutboxFilters struct {
	Status         outbox.Status
	InstructionRef string
	Limit          int
}
