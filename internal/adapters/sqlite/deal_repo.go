package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/intake/internal/ports/secondary"
)

// DealRepository implements secondary.DealRepository with SQLite.
type DealRepository struct {
	db *sql.DB
}

// NewDealRepository creates a new SQLite deal repository.
func NewDealRepository(db *sql.DB) *DealRepository {
	return &DealRepository{db: db}
}

const dealSelect = `SELECT deal_id, prospect_id, linked_prospect_id, passcode, amount, area_of_work,
	service_description, pitched_by, status, instruction_ref, created_at FROM deals`

// GetByPasscodeIncludingLinked finds the newest deal for a passcode whose
// prospect or linked prospect matches. An empty prospectID matches any prospect.
func (r *DealRepository) GetByPasscodeIncludingLinked(ctx context.Context, passcode, prospectID string) (*secondary.DealRecord, error) {
	row := r.db.QueryRowContext(ctx,
		dealSelect+` WHERE passcode = ? AND (? = '' OR prospect_id = ? OR linked_prospect_id = ?)
		ORDER BY created_at DESC, deal_id DESC LIMIT 1`,
		passcode, prospectID, prospectID, prospectID,
	)
	deal, err := scanDeal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deal by passcode: %w", err)
	}
	return deal, nil
}

// GetLatest returns the newest deal for a prospect.
func (r *DealRepository) GetLatest(ctx context.Context, prospectID string) (*secondary.DealRecord, error) {
	row := r.db.QueryRowContext(ctx,
		dealSelect+" WHERE prospect_id = ? ORDER BY created_at DESC, deal_id DESC LIMIT 1",
		prospectID,
	)
	deal, err := scanDeal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest deal: %w", err)
	}
	return deal, nil
}

// LinkInstruction records the instruction a deal became.
func (r *DealRepository) LinkInstruction(ctx context.Context, dealID int64, ref string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE deals SET instruction_ref = ? WHERE deal_id = ?", ref, dealID)
	if err != nil {
		return fmt.Errorf("failed to link deal: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("deal %d: %w", dealID, secondary.ErrNotFound)
	}
	return nil
}

// CloseForInstruction closes every open deal linked to the instruction.
func (r *DealRepository) CloseForInstruction(ctx context.Context, ref string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE deals SET status = ? WHERE instruction_ref = ? AND status = ?",
		secondary.DealStatusClosed, ref, secondary.DealStatusOpen,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close deals: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

func scanDeal(row interface{ Scan(...any) error }) (*secondary.DealRecord, error) {
	var (
		linked      sql.NullString
		amount      sql.NullFloat64
		areaOfWork  sql.NullString
		description sql.NullString
		pitchedBy   sql.NullString
		instrRef    sql.NullString
		createdAt   time.Time
	)

	deal := &secondary.DealRecord{}
	err := row.Scan(&deal.DealID, &deal.ProspectID, &linked, &deal.Passcode, &amount, &areaOfWork,
		&description, &pitchedBy, &deal.Status, &instrRef, &createdAt)
	if err != nil {
		return nil, err
	}

	deal.LinkedProspectID = linked.String
	deal.Amount = amount.Float64
	deal.AreaOfWork = areaOfWork.String
	deal.ServiceDescription = description.String
	deal.PitchedBy = pitchedBy.String
	deal.InstructionRef = instrRef.String
	deal.CreatedAt = createdAt.Format(time.RFC3339)

	return deal, nil
}

// Ensure DealRepository implements the interface
var _ secondary.DealRepository = (*DealRepository)(nil)
