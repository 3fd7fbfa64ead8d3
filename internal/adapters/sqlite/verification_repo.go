package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/intake/internal/ports/secondary"
)

// VerificationRepository implements secondary.VerificationRepository with SQLite.
type VerificationRepository struct {
	db *sql.DB
}

// NewVerificationRepository creates a new SQLite verification repository.
func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create persists a verification result and fills in its ID.
func (r *VerificationRepository) Create(ctx context.Context, record *secondary.VerificationRecord) error {
	var overall sql.NullString
	if record.OverallResult != "" {
		overall = sql.NullString{String: record.OverallResult, Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO id_verifications (instruction_ref, provider, overall_result, raw_response) VALUES (?, ?, ?, ?)",
		record.InstructionRef, record.Provider, overall, record.RawResponse,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read verification id: %w", err)
	}
	record.ID = id

	return nil
}

// ListByInstruction returns every verification for an instruction, newest first.
func (r *VerificationRepository) ListByInstruction(ctx context.Context, ref string) ([]*secondary.VerificationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, instruction_ref, provider, overall_result, raw_response, created_at
		 FROM id_verifications WHERE instruction_ref = ? ORDER BY id DESC`,
		ref,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list verifications: %w", err)
	}
	defer rows.Close()

	var records []*secondary.VerificationRecord
	for rows.Next() {
		var (
			overall   sql.NullString
			createdAt time.Time
		)
		record := &secondary.VerificationRecord{}
		if err := rows.Scan(&record.ID, &record.InstructionRef, &record.Provider, &overall, &record.RawResponse, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan verification: %w", err)
		}
		record.OverallResult = overall.String
		record.CreatedAt = createdAt.Format(time.RFC3339)
		records = append(records, record)
	}

	return records, rows.Err()
}

// Ensure VerificationRepository implements the interface
var _ secondary.VerificationRepository = (*VerificationRepository)(nil)
