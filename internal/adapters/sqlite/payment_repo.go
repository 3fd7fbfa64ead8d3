package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/intake/internal/ports/secondary"
)

// PaymentRepository implements secondary.PaymentRepository with SQLite.
type PaymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository creates a new SQLite payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create persists a new payment.
// The record must have ID pre-populated by the service layer.
func (r *PaymentRepository) Create(ctx context.Context, payment *secondary.PaymentRecord) error {
	if payment.ID == "" {
		return fmt.Errorf("payment ID must be pre-populated by service layer")
	}

	var product sql.NullString
	if payment.Product != "" {
		product = sql.NullString{String: payment.Product, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, payment_intent_id, amount, currency, status, internal_status, instruction_ref, product)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.PaymentIntentID, payment.Amount, payment.Currency,
		payment.Status, payment.InternalStatus, payment.InstructionRef, product,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByIntentID retrieves a payment by gateway intent id.
func (r *PaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*secondary.PaymentRecord, error) {
	var (
		product   sql.NullString
		createdAt time.Time
		updatedAt sql.NullTime
	)

	record := &secondary.PaymentRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, payment_intent_id, amount, currency, status, internal_status, instruction_ref, product, created_at, updated_at
		 FROM payments WHERE payment_intent_id = ?`,
		intentID,
	).Scan(&record.ID, &record.PaymentIntentID, &record.Amount, &record.Currency, &record.Status,
		&record.InternalStatus, &record.InstructionRef, &product, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	record.Product = product.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	if updatedAt.Valid {
		record.UpdatedAt = updatedAt.Time.Format(time.RFC3339)
	}

	return record, nil
}

// UpdateStatus records the latest gateway and internal status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, intentID, status, internalStatus string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE payments SET status = ?, internal_status = ?, updated_at = CURRENT_TIMESTAMP WHERE payment_intent_id = ?",
		status, internalStatus, intentID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("payment %s: %w", intentID, secondary.ErrNotFound)
	}

	return nil
}

// Ensure PaymentRepository implements the interface
var _ secondary.PaymentRepository = (*PaymentRepository)(nil)
