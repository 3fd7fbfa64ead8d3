// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/ports/secondary"
)

// InstructionRepository implements secondary.InstructionRepository with SQLite.
type InstructionRepository struct {
	db *sql.DB
}

// NewInstructionRepository creates a new SQLite instruction repository.
func NewInstructionRepository(db *sql.DB) *InstructionRepository {
	return &InstructionRepository{db: db}
}

// instructionFields is the stable column order used by every SELECT.
var instructionFields = instruction.Fields()

var instructionSelect = func() string {
	cols := make([]string, 0, len(instructionFields)+3)
	cols = append(cols, "instruction_ref")
	for _, f := range instructionFields {
		cols = append(cols, f.Column())
	}
	cols = append(cols, "created_at", "updated_at")
	return "SELECT " + strings.Join(cols, ", ") + " FROM instructions"
}()

// Get retrieves an instruction by reference. Returns (nil, nil) when absent.
func (r *InstructionRepository) Get(ctx context.Context, ref string) (*instruction.Instruction, error) {
	row := r.db.QueryRowContext(ctx, instructionSelect+" WHERE instruction_ref = ?", ref)
	inst, err := scanInstruction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instruction: %w", err)
	}
	return inst, nil
}

// Upsert updates the supplied fields of an existing instruction or inserts a new one.
// The existence check and the write are separate statements; callers that
// need per-reference serialization provide it above the repository.
func (r *InstructionRepository) Upsert(ctx context.Context, ref string, patch instruction.Patch) (*instruction.Instruction, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM instructions WHERE instruction_ref = ?", ref).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check instruction existence: %w", err)
	}

	fields := make([]instruction.Field, 0, len(patch))
	for f := range patch {
		if f.Column() == "" {
			return nil, fmt.Errorf("field %q is not allow-listed", f)
		}
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	if exists > 0 {
		if err := r.update(ctx, ref, fields, patch); err != nil {
			return nil, err
		}
	} else {
		if err := r.insert(ctx, ref, fields, patch); err != nil {
			return nil, err
		}
	}

	inst, err := r.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("instruction %s vanished after write", ref)
	}
	return inst, nil
}

func (r *InstructionRepository) update(ctx context.Context, ref string, fields []instruction.Field, patch instruction.Patch) error {
	query := "UPDATE instructions SET updated_at = CURRENT_TIMESTAMP"
	args := []any{}

	for _, f := range fields {
		query += ", " + f.Column() + " = ?"
		args = append(args, columnValue(f, patch[f]))
	}

	query += " WHERE instruction_ref = ?"
	args = append(args, ref)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update instruction: %w", err)
	}
	return nil
}

func (r *InstructionRepository) insert(ctx context.Context, ref string, fields []instruction.Field, patch instruction.Patch) error {
	cols := []string{"instruction_ref"}
	placeholders := []string{"?"}
	args := []any{ref}

	for _, f := range fields {
		cols = append(cols, f.Column())
		placeholders = append(placeholders, "?")
		args = append(args, columnValue(f, patch[f]))
	}

	query := fmt.Sprintf("INSERT INTO instructions (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create instruction: %w", err)
	}
	return nil
}

// MarkCompleted sets stage=completed. Calling it twice is harmless.
func (r *InstructionRepository) MarkCompleted(ctx context.Context, ref string) (*instruction.Instruction, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE instructions SET stage = ?, updated_at = CURRENT_TIMESTAMP WHERE instruction_ref = ?",
		string(instruction.StageCompleted), ref,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to complete instruction: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return nil, fmt.Errorf("instruction %s: %w", ref, secondary.ErrNotFound)
	}

	return r.Get(ctx, ref)
}

// columnValue converts a patch value to its stored representation.
// Empty strings are stored as NULL.
func columnValue(f instruction.Field, value string) any {
	if f.IsBool() {
		return value == "true" || value == "1"
	}
	if value == "" {
		return sql.NullString{}
	}
	return value
}

func scanInstruction(row interface{ Scan(...any) error }) (*instruction.Instruction, error) {
	var (
		ref       string
		createdAt time.Time
		updatedAt sql.NullTime
		strs      = make([]sql.NullString, len(instructionFields))
		flags     = make([]bool, len(instructionFields))
	)

	dest := make([]any, 0, len(instructionFields)+3)
	dest = append(dest, &ref)
	for i, f := range instructionFields {
		if f.IsBool() {
			dest = append(dest, &flags[i])
		} else {
			dest = append(dest, &strs[i])
		}
	}
	dest = append(dest, &createdAt, &updatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	inst := &instruction.Instruction{Ref: ref}
	for i, f := range instructionFields {
		if f.IsBool() {
			inst.Set(f, strconv.FormatBool(flags[i]))
			continue
		}
		inst.Set(f, strs[i].String)
	}
	inst.CreatedAt = createdAt.Format(time.RFC3339)
	if updatedAt.Valid {
		inst.UpdatedAt = updatedAt.Time.Format(time.RFC3339)
	}

	return inst, nil
}

// Ensure InstructionRepository implements the interface
var _ secondary.InstructionRepository = (*InstructionRepository)(nil)
