package instruction

import (
	"errors"
	"fmt"
)

// ErrValidation marks errors caused by a malformed request.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a request field that could not be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// RequireRef checks that an instruction reference was supplied.
func RequireRef(ref string) error {
	if ref == "" {
		return &ValidationError{Field: "instructionRef", Message: "is required"}
	}
	return nil
}

// ParseStageHint validates an optional client-supplied stage.
func ParseStageHint(raw string) (Stage, error) {
	if raw == "" {
		return "", nil
	}
	s := Stage(raw)
	if !s.Valid() {
		return "", &ValidationError{Field: "stage", Message: fmt.Sprintf("unknown stage %q", raw)}
	}
	return s, nil
}
