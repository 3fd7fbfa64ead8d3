package instruction

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RefPrefix is the fixed prefix of every instruction reference.
const RefPrefix = "HLX"

// ErrInvalidRef is the sentinel wrapped by every reference parse failure.
var ErrInvalidRef = errors.New("invalid instruction reference")

// RefParseError describes why a reference could not be parsed.
type RefParseError struct {
	Raw    string
	Reason string
}

func (e *RefParseError) Error() string {
	return fmt.Sprintf("invalid instruction reference %q: %s", e.Raw, e.Reason)
}

func (e *RefParseError) Unwrap() error { return ErrInvalidRef }

// Ref is a parsed instruction reference of the form HLX-<prospectId>-<passcode>.
type Ref struct {
	Raw        string
	ProspectID string
	Passcode   string
}

// String returns the reference as originally supplied.
func (r Ref) String() string { return r.Raw }

// ParseRef parses an instruction reference.
// The prospect id must be all digits; the passcode is everything after the
// second dash and may itself contain dashes.
func ParseRef(raw string) (Ref, error) {
	parts := strings.SplitN(raw, "-", 3)
	if len(parts) != 3 {
		return Ref{}, &RefParseError{Raw: raw, Reason: "expected HLX-<prospectId>-<passcode>"}
	}
	if parts[0] != RefPrefix {
		return Ref{}, &RefParseError{Raw: raw, Reason: "missing HLX prefix"}
	}
	if parts[1] == "" {
		return Ref{}, &RefParseError{Raw: raw, Reason: "empty prospect id"}
	}
	if _, err := strconv.ParseUint(parts[1], 10, 64); err != nil {
		return Ref{}, &RefParseError{Raw: raw, Reason: "prospect id must be numeric"}
	}
	if parts[2] == "" {
		return Ref{}, &RefParseError{Raw: raw, Reason: "empty passcode"}
	}
	return Ref{Raw: raw, ProspectID: parts[1], Passcode: parts[2]}, nil
}

// BuildRef formats a reference from its parts.
func BuildRef(prospectID, passcode string) string {
	return fmt.Sprintf("%s-%s-%s", RefPrefix, prospectID, passcode)
}
