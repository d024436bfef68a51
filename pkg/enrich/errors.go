package enrich

import "fmt"

// ErrorKind classifies enrichment failures so callers inspect
// structured fields instead of matching on message text.
type ErrorKind string

// Enrichment failure kinds
const (
	// ErrKindNetwork covers transport failures, timeouts, and non-2xx
	// API responses.
	ErrKindNetwork ErrorKind = "network"
	// ErrKindMalformed means the model reply was not a parseable JSON
	// object of the requested schema.
	ErrKindMalformed ErrorKind = "malformed_response"
	// ErrKindMissingField means a required field was absent or empty.
	ErrKindMissingField ErrorKind = "missing_field"
	// ErrKindLength means a field exceeded its documented length bound.
	ErrKindLength ErrorKind = "length"
)

// Error is a typed enrichment failure.
type Error struct {
	Kind  ErrorKind
	Field string // set for missing-field and length errors
	Err   error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("enrichment %s (%s): %v", e.Kind, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("enrichment %s: %s", e.Kind, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("enrichment %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("enrichment %s", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func missingField(field string) *Error {
	return &Error{Kind: ErrKindMissingField, Field: field}
}

func lengthError(field string) *Error {
	return &Error{Kind: ErrKindLength, Field: field}
}
