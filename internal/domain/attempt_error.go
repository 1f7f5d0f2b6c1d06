package domain

import (
	"errors"
	"fmt"
)

// AttemptErrorKind enumerates the ways an attempt submission can fail.
type AttemptErrorKind string

const (
	// AttemptErrorOutOfOrder: the problem number does not continue the
	// user's sequence. Expected in normal operation (stale tabs, replayed
	// requests) and therefore quiet.
	AttemptErrorOutOfOrder AttemptErrorKind = "out_of_order"

	// AttemptErrorInvalid: malformed or missing required fields, including
	// an absent or unverifiable problem commitment.
	AttemptErrorInvalid AttemptErrorKind = "invalid_attempt"

	// AttemptErrorConflict: a concurrent write was detected and the single
	// retry also failed. Transient; the caller may resubmit.
	AttemptErrorConflict AttemptErrorKind = "persistence_conflict"

	// AttemptErrorCatalogLookup: the exercise is unknown to the catalog.
	AttemptErrorCatalogLookup AttemptErrorKind = "catalog_lookup"
)

// AttemptError is the typed result for rejected attempts. Quiet errors are
// client-caused and expected: they are logged at a low level and never
// treated as system faults. No state is mutated and no hooks fire for any
// AttemptError.
type AttemptError struct {
	Kind    AttemptErrorKind
	Quiet   bool
	Message string
	Err     error
}

func (e *AttemptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *AttemptError) Unwrap() error {
	return e.Err
}

// NewOutOfOrderError builds the quiet rejection for out-of-sequence
// submissions.
func NewOutOfOrderError(format string, args ...any) *AttemptError {
	return &AttemptError{
		Kind:    AttemptErrorOutOfOrder,
		Quiet:   true,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewInvalidAttemptError builds the rejection for malformed submissions.
func NewInvalidAttemptError(format string, args ...any) *AttemptError {
	return &AttemptError{
		Kind:    AttemptErrorInvalid,
		Quiet:   true,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewConflictError wraps a persistence conflict that survived the retry.
func NewConflictError(err error) *AttemptError {
	return &AttemptError{
		Kind:    AttemptErrorConflict,
		Message: "concurrent modification detected",
		Err:     err,
	}
}

// NewCatalogLookupError wraps a failed exercise lookup.
func NewCatalogLookupError(exercise string, err error) *AttemptError {
	return &AttemptError{
		Kind:    AttemptErrorCatalogLookup,
		Message: fmt.Sprintf("unknown exercise %q", exercise),
		Err:     err,
	}
}

// AttemptErrorKindOf extracts the kind from an error chain. The second
// return is false when the chain holds no AttemptError.
func AttemptErrorKindOf(err error) (AttemptErrorKind, bool) {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// IsQuietAttemptError reports whether the error chain holds a quiet
// AttemptError.
func IsQuietAttemptError(err error) bool {
	var ae *AttemptError
	return errors.As(err, &ae) && ae.Quiet
}
