package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/mastery-api/internal/catalog"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/service/commitment"
	"github.com/phrazzld/mastery-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	if kind, ok := domain.AttemptErrorKindOf(err); ok {
		switch kind {
		case domain.AttemptErrorOutOfOrder:
			return http.StatusConflict
		case domain.AttemptErrorInvalid:
			return http.StatusBadRequest
		case domain.AttemptErrorConflict:
			return http.StatusConflict
		case domain.AttemptErrorCatalogLookup:
			return http.StatusNotFound
		}
	}

	switch {
	// Commitment errors
	case errors.Is(err, commitment.ErrExpiredCommitment):
		return http.StatusGone
	case errors.Is(err, commitment.ErrInvalidCommitment),
		errors.Is(err, commitment.ErrCommitmentMismatch):
		return http.StatusBadRequest

	// Catalog errors
	case errors.Is(err, catalog.ErrExerciseNotFound):
		return http.StatusNotFound

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	if kind, ok := domain.AttemptErrorKindOf(err); ok {
		switch kind {
		case domain.AttemptErrorOutOfOrder:
			return "Submission is out of sequence"
		case domain.AttemptErrorInvalid:
			return "Invalid attempt submission"
		case domain.AttemptErrorConflict:
			return "Submission conflicted with a concurrent change, please retry"
		case domain.AttemptErrorCatalogLookup:
			return "Exercise not found"
		}
	}

	switch {
	case errors.Is(err, commitment.ErrExpiredCommitment):
		return "Problem commitment has expired"

	case errors.Is(err, commitment.ErrInvalidCommitment),
		errors.Is(err, commitment.ErrCommitmentMismatch):
		return "Invalid problem commitment"

	case errors.Is(err, catalog.ErrExerciseNotFound),
		errors.Is(err, store.ErrExerciseNotFound):
		return "Exercise not found"

	case errors.Is(err, store.ErrUserExerciseNotFound):
		return "Exercise progress not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrDuplicate):
		return "Conflicting concurrent change"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// Example format: "Key: 'SubmitAttemptRequest.ProblemNumber'
		// Error:Field validation for 'ProblemNumber' failed on the 'min' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too small"
	case "max":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
