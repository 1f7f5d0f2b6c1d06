package api_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/phrazzld/mastery-api/internal/api"
	"github.com/phrazzld/mastery-api/internal/api/shared"
	"github.com/phrazzld/mastery-api/internal/catalog"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/service/commitment"
	"github.com/phrazzld/mastery-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"out of order", domain.NewOutOfOrderError("expected %d", 3), http.StatusConflict},
		{"invalid attempt", domain.NewInvalidAttemptError("seed missing"), http.StatusBadRequest},
		{"version conflict", domain.NewConflictError(store.ErrConflict), http.StatusConflict},
		{"catalog lookup", domain.NewCatalogLookupError("addition", catalog.ErrExerciseNotFound), http.StatusNotFound},
		{"expired commitment", commitment.ErrExpiredCommitment, http.StatusGone},
		{"invalid commitment", commitment.ErrInvalidCommitment, http.StatusBadRequest},
		{"commitment mismatch", commitment.ErrCommitmentMismatch, http.StatusBadRequest},
		{"exercise not found", catalog.ErrExerciseNotFound, http.StatusNotFound},
		{"store not found", store.ErrUserExerciseNotFound, http.StatusNotFound},
		{"store conflict", store.ErrConflict, http.StatusConflict},
		{"store duplicate", store.ErrDuplicate, http.StatusConflict},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, api.MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "An unexpected error occurred"},
		{"out of order", domain.NewOutOfOrderError("expected %d", 3), "Submission is out of sequence"},
		{"catalog lookup", domain.NewCatalogLookupError("addition", catalog.ErrExerciseNotFound), "Exercise not found"},
		{"expired commitment", commitment.ErrExpiredCommitment, "Problem commitment has expired"},
		{"internal details hidden", errors.New("pq: connection refused host=10.0.0.1"), "An unexpected error occurred"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, api.GetSafeErrorMessage(tt.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := shared.Validate.Struct(api.SubmitAttemptRequest{})
	msg := api.SanitizeValidationError(err)

	assert.Contains(t, msg, "Invalid")
	assert.NotContains(t, msg, "SubmitAttemptRequest", "struct names never leak to clients")

	assert.Equal(t, "Validation error", api.SanitizeValidationError(errors.New("boom")))
}
