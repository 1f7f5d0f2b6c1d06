package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/domain"
)

// UserExerciseStore defines the interface for per-user exercise state
// persistence. State rows carry a version column; Update performs an
// optimistic-concurrency check against it.
type UserExerciseStore interface {
	// Get retrieves the state for a user and exercise pair.
	// Returns ErrUserExerciseNotFound if no state exists yet.
	Get(ctx context.Context, userID uuid.UUID, exercise string) (*domain.UserExercise, error)

	// GetAllForUser retrieves every exercise state the user has, in no
	// particular order. Returns an empty slice for a fresh user.
	GetAllForUser(ctx context.Context, userID uuid.UUID) ([]*domain.UserExercise, error)

	// Create saves new state. Returns ErrDuplicate if state already exists
	// for the pair, and validation errors from the domain entity.
	Create(ctx context.Context, ue *domain.UserExercise) error

	// Update modifies existing state if and only if the stored version
	// matches ue.Version; on success the stored version is incremented.
	// Returns ErrConflict when the versions do not match and
	// ErrUserExerciseNotFound when no row exists.
	Update(ctx context.Context, ue *domain.UserExercise) error

	// WithTx returns a store bound to the provided transaction so multiple
	// operations can commit atomically. The transaction is created and
	// managed by the caller (typically a service).
	WithTx(tx *sql.Tx) UserExerciseStore
}
