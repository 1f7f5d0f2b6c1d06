package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/mastery-api/internal/domain"
)

// ExerciseStore defines the interface for exercise catalog persistence.
// The mastery core reads the catalog through an immutable snapshot; these
// methods back the snapshot loader and catalog administration.
type ExerciseStore interface {
	// GetByName retrieves an exercise definition.
	// Returns ErrExerciseNotFound if the exercise does not exist.
	GetByName(ctx context.Context, name string) (*domain.Exercise, error)

	// All retrieves every exercise definition.
	All(ctx context.Context) ([]*domain.Exercise, error)

	// Upsert creates or replaces an exercise definition. It handles domain
	// validation internally.
	Upsert(ctx context.Context, exercise *domain.Exercise) error

	// WithTx returns a store bound to the provided transaction.
	WithTx(tx *sql.Tx) ExerciseStore
}
