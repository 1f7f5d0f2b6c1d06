package catalog

import (
	"context"
	"fmt"

	"github.com/phrazzld/mastery-api/internal/domain"
)

// Source is the slice of the persistence layer the loader needs. It is
// satisfied by store.ExerciseStore.
type Source interface {
	All(ctx context.Context) ([]*domain.Exercise, error)
}

// Load builds a validated Snapshot from the exercise store.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	exercises, err := src.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load exercise catalog: %w", err)
	}

	snapshot, err := NewSnapshot(exercises)
	if err != nil {
		return nil, fmt.Errorf("failed to build exercise catalog: %w", err)
	}
	return snapshot, nil
}
