package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/mastery-api/internal/catalog"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(name string, h, v int, prereqs ...string) *domain.Exercise {
	e, err := domain.NewExercise(name, prereqs, false)
	if err != nil {
		panic(err)
	}
	e.HPosition = h
	e.VPosition = v
	return e
}

func TestNewSnapshotOrdersByPosition(t *testing.T) {
	t.Parallel()

	snapshot, err := catalog.NewSnapshot([]*domain.Exercise{
		exercise("subtraction", 1, 0, "addition"),
		exercise("addition", 0, 0),
		exercise("multiplication", 1, 1, "addition"),
		exercise("division", 2, 0, "multiplication"),
	})
	require.NoError(t, err)

	var names []string
	for _, e := range snapshot.All() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"addition", "subtraction", "multiplication", "division"}, names)

	assert.Equal(t, 0, snapshot.PositionOf("addition"))
	assert.Equal(t, 3, snapshot.PositionOf("division"))
	assert.Equal(t, snapshot.Len(), snapshot.PositionOf("unknown"), "unknown names sort last")
}

func TestNewSnapshotRejectsCycles(t *testing.T) {
	t.Parallel()

	_, err := catalog.NewSnapshot([]*domain.Exercise{
		exercise("a", 0, 0, "c"),
		exercise("b", 1, 0, "a"),
		exercise("c", 2, 0, "b"),
	})
	assert.ErrorIs(t, err, catalog.ErrCyclicPrerequisites)
}

func TestNewSnapshotRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := catalog.NewSnapshot([]*domain.Exercise{
		exercise("addition", 0, 0),
		exercise("addition", 1, 0),
	})
	assert.ErrorIs(t, err, catalog.ErrDuplicateExercise)
}

func TestNewSnapshotToleratesUnknownPrerequisites(t *testing.T) {
	t.Parallel()

	// A partially published catalog may reference exercises that are not
	// in the set yet.
	snapshot, err := catalog.NewSnapshot([]*domain.Exercise{
		exercise("subtraction", 0, 0, "unpublished_addition"),
	})
	require.NoError(t, err)

	ok, err := snapshot.PrerequisitesSatisfied("subtraction", func(string) bool { return false })
	require.NoError(t, err)
	assert.True(t, ok, "unknown prerequisites count as satisfied")
}

func TestGet(t *testing.T) {
	t.Parallel()

	snapshot, err := catalog.NewSnapshot([]*domain.Exercise{exercise("addition", 0, 0)})
	require.NoError(t, err)

	e, err := snapshot.Get("addition")
	require.NoError(t, err)
	assert.Equal(t, "addition", e.Name)

	_, err = snapshot.Get("missing")
	assert.ErrorIs(t, err, catalog.ErrExerciseNotFound)
}

func TestPrerequisitesSatisfied(t *testing.T) {
	t.Parallel()

	snapshot, err := catalog.NewSnapshot([]*domain.Exercise{
		exercise("addition", 0, 0),
		exercise("subtraction", 1, 0, "addition"),
		exercise("division", 2, 0, "addition", "subtraction"),
	})
	require.NoError(t, err)

	proficient := map[string]bool{"addition": true}
	satisfied := func(name string) bool { return proficient[name] }

	ok, err := snapshot.PrerequisitesSatisfied("subtraction", satisfied)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = snapshot.PrerequisitesSatisfied("division", satisfied)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = snapshot.PrerequisitesSatisfied("missing", satisfied)
	assert.ErrorIs(t, err, catalog.ErrExerciseNotFound)
}

// fakeSource implements Source for loader tests.
type fakeSource struct {
	exercises []*domain.Exercise
	err       error
}

func (s *fakeSource) All(context.Context) ([]*domain.Exercise, error) {
	return s.exercises, s.err
}

func TestLoad(t *testing.T) {
	t.Parallel()

	snapshot, err := catalog.Load(context.Background(), &fakeSource{
		exercises: []*domain.Exercise{exercise("addition", 0, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Len())
}

func TestLoadPropagatesSourceError(t *testing.T) {
	t.Parallel()

	sourceErr := errors.New("connection refused")
	_, err := catalog.Load(context.Background(), &fakeSource{err: sourceErr})
	assert.ErrorIs(t, err, sourceErr)
}
