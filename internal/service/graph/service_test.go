package graph_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/catalog"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/domain/proficiency"
	"github.com/phrazzld/mastery-api/internal/domain/review"
	"github.com/phrazzld/mastery-api/internal/service/graph"
	"github.com/phrazzld/mastery-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStateStore serves canned states and counts loads so cache behavior
// can be observed.
type fakeStateStore struct {
	states  []*domain.UserExercise
	err     error
	getAlls int
}

func (s *fakeStateStore) Get(context.Context, uuid.UUID, string) (*domain.UserExercise, error) {
	return nil, store.ErrUserExerciseNotFound
}

func (s *fakeStateStore) GetAllForUser(context.Context, uuid.UUID) ([]*domain.UserExercise, error) {
	s.getAlls++
	return s.states, s.err
}

func (s *fakeStateStore) Create(context.Context, *domain.UserExercise) error { return nil }
func (s *fakeStateStore) Update(context.Context, *domain.UserExercise) error { return nil }
func (s *fakeStateStore) WithTx(*sql.Tx) store.UserExerciseStore             { return s }

func testExercise(t *testing.T, name string, h int, live bool, prereqs ...string) *domain.Exercise {
	t.Helper()
	e, err := domain.NewExercise(name, prereqs, false)
	require.NoError(t, err)
	e.HPosition = h
	e.Live = live
	return e
}

func testSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	snapshot, err := catalog.NewSnapshot([]*domain.Exercise{
		testExercise(t, "addition", 0, true),
		testExercise(t, "subtraction", 1, true, "addition"),
		testExercise(t, "multiplication", 2, true, "subtraction"),
		testExercise(t, "retired_logs", 3, false),
	})
	require.NoError(t, err)
	return snapshot
}

func newService(t *testing.T, states *fakeStateStore) graph.Service {
	t.Helper()
	return graph.NewService(
		states,
		testSnapshot(t),
		proficiency.NewDefaultModel(),
		review.NewDefaultScheduler(),
		proficiency.NewRecentWindowPolicy(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func state(t *testing.T, userID uuid.UUID, exercise string, mutate func(ue *domain.UserExercise)) *domain.UserExercise {
	t.Helper()
	ue, err := domain.NewUserExercise(userID, exercise)
	require.NoError(t, err)
	if mutate != nil {
		mutate(ue)
	}
	return ue
}

func TestGraphClassifiesExercises(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	now := time.Now().UTC()
	due := now.Add(-time.Hour)

	states := &fakeStateStore{states: []*domain.UserExercise{
		state(t, userID, "addition", func(ue *domain.UserExercise) {
			ue.Progress = 1.0
			ue.ProficientDate = now.Add(-72 * time.Hour)
			ue.ReviewDueAt = &due
			ue.LastDone = now.Add(-48 * time.Hour)
		}),
		state(t, userID, "subtraction", func(ue *domain.UserExercise) {
			ue.Progress = 0.3
			ue.TotalDone = 6
			ue.RecentOutcomes = []bool{true, false, false}
			ue.LastDone = now.Add(-time.Hour)
		}),
	}}

	view, err := newService(t, states).Graph(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, []string{"addition"}, view.Proficient)
	assert.Equal(t, []string{"subtraction"}, view.Struggling)
	assert.Equal(t, []string{"addition"}, view.Review)
	assert.Equal(t, 1, view.ReviewsLeft)

	// Subtraction sits on the frontier: not proficient, prerequisite met.
	// Multiplication waits behind it.
	assert.Equal(t, []string{"subtraction"}, view.Suggested)

	// Most recently worked first.
	assert.Equal(t, []string{"subtraction", "addition"}, view.Recent)

	// Retired exercises never appear in the view.
	assert.Nil(t, view.State("retired_logs"))
	require.Len(t, view.Exercises, 3)

	node := view.State("addition")
	require.NotNil(t, node)
	assert.True(t, node.Proficient)
	assert.True(t, node.ReviewDue)
	assert.False(t, node.Suggested)

	node = view.State("multiplication")
	require.NotNil(t, node)
	assert.False(t, node.Suggested)
	assert.Zero(t, node.TotalDone)
}

func TestGraphFreshUserSuggestsOnlyRoots(t *testing.T) {
	t.Parallel()

	states := &fakeStateStore{}
	view, err := newService(t, states).Graph(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Empty(t, view.Proficient)
	assert.Empty(t, view.Struggling)
	assert.Empty(t, view.Review)
	assert.Empty(t, view.Recent)
	assert.Equal(t, []string{"addition"}, view.Suggested)
}

func TestGraphExcludesStrugglingFromReview(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	now := time.Now().UTC()
	due := now.Add(-time.Hour)

	// Proficient in the past but failing recent reviews: the exercise is
	// flagged for renewed practice, not queued for spaced review.
	states := &fakeStateStore{states: []*domain.UserExercise{
		state(t, userID, "addition", func(ue *domain.UserExercise) {
			ue.Progress = 0.4
			ue.ProficientDate = now.Add(-240 * time.Hour)
			ue.ReviewDueAt = &due
			ue.RecentOutcomes = []bool{false, false}
		}),
	}}

	view, err := newService(t, states).Graph(context.Background(), userID)
	require.NoError(t, err)

	assert.Equal(t, []string{"addition"}, view.Struggling)
	assert.Empty(t, view.Review)
	assert.Zero(t, view.ReviewsLeft)
}

func TestGraphCachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	states := &fakeStateStore{}
	svc := newService(t, states)

	first, err := svc.Graph(context.Background(), userID)
	require.NoError(t, err)
	second, err := svc.Graph(context.Background(), userID)
	require.NoError(t, err)

	assert.Same(t, first, second, "a cached view is returned as-is")
	assert.Equal(t, 1, states.getAlls)

	svc.Invalidate(userID)
	_, err = svc.Graph(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, states.getAlls)
}

func TestGraphCacheIsPerUser(t *testing.T) {
	t.Parallel()

	states := &fakeStateStore{}
	svc := newService(t, states)

	_, err := svc.Graph(context.Background(), uuid.New())
	require.NoError(t, err)
	_, err = svc.Graph(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 2, states.getAlls)
}

func TestGraphPropagatesStoreError(t *testing.T) {
	t.Parallel()

	loadErr := errors.New("connection refused")
	states := &fakeStateStore{err: loadErr}

	_, err := newService(t, states).Graph(context.Background(), uuid.New())
	assert.ErrorIs(t, err, loadErr)
}
