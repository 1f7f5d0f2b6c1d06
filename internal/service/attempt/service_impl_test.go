package attempt

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/domain/proficiency"
	"github.com/phrazzld/mastery-api/internal/domain/review"
	"github.com/phrazzld/mastery-api/internal/events"
	"github.com/phrazzld/mastery-api/internal/service/commitment"
	"github.com/phrazzld/mastery-api/internal/store"
	"github.com/phrazzld/mastery-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDriver satisfies database/sql with no-op transactions so the service
// can be exercised against in-memory stores.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func init() {
	sql.Register("attempt-stub", stubDriver{})
}

// fakeStateStore holds at most one user's state for one exercise, which is
// all the service touches per submission. Canned errors are consumed in
// order, one per Create or Update call.
type fakeStateStore struct {
	mu          sync.Mutex
	state       *domain.UserExercise
	createErrs  []error
	updateErrs  []error
	getCalls    int
	createCalls int
	updateCalls int
}

func (s *fakeStateStore) Get(_ context.Context, userID uuid.UUID, exercise string) (*domain.UserExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.state == nil || s.state.UserID != userID || s.state.Exercise != exercise {
		return nil, store.ErrUserExerciseNotFound
	}
	return s.state.Clone(), nil
}

func (s *fakeStateStore) GetAllForUser(context.Context, uuid.UUID) ([]*domain.UserExercise, error) {
	return nil, nil
}

func (s *fakeStateStore) Create(_ context.Context, ue *domain.UserExercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return err
		}
	}
	s.state = ue.Clone()
	return nil
}

func (s *fakeStateStore) Update(_ context.Context, ue *domain.UserExercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if len(s.updateErrs) > 0 {
		err := s.updateErrs[0]
		s.updateErrs = s.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	s.state = ue.Clone()
	return nil
}

func (s *fakeStateStore) WithTx(*sql.Tx) store.UserExerciseStore { return s }

type fakeCatalog struct {
	exercises map[string]*domain.Exercise
}

func (c *fakeCatalog) Exercise(_ context.Context, name string) (*domain.Exercise, error) {
	e, ok := c.exercises[name]
	if !ok {
		return nil, errors.New("exercise not found")
	}
	return e, nil
}

type fakeCommitments struct {
	verifyErr error
}

func (c *fakeCommitments) Issue(context.Context, commitment.Problem) (string, error) {
	return "token", nil
}

func (c *fakeCommitments) Verify(context.Context, string, commitment.Problem) (*commitment.Claims, error) {
	if c.verifyErr != nil {
		return nil, c.verifyErr
	}
	return &commitment.Claims{}, nil
}

type fakeEmitter struct {
	mu      sync.Mutex
	events  []*events.TaskRequestEvent
	emitErr error
}

func (e *fakeEmitter) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.emitErr
}

func (e *fakeEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeInvalidator struct {
	mu    sync.Mutex
	users []uuid.UUID
}

func (i *fakeInvalidator) Invalidate(userID uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.users = append(i.users, userID)
}

var testNow = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc         *serviceImpl
	states      *fakeStateStore
	commitments *fakeCommitments
	emitter     *fakeEmitter
	invalidator *fakeInvalidator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := sql.Open("attempt-stub", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	live, err := domain.NewExercise("adding_fractions", nil, false)
	require.NoError(t, err)
	retired, err := domain.NewExercise("old_exponents", nil, false)
	require.NoError(t, err)
	retired.Live = false

	h := &harness{
		states:      &fakeStateStore{},
		commitments: &fakeCommitments{},
		emitter:     &fakeEmitter{},
		invalidator: &fakeInvalidator{},
	}
	h.svc = &serviceImpl{
		db:     db,
		states: h.states,
		catalog: &fakeCatalog{exercises: map[string]*domain.Exercise{
			live.Name:    live,
			retired.Name: retired,
		}},
		commitments: h.commitments,
		model:       proficiency.NewDefaultModel(),
		scheduler:   review.NewDefaultScheduler(),
		points:      NewStandardPointCalculator(),
		emitter:     h.emitter,
		invalidator: h.invalidator,
		locks:       newKeyLock(8),
		timeFunc:    func() time.Time { return testNow },
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h
}

func (h *harness) seedState(t *testing.T, userID uuid.UUID, mutate func(ue *domain.UserExercise)) {
	t.Helper()
	ue, err := domain.NewUserExercise(userID, "adding_fractions")
	require.NoError(t, err)
	if mutate != nil {
		mutate(ue)
	}
	h.states.state = ue
}

func submission(userID uuid.UUID, problemNumber int) AttemptSubmission {
	return AttemptSubmission{
		UserID:        userID,
		Exercise:      "adding_fractions",
		ProblemNumber: problemNumber,
		AttemptNumber: 1,
		Completed:     true,
		ContentSHA1:   "8843d7f92416211de9ebb963ff4ce28125932878",
		Seed:          "deadbeefcafe0123",
		Commitment:    "token",
	}
}

func TestSubmitAttemptFirstContactCreatesState(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()

	result, err := h.svc.SubmitAttempt(context.Background(), submission(userID, 1))
	require.NoError(t, err)

	assert.True(t, result.Correct)
	assert.Equal(t, 1, result.State.TotalDone)
	assert.Equal(t, 1, result.State.TotalCorrect)
	assert.Equal(t, 1, result.State.Streak)
	assert.InDelta(t, 1.0/7.0, result.State.Progress, 1e-9)
	assert.Equal(t, 5, result.PointsEarned)
	assert.False(t, result.EarnedProficiency)
	assert.Equal(t, 1, h.states.createCalls)
	assert.Equal(t, 0, h.states.updateCalls)

	assert.Equal(t, []string{events.EventTypeProblemLogAppend, events.EventTypeAttemptRecorded}, h.emitter.types())
	assert.Equal(t, []uuid.UUID{userID}, h.invalidator.users)
}

func TestSubmitAttemptValidation(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	tests := []struct {
		name   string
		mutate func(sub *AttemptSubmission)
	}{
		{"missing user", func(sub *AttemptSubmission) { sub.UserID = uuid.Nil }},
		{"missing exercise", func(sub *AttemptSubmission) { sub.Exercise = "" }},
		{"zero problem number", func(sub *AttemptSubmission) { sub.ProblemNumber = 0 }},
		{"zero attempt number", func(sub *AttemptSubmission) { sub.AttemptNumber = 0 }},
		{"negative hints", func(sub *AttemptSubmission) { sub.CountHints = -1 }},
		{"negative time taken", func(sub *AttemptSubmission) { sub.TimeTaken = -time.Second }},
		{"missing content hash", func(sub *AttemptSubmission) { sub.ContentSHA1 = "" }},
		{"missing seed", func(sub *AttemptSubmission) { sub.Seed = "" }},
		{"missing commitment", func(sub *AttemptSubmission) { sub.Commitment = "" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			sub := submission(userID, 1)
			tt.mutate(&sub)

			_, err := h.svc.SubmitAttempt(context.Background(), sub)
			kind, ok := domain.AttemptErrorKindOf(err)
			require.True(t, ok, "expected an attempt rejection, got %v", err)
			assert.Equal(t, domain.AttemptErrorInvalid, kind)
			assert.Empty(t, h.emitter.types(), "rejected submissions must not emit events")
		})
	}
}

func TestSubmitAttemptRejectsBadCommitment(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.commitments.verifyErr = commitment.ErrCommitmentMismatch

	_, err := h.svc.SubmitAttempt(context.Background(), submission(uuid.New(), 1))

	kind, ok := domain.AttemptErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.AttemptErrorInvalid, kind)
	assert.True(t, domain.IsQuietAttemptError(err))
	assert.Zero(t, h.states.getCalls, "a rejected commitment must not touch state")
	assert.Empty(t, h.emitter.types())
}

func TestSubmitAttemptUnknownExercise(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	sub := submission(uuid.New(), 1)
	sub.Exercise = "imaginary_numbers"

	_, err := h.svc.SubmitAttempt(context.Background(), sub)

	kind, ok := domain.AttemptErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.AttemptErrorCatalogLookup, kind)
}

func TestSubmitAttemptRejectsRetiredExercise(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	sub := submission(uuid.New(), 1)
	sub.Exercise = "old_exponents"

	_, err := h.svc.SubmitAttempt(context.Background(), sub)

	kind, ok := domain.AttemptErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.AttemptErrorCatalogLookup, kind)
}

func TestSubmitAttemptOutOfOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 4
	})

	_, err := h.svc.SubmitAttempt(context.Background(), submission(userID, 3))

	kind, ok := domain.AttemptErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.AttemptErrorOutOfOrder, kind)
	assert.True(t, domain.IsQuietAttemptError(err), "stale tabs are rejected quietly")
	assert.Zero(t, h.states.updateCalls)
	assert.Empty(t, h.emitter.types())
	assert.Equal(t, 4, h.states.state.TotalDone, "rejected submissions must not mutate state")
}

func TestSubmitAttemptAdminBypassesOrdering(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 4
	})

	sub := submission(userID, 3)
	sub.Admin = true

	result, err := h.svc.SubmitAttempt(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, 5, result.State.TotalDone)
}

func TestSubmitAttemptRetriesOnceOnConflict(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 2
	})
	h.states.updateErrs = []error{store.ErrConflict}

	result, err := h.svc.SubmitAttempt(context.Background(), submission(userID, 3))
	require.NoError(t, err)

	assert.Equal(t, 2, h.states.updateCalls)
	assert.Equal(t, 3, result.State.TotalDone)
}

func TestSubmitAttemptPersistentConflict(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 2
	})
	h.states.updateErrs = []error{store.ErrConflict, store.ErrConflict}

	_, err := h.svc.SubmitAttempt(context.Background(), submission(userID, 3))

	kind, ok := domain.AttemptErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.AttemptErrorConflict, kind)
	assert.Equal(t, 2, h.states.updateCalls, "a conflict is retried exactly once")
	assert.Empty(t, h.emitter.types())
}

func TestSubmitAttemptCreateRaceRetriesAsConflict(t *testing.T) {
	t.Parallel()

	// Two first attempts race on the insert; the loser must reload and
	// land on the update path or, as here, create cleanly on retry.
	h := newHarness(t)
	h.states.createErrs = []error{store.ErrDuplicate}

	result, err := h.svc.SubmitAttempt(context.Background(), submission(uuid.New(), 1))
	require.NoError(t, err)

	assert.Equal(t, 2, h.states.createCalls)
	assert.Equal(t, 1, result.State.TotalDone)
}

func TestSubmitAttemptWrongAnswerResetsStreak(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 3
		ue.TotalCorrect = 3
		ue.Streak = 3
		ue.LongestStreak = 3
		ue.Progress = 0.6
	})

	sub := submission(userID, 4)
	sub.Completed = false

	result, err := h.svc.SubmitAttempt(context.Background(), sub)
	require.NoError(t, err)

	assert.False(t, result.Correct)
	assert.Zero(t, result.State.Streak)
	assert.InDelta(t, 0.45, result.State.Progress, 1e-9)
	assert.Equal(t, 3, result.State.TotalDone, "an incomplete response does not advance the sequence count")
	assert.Zero(t, result.PointsEarned)
	assert.Equal(t, 3, result.State.LongestStreak)
}

func TestSubmitAttemptCompletionOnLaterAttemptEarnsNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 3
		ue.Streak = 0
		ue.Progress = 0.3
	})

	sub := submission(userID, 4)
	sub.AttemptNumber = 2

	result, err := h.svc.SubmitAttempt(context.Background(), sub)
	require.NoError(t, err)

	assert.False(t, result.Correct)
	assert.Equal(t, 4, result.State.TotalDone)
	assert.Zero(t, result.State.Streak)
	assert.InDelta(t, 0.3, result.State.Progress, 1e-9, "eventual completion neither grows nor decays progress")
	assert.Zero(t, result.PointsEarned)
}

func TestSubmitAttemptCorrectAfterResetEarnsNoPoints(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 3
		ue.TotalCorrect = 2
		ue.Streak = 0
		ue.LongestStreak = 2
		ue.Progress = 0.45
	})

	result, err := h.svc.SubmitAttempt(context.Background(), submission(userID, 4))
	require.NoError(t, err)

	// The streak rebuilds and progress grows, but the problem right after a
	// reset carries no score credit. Only a brand-new exercise's first
	// correct answer is exempt.
	assert.True(t, result.Correct)
	assert.Equal(t, 1, result.State.Streak)
	assert.Greater(t, result.State.Progress, 0.45)
	assert.Zero(t, result.PointsEarned)
}

func TestSubmitAttemptEarnsProficiencyAndSchedulesReview(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 6
		ue.TotalCorrect = 6
		ue.Streak = 6
		ue.LongestStreak = 6
		ue.Progress = 6.0 / 7.0
	})

	sub := submission(userID, 7)
	sub.Suggested = true
	sub.TimeTaken = 3 * time.Second

	result, err := h.svc.SubmitAttempt(context.Background(), sub)
	require.NoError(t, err)

	assert.True(t, result.EarnedProficiency)
	assert.Equal(t, 1.0, result.State.Progress)
	assert.True(t, result.State.Proficient)
	assert.True(t, result.State.ExplicitlyProficient)
	assert.Equal(t, testNow, result.State.ProficientDate)
	assert.True(t, result.ReviewScheduled)
	require.NotNil(t, result.State.ReviewDueAt)
	assert.Equal(t, testNow.Add(24*time.Hour), *result.State.ReviewDueAt)

	// Base 5, suggested bonus 10, fast bonus 5.
	assert.Equal(t, 20, result.PointsEarned)
	assert.True(t, result.Log.EarnedProficiency)
}

func TestSubmitAttemptProficiencyIsEarnedAtMostOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 10
		ue.Streak = 2
		ue.LongestStreak = 7
		ue.Progress = 1.0
		ue.Proficient = true
		ue.ProficientDate = testNow.Add(-48 * time.Hour)
	})

	result, err := h.svc.SubmitAttempt(context.Background(), submission(userID, 11))
	require.NoError(t, err)

	assert.False(t, result.EarnedProficiency)
	assert.Equal(t, testNow.Add(-48*time.Hour), result.State.ProficientDate)
}

func TestSubmitAttemptRejectsOversizeContent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	sub := submission(uuid.New(), 1)
	sub.AttemptContent = strings.Repeat("x", MaxAttemptContentLength+1)

	_, err := h.svc.SubmitAttempt(context.Background(), sub)

	kind, ok := domain.AttemptErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.AttemptErrorInvalid, kind)
	assert.Zero(t, h.states.getCalls, "oversize content is rejected before any state access")
	assert.Empty(t, h.emitter.types())
}

func TestSubmitAttemptEmitterFailureDoesNotFailSubmit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.emitter.emitErr = errors.New("queue closed")

	result, err := h.svc.SubmitAttempt(context.Background(), submission(uuid.New(), 1))

	require.NoError(t, err, "the attempt already committed; effect failures are logged only")
	assert.NotNil(t, result)
}

func TestReportHintBeforeAnyResponseCountsAsWrong(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 2
		ue.Streak = 2
		ue.LongestStreak = 2
		ue.Progress = 0.5
	})

	result, err := h.svc.ReportHint(context.Background(), HintReport{
		UserID:        userID,
		Exercise:      "adding_fractions",
		ProblemNumber: 3,
		AttemptNumber: 0,
		CountHints:    1,
		ContentSHA1:   "8843d7f92416211de9ebb963ff4ce28125932878",
		Seed:          "deadbeefcafe0123",
		Commitment:    "token",
	})
	require.NoError(t, err)

	assert.False(t, result.Correct)
	assert.True(t, result.CostlyHint)
	assert.Zero(t, result.State.Streak)
	assert.InDelta(t, 0.375, result.State.Progress, 1e-9)
	assert.Equal(t, 2, result.State.TotalDone, "a hint is not a completion")
	assert.True(t, result.Log.HintUsed)

	// Hooks see the penalty so badge and goal consumers can tell a costly
	// hint apart from a wrong answer.
	require.Len(t, h.emitter.events, 2)
	var hookEvent task.AttemptEvent
	require.NoError(t, h.emitter.events[1].UnmarshalPayload(&hookEvent))
	assert.True(t, hookEvent.CostlyHint)
}

func TestReportHintAfterResponseLeavesProgressAlone(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	userID := uuid.New()
	h.seedState(t, userID, func(ue *domain.UserExercise) {
		ue.TotalDone = 2
		ue.Streak = 0
		ue.Progress = 0.5
	})

	// The wrong first response already took the penalty; a hint taken
	// afterwards changes nothing further.
	result, err := h.svc.ReportHint(context.Background(), HintReport{
		UserID:        userID,
		Exercise:      "adding_fractions",
		ProblemNumber: 3,
		AttemptNumber: 1,
		CountHints:    1,
		ContentSHA1:   "8843d7f92416211de9ebb963ff4ce28125932878",
		Seed:          "deadbeefcafe0123",
		Commitment:    "token",
	})
	require.NoError(t, err)

	assert.False(t, result.CostlyHint)
	assert.InDelta(t, 0.5, result.State.Progress, 1e-9)
	assert.Equal(t, 2, result.State.TotalDone)
}

func TestReportHintValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.svc.ReportHint(context.Background(), HintReport{
		UserID:        uuid.New(),
		Exercise:      "adding_fractions",
		ProblemNumber: 1,
		CountHints:    0,
		ContentSHA1:   "abc",
		Seed:          "def",
		Commitment:    "token",
	})
	kind, ok := domain.AttemptErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.AttemptErrorInvalid, kind)

	_, err = h.svc.ReportHint(context.Background(), HintReport{
		UserID:        uuid.New(),
		Exercise:      "adding_fractions",
		ProblemNumber: 1,
		AttemptNumber: -1,
		CountHints:    1,
		ContentSHA1:   "abc",
		Seed:          "def",
		Commitment:    "token",
	})
	kind, ok = domain.AttemptErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.AttemptErrorInvalid, kind)
}
