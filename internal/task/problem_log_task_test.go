package task

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProblemLogStore struct {
	appended []*domain.ProblemLog
	err      error
}

func (s *fakeProblemLogStore) Append(_ context.Context, log *domain.ProblemLog) error {
	if s.err != nil {
		return s.err
	}
	s.appended = append(s.appended, log)
	return nil
}

func (s *fakeProblemLogStore) GetForProblem(context.Context, uuid.UUID, string, int) ([]*domain.ProblemLog, error) {
	return nil, nil
}

func (s *fakeProblemLogStore) GetRecent(context.Context, uuid.UUID, string, int) ([]*domain.ProblemLog, error) {
	return nil, nil
}

func (s *fakeProblemLogStore) WithTx(*sql.Tx) store.ProblemLogStore { return s }

func sampleProblemLog() *domain.ProblemLog {
	return &domain.ProblemLog{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Exercise:      "adding_fractions",
		ProblemNumber: 4,
		AttemptNumber: 1,
		Completed:     true,
		Correct:       true,
		ContentSHA1:   "8843d7f92416211de9ebb963ff4ce28125932878",
		Seed:          "deadbeefcafe0123",
		PointsEarned:  5,
		DoneAt:        time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestProblemLogAppendTaskExecute(t *testing.T) {
	t.Parallel()

	logs := &fakeProblemLogStore{}
	record := sampleProblemLog()

	logTask, err := NewProblemLogAppendTask(record, logs, testLogger())
	require.NoError(t, err)

	assert.Equal(t, TaskTypeProblemLogAppend, logTask.Type())
	assert.Equal(t, TaskStatusPending, logTask.Status())

	require.NoError(t, logTask.Execute(context.Background()))

	require.Len(t, logs.appended, 1)
	assert.Equal(t, record.ID, logs.appended[0].ID)
	assert.Equal(t, record.Exercise, logs.appended[0].Exercise)
	assert.Equal(t, record.ProblemNumber, logs.appended[0].ProblemNumber)
}

func TestNewProblemLogAppendTaskRejectsInvalidRecord(t *testing.T) {
	t.Parallel()

	record := sampleProblemLog()
	record.Exercise = ""

	_, err := NewProblemLogAppendTask(record, &fakeProblemLogStore{}, testLogger())
	assert.ErrorIs(t, err, domain.ErrEmptyLogExercise)
}

func TestProblemLogAppendTaskPropagatesStoreError(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("insert failed")
	logTask, err := NewProblemLogAppendTask(sampleProblemLog(), &fakeProblemLogStore{err: storeErr}, testLogger())
	require.NoError(t, err)

	assert.ErrorIs(t, logTask.Execute(context.Background()), storeErr)
}

func TestProblemLogTaskFactory(t *testing.T) {
	t.Parallel()

	logs := &fakeProblemLogStore{}
	factory := NewProblemLogTaskFactory(logs, testLogger())

	created, err := factory.CreateTask([]byte(`{
		"id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"user_id": "6ba7b811-9dad-11d1-80b4-00c04fd430c8",
		"exercise": "addition",
		"problem_number": 1,
		"attempt_number": 1
	}`))
	require.NoError(t, err)
	require.NoError(t, created.Execute(context.Background()))

	require.Len(t, logs.appended, 1)
	assert.Equal(t, "addition", logs.appended[0].Exercise)

	_, err = factory.CreateTask([]byte(`not json`))
	assert.Error(t, err)
}
