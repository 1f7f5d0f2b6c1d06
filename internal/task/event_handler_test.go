package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/phrazzld/mastery-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFactory struct {
	task    Task
	err     error
	payload json.RawMessage
}

func (f *fakeFactory) CreateTask(payload json.RawMessage) (Task, error) {
	f.payload = payload
	if f.err != nil {
		return nil, f.err
	}
	return f.task, nil
}

type fakeSubmitter struct {
	submitted []Task
	err       error
}

func (s *fakeSubmitter) Submit(_ context.Context, task Task) error {
	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, task)
	return nil
}

func newEvent(t *testing.T, eventType string) *events.TaskRequestEvent {
	t.Helper()
	event, err := events.NewTaskRequestEvent(eventType, map[string]string{"exercise": "addition"})
	require.NoError(t, err)
	return event
}

func TestHandleEventRoutesToRegisteredFactory(t *testing.T) {
	t.Parallel()

	submitter := &fakeSubmitter{}
	handler := NewTaskFactoryEventHandler(submitter, testLogger())

	created := newQueueTask()
	factory := &fakeFactory{task: created}
	handler.RegisterFactory(events.EventTypeAttemptRecorded, factory)

	event := newEvent(t, events.EventTypeAttemptRecorded)
	require.NoError(t, handler.HandleEvent(context.Background(), event))

	assert.JSONEq(t, string(event.Payload), string(factory.payload))
	require.Len(t, submitter.submitted, 1)
	assert.Same(t, Task(created), submitter.submitted[0])
}

func TestHandleEventIgnoresUnknownType(t *testing.T) {
	t.Parallel()

	submitter := &fakeSubmitter{}
	handler := NewTaskFactoryEventHandler(submitter, testLogger())

	err := handler.HandleEvent(context.Background(), newEvent(t, "unreleased_event"))

	assert.NoError(t, err)
	assert.Empty(t, submitter.submitted)
}

func TestHandleEventPropagatesFactoryError(t *testing.T) {
	t.Parallel()

	factoryErr := errors.New("malformed payload")
	submitter := &fakeSubmitter{}
	handler := NewTaskFactoryEventHandler(submitter, testLogger())
	handler.RegisterFactory(events.EventTypeProblemLogAppend, &fakeFactory{err: factoryErr})

	err := handler.HandleEvent(context.Background(), newEvent(t, events.EventTypeProblemLogAppend))

	assert.ErrorIs(t, err, factoryErr)
	assert.Empty(t, submitter.submitted)
}

func TestHandleEventPropagatesSubmitError(t *testing.T) {
	t.Parallel()

	submitErr := errors.New("runner stopped")
	handler := NewTaskFactoryEventHandler(&fakeSubmitter{err: submitErr}, testLogger())
	handler.RegisterFactory(events.EventTypeProblemLogAppend, &fakeFactory{task: newQueueTask()})

	err := handler.HandleEvent(context.Background(), newEvent(t, events.EventTypeProblemLogAppend))

	assert.ErrorIs(t, err, submitErr)
}
