package task

import (
	"context"

	"github.com/google/uuid"
)

// baseTask carries the identity and payload shared by all concrete tasks.
// Concrete tasks embed it and provide Execute.
type baseTask struct {
	id       uuid.UUID
	taskType string
	payload  []byte
	status   TaskStatus
}

func newBaseTask(taskType string, payload []byte) baseTask {
	return baseTask{
		id:       uuid.New(),
		taskType: taskType,
		payload:  payload,
		status:   TaskStatusPending,
	}
}

// ID returns the task's unique identifier
func (t *baseTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *baseTask) Type() string {
	return t.taskType
}

// Payload returns the task data as a byte slice
func (t *baseTask) Payload() []byte {
	return t.payload
}

// Status returns the current task status
func (t *baseTask) Status() TaskStatus {
	return t.status
}

// Execute must be shadowed by the embedding task.
func (t *baseTask) Execute(ctx context.Context) error {
	panic("Execute not implemented")
}
