package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/mastery-api/internal/events"
)

// TaskFactory builds a concrete task from an event payload.
type TaskFactory interface {
	CreateTask(payload json.RawMessage) (Task, error)
}

// TaskSubmitter accepts tasks for background execution. Satisfied by
// *TaskRunner.
type TaskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler implements the events.EventHandler interface.
// It routes each event to the factory registered for its type and submits
// the resulting task to the runner. Events with no registered factory are
// ignored so new event types can be emitted before a handler ships.
type TaskFactoryEventHandler struct {
	factories map[string]TaskFactory
	runner    TaskSubmitter
	logger    *slog.Logger
}

// NewTaskFactoryEventHandler creates an event handler that dispatches
// events through the given factories to the task runner.
func NewTaskFactoryEventHandler(
	runner TaskSubmitter,
	logger *slog.Logger,
) *TaskFactoryEventHandler {
	if runner == nil {
		panic("task runner cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskFactoryEventHandler{
		factories: make(map[string]TaskFactory),
		runner:    runner,
		logger:    logger.With("component", "task_factory_event_handler"),
	}
}

// RegisterFactory maps an event type to the factory that builds its tasks.
func (h *TaskFactoryEventHandler) RegisterFactory(eventType string, factory TaskFactory) {
	h.factories[eventType] = factory
}

// HandleEvent processes events by creating and submitting tasks.
func (h *TaskFactoryEventHandler) HandleEvent(
	ctx context.Context,
	event *events.TaskRequestEvent,
) error {
	factory, ok := h.factories[event.Type]
	if !ok {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	t, err := factory.CreateTask(event.Payload)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"event_type", event.Type,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.runner.Submit(ctx, t); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", t.ID(),
			"event_type", event.Type,
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Debug("task created and submitted",
		"task_id", t.ID(),
		"task_type", t.Type(),
		"event_id", event.ID)
	return nil
}

// Ensure TaskFactoryEventHandler implements events.EventHandler
var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)
