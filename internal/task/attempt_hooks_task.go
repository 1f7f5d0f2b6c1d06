package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AttemptEvent is the payload hooks receive for each accepted attempt.
// It carries the outcome summary rather than full state, so hooks stay
// decoupled from the mastery core.
type AttemptEvent struct {
	UserID            uuid.UUID `json:"user_id"`
	Exercise          string    `json:"exercise"`
	ProblemNumber     int       `json:"problem_number"`
	Completed         bool      `json:"completed"`
	Correct           bool      `json:"correct"`
	CostlyHint        bool      `json:"costly_hint"`
	ReviewMode        bool      `json:"review_mode"`
	PointsEarned      int       `json:"points_earned"`
	EarnedProficiency bool      `json:"earned_proficiency"`
	DoneAt            time.Time `json:"done_at"`
}

// AttemptHook is a post-attempt side effect: goal updates, badge checks,
// activity recording. Hooks run after the state transaction has committed
// and must tolerate replays.
type AttemptHook interface {
	// Name identifies the hook in logs.
	Name() string

	// HandleAttempt processes one accepted attempt.
	HandleAttempt(ctx context.Context, event AttemptEvent) error
}

// AttemptHooksTask dispatches one accepted attempt to every registered
// hook. Hook failures are collected rather than short-circuiting, so one
// broken hook does not starve the others.
type AttemptHooksTask struct {
	baseTask
	hooks  []AttemptHook
	logger *slog.Logger
}

// NewAttemptHooksTask creates a task that will dispatch the given attempt
// event to the hooks when executed.
func NewAttemptHooksTask(
	event AttemptEvent,
	hooks []AttemptHook,
	logger *slog.Logger,
) (*AttemptHooksTask, error) {
	if logger == nil {
		logger = slog.Default()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attempt event: %w", err)
	}

	return &AttemptHooksTask{
		baseTask: newBaseTask(TaskTypeAttemptHooks, payload),
		hooks:    hooks,
		logger:   logger.With("component", "attempt_hooks_task"),
	}, nil
}

// Ensure AttemptHooksTask implements the Task interface
var _ Task = (*AttemptHooksTask)(nil)

// Execute dispatches the attempt event to all hooks.
func (t *AttemptHooksTask) Execute(ctx context.Context) error {
	return dispatchAttemptHooks(ctx, t.hooks, t.logger, t.payload)
}

func dispatchAttemptHooks(
	ctx context.Context,
	hooks []AttemptHook,
	logger *slog.Logger,
	payload []byte,
) error {
	var event AttemptEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal attempt event: %w", err)
	}

	var errs []error
	for _, hook := range hooks {
		if err := hook.HandleAttempt(ctx, event); err != nil {
			logger.Error("attempt hook failed",
				"hook", hook.Name(),
				"user_id", event.UserID,
				"exercise", event.Exercise,
				"error", err)
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// AttemptHooksTaskFactory creates hook dispatch tasks from event payloads
// and provides the executor used to re-arm recovered tasks.
type AttemptHooksTaskFactory struct {
	hooks  []AttemptHook
	logger *slog.Logger
}

// NewAttemptHooksTaskFactory creates a factory bound to the given hooks.
func NewAttemptHooksTaskFactory(hooks []AttemptHook, logger *slog.Logger) *AttemptHooksTaskFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttemptHooksTaskFactory{
		hooks:  hooks,
		logger: logger,
	}
}

// CreateTask builds an AttemptHooksTask from a serialized attempt event.
func (f *AttemptHooksTaskFactory) CreateTask(payload json.RawMessage) (Task, error) {
	var event AttemptEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempt event: %w", err)
	}
	return NewAttemptHooksTask(event, f.hooks, f.logger)
}

// Executor returns the function used to run recovered tasks of this type.
func (f *AttemptHooksTaskFactory) Executor() Executor {
	return func(ctx context.Context, payload []byte) error {
		return dispatchAttemptHooks(ctx, f.hooks, f.logger, payload)
	}
}
