package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/store"
)

// ProblemLogAppendTask writes one accepted attempt to the problem log
// history. The append is idempotent at the store level, so the task is safe
// to replay after a crash or a stuck-task reset.
type ProblemLogAppendTask struct {
	baseTask
	logs   store.ProblemLogStore
	logger *slog.Logger
}

// NewProblemLogAppendTask creates a task that will append the given log
// record when executed.
func NewProblemLogAppendTask(
	record *domain.ProblemLog,
	logs store.ProblemLogStore,
	logger *slog.Logger,
) (*ProblemLogAppendTask, error) {
	if logs == nil {
		panic("problem log store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("invalid problem log: %w", err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal problem log payload: %w", err)
	}

	return &ProblemLogAppendTask{
		baseTask: newBaseTask(TaskTypeProblemLogAppend, payload),
		logs:     logs,
		logger:   logger.With("component", "problem_log_append_task"),
	}, nil
}

// Ensure ProblemLogAppendTask implements the Task interface
var _ Task = (*ProblemLogAppendTask)(nil)

// Execute appends the log record carried in the payload.
func (t *ProblemLogAppendTask) Execute(ctx context.Context) error {
	return appendProblemLog(ctx, t.logs, t.payload)
}

func appendProblemLog(ctx context.Context, logs store.ProblemLogStore, payload []byte) error {
	var record domain.ProblemLog
	if err := json.Unmarshal(payload, &record); err != nil {
		return fmt.Errorf("failed to unmarshal problem log payload: %w", err)
	}

	if err := logs.Append(ctx, &record); err != nil {
		return fmt.Errorf("failed to append problem log: %w", err)
	}
	return nil
}

// ProblemLogTaskFactory creates problem log append tasks from event
// payloads and provides the executor used to re-arm recovered tasks.
type ProblemLogTaskFactory struct {
	logs   store.ProblemLogStore
	logger *slog.Logger
}

// NewProblemLogTaskFactory creates a factory bound to the given store.
func NewProblemLogTaskFactory(logs store.ProblemLogStore, logger *slog.Logger) *ProblemLogTaskFactory {
	if logs == nil {
		panic("problem log store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProblemLogTaskFactory{
		logs:   logs,
		logger: logger,
	}
}

// CreateTask builds a ProblemLogAppendTask from a serialized log record.
func (f *ProblemLogTaskFactory) CreateTask(payload json.RawMessage) (Task, error) {
	var record domain.ProblemLog
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal problem log payload: %w", err)
	}
	return NewProblemLogAppendTask(&record, f.logs, f.logger)
}

// Executor returns the function used to run recovered tasks of this type.
func (f *ProblemLogTaskFactory) Executor() Executor {
	return func(ctx context.Context, payload []byte) error {
		return appendProblemLog(ctx, f.logs, payload)
	}
}
