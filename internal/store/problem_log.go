package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/domain"
)

// ProblemLogStore defines the interface for the append-only attempt
// history. Appends happen asynchronously after the state commit and must
// be idempotent per (user, exercise, problem number, attempt number) so
// at-least-once task delivery never double-writes history.
type ProblemLogStore interface {
	// Append persists one attempt record. Re-appending a record with the
	// same identity is a no-op, not an error.
	Append(ctx context.Context, log *domain.ProblemLog) error

	// GetForProblem retrieves the logs for one problem of one exercise,
	// oldest first. Returns an empty slice when nothing was logged.
	GetForProblem(ctx context.Context, userID uuid.UUID, exercise string, problemNumber int) ([]*domain.ProblemLog, error)

	// GetRecent retrieves the user's most recent logs for an exercise,
	// newest first, bounded by limit.
	GetRecent(ctx context.Context, userID uuid.UUID, exercise string, limit int) ([]*domain.ProblemLog, error)

	// WithTx returns a store bound to the provided transaction.
	WithTx(tx *sql.Tx) ProblemLogStore
}
