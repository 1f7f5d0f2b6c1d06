package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/platform/logger"
	"github.com/phrazzld/mastery-api/internal/store"
)

// PostgresProblemLogStore implements the store.ProblemLogStore interface
// using a PostgreSQL database as the storage backend.
type PostgresProblemLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProblemLogStore creates a new PostgreSQL implementation of the
// ProblemLogStore interface. If logger is nil, a default logger will be used.
func NewPostgresProblemLogStore(db store.DBTX, logger *slog.Logger) *PostgresProblemLogStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresProblemLogStore{
		db:     db,
		logger: logger.With(slog.String("component", "problem_log_store")),
	}
}

// Ensure PostgresProblemLogStore implements store.ProblemLogStore interface
var _ store.ProblemLogStore = (*PostgresProblemLogStore)(nil)

const problemLogColumns = `
	id, user_id, exercise, problem_number, attempt_number, completed, correct,
	count_hints, hint_used, time_taken_ms, content_sha1, seed, problem_type,
	attempt_content, review_mode, suggested, points_earned, earned_proficiency,
	done_at
`

// Append implements store.ProblemLogStore.Append
// Log writes arrive through an at-least-once task queue, so the insert is a
// no-op when a row with the same (user, exercise, problem, attempt) identity
// already exists.
func (s *PostgresProblemLogStore) Append(ctx context.Context, pl *domain.ProblemLog) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := pl.Validate(); err != nil {
		log.Warn("problem log validation failed during append",
			slog.String("error", err.Error()),
			slog.String("user_id", pl.UserID.String()),
			slog.String("exercise", pl.Exercise))
		return err
	}

	query := `
		INSERT INTO problem_logs (` + problemLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (user_id, exercise, problem_number, attempt_number) DO NOTHING
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		pl.ID,
		pl.UserID,
		pl.Exercise,
		pl.ProblemNumber,
		pl.AttemptNumber,
		pl.Completed,
		pl.Correct,
		pl.CountHints,
		pl.HintUsed,
		pl.TimeTaken.Milliseconds(),
		pl.ContentSHA1,
		pl.Seed,
		pl.ProblemType,
		pl.AttemptContent,
		pl.ReviewMode,
		pl.Suggested,
		pl.PointsEarned,
		pl.EarnedProficiency,
		pl.DoneAt,
	)

	if err != nil {
		log.Error("failed to append problem log",
			slog.String("error", err.Error()),
			slog.String("user_id", pl.UserID.String()),
			slog.String("exercise", pl.Exercise),
			slog.Int("problem_number", pl.ProblemNumber))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("user_id", pl.UserID.String()))
		return err
	}

	if rowsAffected == 0 {
		log.Debug("problem log already recorded, skipping",
			slog.String("user_id", pl.UserID.String()),
			slog.String("exercise", pl.Exercise),
			slog.Int("problem_number", pl.ProblemNumber),
			slog.Int("attempt_number", pl.AttemptNumber))
	}

	return nil
}

// GetForProblem implements store.ProblemLogStore.GetForProblem
// Logs come back oldest first so callers can replay the attempt sequence.
func (s *PostgresProblemLogStore) GetForProblem(
	ctx context.Context,
	userID uuid.UUID,
	exercise string,
	problemNumber int,
) ([]*domain.ProblemLog, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + problemLogColumns + `
		FROM problem_logs
		WHERE user_id = $1 AND exercise = $2 AND problem_number = $3
		ORDER BY done_at ASC, attempt_number ASC
	`

	return s.queryLogs(ctx, log, query, userID, exercise, problemNumber)
}

// GetRecent implements store.ProblemLogStore.GetRecent
// It retrieves the newest logs first, bounded by limit.
func (s *PostgresProblemLogStore) GetRecent(
	ctx context.Context,
	userID uuid.UUID,
	exercise string,
	limit int,
) ([]*domain.ProblemLog, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + problemLogColumns + `
		FROM problem_logs
		WHERE user_id = $1 AND exercise = $2
		ORDER BY done_at DESC, attempt_number DESC
		LIMIT $3
	`

	return s.queryLogs(ctx, log, query, userID, exercise, limit)
}

// WithTx implements store.ProblemLogStore.WithTx
// It returns a new store instance using the provided transaction.
func (s *PostgresProblemLogStore) WithTx(tx *sql.Tx) store.ProblemLogStore {
	return &PostgresProblemLogStore{
		db:     tx,
		logger: s.logger,
	}
}

func (s *PostgresProblemLogStore) queryLogs(
	ctx context.Context,
	log *slog.Logger,
	query string,
	args ...any,
) ([]*domain.ProblemLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query problem logs", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	logs := []*domain.ProblemLog{}
	for rows.Next() {
		var pl domain.ProblemLog
		var timeTakenMS int64

		err := rows.Scan(
			&pl.ID,
			&pl.UserID,
			&pl.Exercise,
			&pl.ProblemNumber,
			&pl.AttemptNumber,
			&pl.Completed,
			&pl.Correct,
			&pl.CountHints,
			&pl.HintUsed,
			&timeTakenMS,
			&pl.ContentSHA1,
			&pl.Seed,
			&pl.ProblemType,
			&pl.AttemptContent,
			&pl.ReviewMode,
			&pl.Suggested,
			&pl.PointsEarned,
			&pl.EarnedProficiency,
			&pl.DoneAt,
		)
		if err != nil {
			log.Error("failed to scan problem log row", slog.String("error", err.Error()))
			return nil, err
		}

		pl.TimeTaken = time.Duration(timeTakenMS) * time.Millisecond
		logs = append(logs, &pl)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	return logs, nil
}
