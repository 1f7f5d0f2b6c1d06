package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/platform/logger"
	"github.com/phrazzld/mastery-api/internal/store"
)

// PostgresUserExerciseStore implements the store.UserExerciseStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserExerciseStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserExerciseStore creates a new PostgreSQL implementation of the
// UserExerciseStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresUserExerciseStore(db store.DBTX, logger *slog.Logger) *PostgresUserExerciseStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserExerciseStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_exercise_store")),
	}
}

// Ensure PostgresUserExerciseStore implements store.UserExerciseStore interface
var _ store.UserExerciseStore = (*PostgresUserExerciseStore)(nil)

const userExerciseColumns = `
	user_id, exercise, total_done, total_correct, streak, longest_streak,
	progress, proficient, explicitly_proficient, proficient_date, summative,
	last_done, last_review, review_interval_ms, review_due_at,
	recent_outcomes, version, created_at, updated_at
`

// Get implements store.UserExerciseStore.Get
// Returns store.ErrUserExerciseNotFound if no state exists for the pair.
func (s *PostgresUserExerciseStore) Get(
	ctx context.Context,
	userID uuid.UUID,
	exercise string,
) (*domain.UserExercise, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + userExerciseColumns + `
		FROM user_exercises
		WHERE user_id = $1 AND exercise = $2
	`

	row := s.db.QueryRowContext(ctx, query, userID, exercise)
	ue, err := scanUserExercise(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("user exercise not found",
				slog.String("user_id", userID.String()),
				slog.String("exercise", exercise))
			return nil, store.ErrUserExerciseNotFound
		}
		log.Error("failed to get user exercise",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("exercise", exercise))
		return nil, MapError(err)
	}

	return ue, nil
}

// GetAllForUser implements store.UserExerciseStore.GetAllForUser
// Returns an empty slice when the user has no exercise state yet.
func (s *PostgresUserExerciseStore) GetAllForUser(
	ctx context.Context,
	userID uuid.UUID,
) ([]*domain.UserExercise, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + userExerciseColumns + `
		FROM user_exercises
		WHERE user_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to query user exercises",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	states := []*domain.UserExercise{}
	for rows.Next() {
		ue, err := scanUserExercise(rows.Scan)
		if err != nil {
			log.Error("failed to scan user exercise row",
				slog.String("error", err.Error()),
				slog.String("user_id", userID.String()))
			return nil, err
		}
		states = append(states, ue)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return nil, err
	}

	return states, nil
}

// Create implements store.UserExerciseStore.Create
// It saves new per-exercise state, handling domain validation.
// Returns store.ErrDuplicate if state already exists for the pair.
func (s *PostgresUserExerciseStore) Create(ctx context.Context, ue *domain.UserExercise) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := ue.Validate(); err != nil {
		log.Warn("user exercise validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", ue.UserID.String()),
			slog.String("exercise", ue.Exercise))
		return err
	}

	outcomes, err := json.Marshal(ue.RecentOutcomes)
	if err != nil {
		return fmt.Errorf("failed to encode recent outcomes: %w", err)
	}

	query := `
		INSERT INTO user_exercises (` + userExerciseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		ue.UserID,
		ue.Exercise,
		ue.TotalDone,
		ue.TotalCorrect,
		ue.Streak,
		ue.LongestStreak,
		ue.Progress,
		ue.Proficient,
		ue.ExplicitlyProficient,
		nullTime(ue.ProficientDate),
		ue.Summative,
		nullTime(ue.LastDone),
		nullTime(ue.LastReview),
		ue.ReviewInterval.Milliseconds(),
		ue.ReviewDueAt,
		outcomes,
		ue.Version,
		ue.CreatedAt,
		ue.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("user exercise already exists",
				slog.String("user_id", ue.UserID.String()),
				slog.String("exercise", ue.Exercise))
			return fmt.Errorf("%w: state for user %s on %s",
				store.ErrDuplicate, ue.UserID, ue.Exercise)
		}

		log.Error("failed to create user exercise",
			slog.String("error", err.Error()),
			slog.String("user_id", ue.UserID.String()),
			slog.String("exercise", ue.Exercise))
		return MapError(err)
	}

	log.Debug("user exercise created",
		slog.String("user_id", ue.UserID.String()),
		slog.String("exercise", ue.Exercise))
	return nil
}

// Update implements store.UserExerciseStore.Update
// The WHERE clause carries the optimistic version check: the update only
// lands when the stored version still matches ue.Version, and the stored
// version is incremented in the same statement. A missing row and a stale
// version are distinguished with a follow-up existence probe.
func (s *PostgresUserExerciseStore) Update(ctx context.Context, ue *domain.UserExercise) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := ue.Validate(); err != nil {
		log.Warn("user exercise validation failed during update",
			slog.String("error", err.Error()),
			slog.String("user_id", ue.UserID.String()),
			slog.String("exercise", ue.Exercise))
		return err
	}

	outcomes, err := json.Marshal(ue.RecentOutcomes)
	if err != nil {
		return fmt.Errorf("failed to encode recent outcomes: %w", err)
	}

	query := `
		UPDATE user_exercises
		SET total_done = $1,
			total_correct = $2,
			streak = $3,
			longest_streak = $4,
			progress = $5,
			proficient = $6,
			explicitly_proficient = $7,
			proficient_date = $8,
			last_done = $9,
			last_review = $10,
			review_interval_ms = $11,
			review_due_at = $12,
			recent_outcomes = $13,
			version = version + 1,
			updated_at = $14
		WHERE user_id = $15 AND exercise = $16 AND version = $17
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		ue.TotalDone,
		ue.TotalCorrect,
		ue.Streak,
		ue.LongestStreak,
		ue.Progress,
		ue.Proficient,
		ue.ExplicitlyProficient,
		nullTime(ue.ProficientDate),
		nullTime(ue.LastDone),
		nullTime(ue.LastReview),
		ue.ReviewInterval.Milliseconds(),
		ue.ReviewDueAt,
		outcomes,
		time.Now().UTC(),
		ue.UserID,
		ue.Exercise,
		ue.Version,
	)

	if err != nil {
		log.Error("failed to update user exercise",
			slog.String("error", err.Error()),
			slog.String("user_id", ue.UserID.String()),
			slog.String("exercise", ue.Exercise))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("user_id", ue.UserID.String()))
		return err
	}

	if rowsAffected == 0 {
		var exists bool
		probe := `SELECT EXISTS (SELECT 1 FROM user_exercises WHERE user_id = $1 AND exercise = $2)`
		if probeErr := s.db.QueryRowContext(ctx, probe, ue.UserID, ue.Exercise).Scan(&exists); probeErr != nil {
			log.Error("failed to probe user exercise existence",
				slog.String("error", probeErr.Error()),
				slog.String("user_id", ue.UserID.String()),
				slog.String("exercise", ue.Exercise))
			return probeErr
		}
		if !exists {
			return store.ErrUserExerciseNotFound
		}

		log.Debug("user exercise version conflict",
			slog.String("user_id", ue.UserID.String()),
			slog.String("exercise", ue.Exercise),
			slog.Int("version", ue.Version))
		return fmt.Errorf("%w: user exercise version %d is stale",
			store.ErrConflict, ue.Version)
	}

	return nil
}

// WithTx implements store.UserExerciseStore.WithTx
// It returns a new store instance using the provided transaction.
func (s *PostgresUserExerciseStore) WithTx(tx *sql.Tx) store.UserExerciseStore {
	return &PostgresUserExerciseStore{
		db:     tx,
		logger: s.logger,
	}
}

// scanUserExercise reads one user_exercises row through the given scan
// function, decoding the JSON outcome window and nullable timestamps.
func scanUserExercise(scan func(dest ...any) error) (*domain.UserExercise, error) {
	var ue domain.UserExercise
	var proficientDate, lastDone, lastReview sql.NullTime
	var reviewIntervalMS int64
	var outcomes []byte

	err := scan(
		&ue.UserID,
		&ue.Exercise,
		&ue.TotalDone,
		&ue.TotalCorrect,
		&ue.Streak,
		&ue.LongestStreak,
		&ue.Progress,
		&ue.Proficient,
		&ue.ExplicitlyProficient,
		&proficientDate,
		&ue.Summative,
		&lastDone,
		&lastReview,
		&reviewIntervalMS,
		&ue.ReviewDueAt,
		&outcomes,
		&ue.Version,
		&ue.CreatedAt,
		&ue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if proficientDate.Valid {
		ue.ProficientDate = proficientDate.Time
	}
	if lastDone.Valid {
		ue.LastDone = lastDone.Time
	}
	if lastReview.Valid {
		ue.LastReview = lastReview.Time
	}
	ue.ReviewInterval = time.Duration(reviewIntervalMS) * time.Millisecond

	if len(outcomes) > 0 {
		if err := json.Unmarshal(outcomes, &ue.RecentOutcomes); err != nil {
			return nil, fmt.Errorf("failed to decode recent outcomes: %w", err)
		}
	}

	return &ue, nil
}

// nullTime converts a zero time to NULL so zero values round-trip cleanly.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
