package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/platform/logger"
	"github.com/phrazzld/mastery-api/internal/store"
)

// PostgresExerciseStore implements the store.ExerciseStore interface
// using a PostgreSQL database as the storage backend.
type PostgresExerciseStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresExerciseStore creates a new PostgreSQL implementation of the
// ExerciseStore interface. If logger is nil, a default logger will be used.
func NewPostgresExerciseStore(db store.DBTX, logger *slog.Logger) *PostgresExerciseStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresExerciseStore{
		db:     db,
		logger: logger.With(slog.String("component", "exercise_store")),
	}
}

// Ensure PostgresExerciseStore implements store.ExerciseStore interface
var _ store.ExerciseStore = (*PostgresExerciseStore)(nil)

const exerciseColumns = `
	name, display_name, prerequisites, covers, summative, live,
	h_position, v_position, seconds_per_fast_problem, created_at, updated_at
`

// GetByName implements store.ExerciseStore.GetByName
// Returns store.ErrExerciseNotFound if the exercise does not exist.
func (s *PostgresExerciseStore) GetByName(ctx context.Context, name string) (*domain.Exercise, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + exerciseColumns + `
		FROM exercises
		WHERE name = $1
	`

	row := s.db.QueryRowContext(ctx, query, name)
	exercise, err := scanExercise(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("exercise not found", slog.String("exercise", name))
			return nil, store.ErrExerciseNotFound
		}
		log.Error("failed to get exercise",
			slog.String("error", err.Error()),
			slog.String("exercise", name))
		return nil, MapError(err)
	}

	return exercise, nil
}

// All implements store.ExerciseStore.All
// It retrieves every exercise definition, ordered by name for stable output.
func (s *PostgresExerciseStore) All(ctx context.Context) ([]*domain.Exercise, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + exerciseColumns + `
		FROM exercises
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to query exercises", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	exercises := []*domain.Exercise{}
	for rows.Next() {
		exercise, err := scanExercise(rows.Scan)
		if err != nil {
			log.Error("failed to scan exercise row", slog.String("error", err.Error()))
			return nil, err
		}
		exercises = append(exercises, exercise)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	return exercises, nil
}

// Upsert implements store.ExerciseStore.Upsert
// It creates the exercise or replaces the existing definition in place,
// handling domain validation.
func (s *PostgresExerciseStore) Upsert(ctx context.Context, exercise *domain.Exercise) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := exercise.Validate(); err != nil {
		log.Warn("exercise validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("exercise", exercise.Name))
		return err
	}

	prerequisites, err := json.Marshal(exercise.Prerequisites)
	if err != nil {
		return fmt.Errorf("failed to encode prerequisites: %w", err)
	}
	covers, err := json.Marshal(exercise.Covers)
	if err != nil {
		return fmt.Errorf("failed to encode covers: %w", err)
	}

	query := `
		INSERT INTO exercises (` + exerciseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (name) DO UPDATE
		SET display_name = EXCLUDED.display_name,
			prerequisites = EXCLUDED.prerequisites,
			covers = EXCLUDED.covers,
			summative = EXCLUDED.summative,
			live = EXCLUDED.live,
			h_position = EXCLUDED.h_position,
			v_position = EXCLUDED.v_position,
			seconds_per_fast_problem = EXCLUDED.seconds_per_fast_problem,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		exercise.Name,
		exercise.DisplayName,
		prerequisites,
		covers,
		exercise.Summative,
		exercise.Live,
		exercise.HPosition,
		exercise.VPosition,
		exercise.SecondsPerFastProblem,
		exercise.CreatedAt,
		time.Now().UTC(),
	)

	if err != nil {
		log.Error("failed to upsert exercise",
			slog.String("error", err.Error()),
			slog.String("exercise", exercise.Name))
		return MapError(err)
	}

	log.Debug("exercise upserted", slog.String("exercise", exercise.Name))
	return nil
}

// WithTx implements store.ExerciseStore.WithTx
// It returns a new store instance using the provided transaction.
func (s *PostgresExerciseStore) WithTx(tx *sql.Tx) store.ExerciseStore {
	return &PostgresExerciseStore{
		db:     tx,
		logger: s.logger,
	}
}

// scanExercise reads one exercises row through the given scan function,
// decoding the JSON prerequisite and coverage lists.
func scanExercise(scan func(dest ...any) error) (*domain.Exercise, error) {
	var exercise domain.Exercise
	var prerequisites, covers []byte

	err := scan(
		&exercise.Name,
		&exercise.DisplayName,
		&prerequisites,
		&covers,
		&exercise.Summative,
		&exercise.Live,
		&exercise.HPosition,
		&exercise.VPosition,
		&exercise.SecondsPerFastProblem,
		&exercise.CreatedAt,
		&exercise.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(prerequisites) > 0 {
		if err := json.Unmarshal(prerequisites, &exercise.Prerequisites); err != nil {
			return nil, fmt.Errorf("failed to decode prerequisites: %w", err)
		}
	}
	if len(covers) > 0 {
		if err := json.Unmarshal(covers, &exercise.Covers); err != nil {
			return nil, fmt.Errorf("failed to decode covers: %w", err)
		}
	}

	return &exercise, nil
}
