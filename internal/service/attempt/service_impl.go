package attempt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/domain/proficiency"
	"github.com/phrazzld/mastery-api/internal/domain/review"
	"github.com/phrazzld/mastery-api/internal/events"
	"github.com/phrazzld/mastery-api/internal/platform/logger"
	"github.com/phrazzld/mastery-api/internal/service/commitment"
	"github.com/phrazzld/mastery-api/internal/store"
	"github.com/phrazzld/mastery-api/internal/task"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

// serviceImpl implements the Service interface.
type serviceImpl struct {
	db          *sql.DB
	states      store.UserExerciseStore
	catalog     CatalogProvider
	commitments commitment.Service
	model       *proficiency.Model
	scheduler   *review.Scheduler
	points      PointCalculator
	emitter     events.EventEmitter
	invalidator CacheInvalidator
	locks       *keyLock
	timeFunc    func() time.Time
	logger      *slog.Logger
}

// NewService creates a new attempt Service implementation. The invalidator
// may be nil when no derived views are cached.
func NewService(
	db *sql.DB,
	states store.UserExerciseStore,
	catalog CatalogProvider,
	commitments commitment.Service,
	model *proficiency.Model,
	scheduler *review.Scheduler,
	points PointCalculator,
	emitter events.EventEmitter,
	invalidator CacheInvalidator,
	logger *slog.Logger,
) Service {
	// Validate inputs
	if db == nil {
		panic("db cannot be nil")
	}
	if states == nil {
		panic("states cannot be nil")
	}
	if catalog == nil {
		panic("catalog cannot be nil")
	}
	if commitments == nil {
		panic("commitments cannot be nil")
	}
	if model == nil {
		panic("model cannot be nil")
	}
	if scheduler == nil {
		panic("scheduler cannot be nil")
	}
	if points == nil {
		panic("points cannot be nil")
	}
	if emitter == nil {
		panic("emitter cannot be nil")
	}

	// Use provided logger or create default
	if logger == nil {
		logger = slog.Default()
	}

	return &serviceImpl{
		db:          db,
		states:      states,
		catalog:     catalog,
		commitments: commitments,
		model:       model,
		scheduler:   scheduler,
		points:      points,
		emitter:     emitter,
		invalidator: invalidator,
		locks:       newKeyLock(256),
		timeFunc:    time.Now,
		logger:      logger.With(slog.String("component", "attempt_service")),
	}
}

// SubmitAttempt implements Service.SubmitAttempt.
func (s *serviceImpl) SubmitAttempt(ctx context.Context, sub AttemptSubmission) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateSubmission(&sub); err != nil {
		return nil, err
	}

	if err := s.verifyCommitment(ctx, sub.Commitment, commitment.Problem{
		UserID:        sub.UserID,
		Exercise:      sub.Exercise,
		ProblemNumber: sub.ProblemNumber,
		ContentSHA1:   sub.ContentSHA1,
		Seed:          sub.Seed,
	}); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(sub.UserID, sub.Exercise)
	defer unlock()

	exercise, err := s.resolveExercise(ctx, sub.Exercise)
	if err != nil {
		return nil, err
	}

	result, err := s.processWithRetry(ctx, exercise, sub)
	if err != nil {
		return nil, err
	}

	log.Debug("attempt accepted",
		slog.String("user_id", sub.UserID.String()),
		slog.String("exercise", sub.Exercise),
		slog.Int("problem_number", sub.ProblemNumber),
		slog.Bool("correct", result.Correct),
		slog.Int("points", result.PointsEarned),
		slog.Bool("earned_proficiency", result.EarnedProficiency))

	s.publishEffects(ctx, result)
	return result, nil
}

// ReportHint implements Service.ReportHint.
func (s *serviceImpl) ReportHint(ctx context.Context, report HintReport) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if report.CountHints < 1 {
		return nil, domain.NewInvalidAttemptError("hint report must carry at least one hint")
	}
	if report.AttemptNumber < 0 {
		return nil, domain.NewInvalidAttemptError("attempt number cannot be negative")
	}

	sub := AttemptSubmission{
		UserID:        report.UserID,
		Exercise:      report.Exercise,
		ProblemNumber: report.ProblemNumber,
		AttemptNumber: report.AttemptNumber,
		Completed:     false,
		CountHints:    report.CountHints,
		ContentSHA1:   report.ContentSHA1,
		Seed:          report.Seed,
		ProblemType:   report.ProblemType,
		Commitment:    report.Commitment,
		Admin:         report.Admin,
	}

	if err := validateSubmissionCommon(&sub); err != nil {
		return nil, err
	}

	if err := s.verifyCommitment(ctx, sub.Commitment, commitment.Problem{
		UserID:        sub.UserID,
		Exercise:      sub.Exercise,
		ProblemNumber: sub.ProblemNumber,
		ContentSHA1:   sub.ContentSHA1,
		Seed:          sub.Seed,
	}); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(sub.UserID, sub.Exercise)
	defer unlock()

	exercise, err := s.resolveExercise(ctx, sub.Exercise)
	if err != nil {
		return nil, err
	}

	result, err := s.processWithRetry(ctx, exercise, sub)
	if err != nil {
		return nil, err
	}

	log.Debug("hint recorded",
		slog.String("user_id", report.UserID.String()),
		slog.String("exercise", report.Exercise),
		slog.Int("problem_number", report.ProblemNumber),
		slog.Int("count_hints", report.CountHints))

	s.publishEffects(ctx, result)
	return result, nil
}

// validateSubmission checks a graded response before processing.
func validateSubmission(sub *AttemptSubmission) error {
	if sub.AttemptNumber < 1 {
		return domain.NewInvalidAttemptError("attempt number must be at least 1")
	}
	return validateSubmissionCommon(sub)
}

// validateSubmissionCommon checks the fields shared by attempts and hint
// reports.
func validateSubmissionCommon(sub *AttemptSubmission) error {
	if sub.UserID == uuid.Nil {
		return domain.NewInvalidAttemptError("user ID is required")
	}
	if sub.Exercise == "" {
		return domain.NewInvalidAttemptError("exercise name is required")
	}
	if sub.ProblemNumber < 1 {
		return domain.NewInvalidAttemptError("problem number must be at least 1")
	}
	if sub.CountHints < 0 {
		return domain.NewInvalidAttemptError("hint count cannot be negative")
	}
	if sub.TimeTaken < 0 {
		return domain.NewInvalidAttemptError("time taken cannot be negative")
	}
	if sub.ContentSHA1 == "" {
		return domain.NewInvalidAttemptError("problem content hash is required")
	}
	if sub.Seed == "" {
		return domain.NewInvalidAttemptError("problem seed is required")
	}
	if len(sub.AttemptContent) > MaxAttemptContentLength {
		return domain.NewInvalidAttemptError("attempt content exceeds maximum length")
	}
	return nil
}

func (s *serviceImpl) verifyCommitment(ctx context.Context, token string, problem commitment.Problem) error {
	if token == "" {
		return domain.NewInvalidAttemptError("problem commitment is required")
	}
	if _, err := s.commitments.Verify(ctx, token, problem); err != nil {
		return &domain.AttemptError{
			Kind:    domain.AttemptErrorInvalid,
			Quiet:   true,
			Message: "problem commitment rejected",
			Err:     err,
		}
	}
	return nil
}

func (s *serviceImpl) resolveExercise(ctx context.Context, name string) (*domain.Exercise, error) {
	exercise, err := s.catalog.Exercise(ctx, name)
	if err != nil {
		return nil, domain.NewCatalogLookupError(name, err)
	}
	if !exercise.Live {
		return nil, domain.NewCatalogLookupError(name, fmt.Errorf("exercise is not live"))
	}
	return exercise, nil
}

// processWithRetry runs the state transaction, retrying exactly once on an
// optimistic concurrency conflict.
func (s *serviceImpl) processWithRetry(
	ctx context.Context,
	exercise *domain.Exercise,
	sub AttemptSubmission,
) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.processOnce(ctx, exercise, sub)
	if err != nil && errors.Is(err, store.ErrConflict) {
		log.Debug("retrying attempt after version conflict",
			slog.String("user_id", sub.UserID.String()),
			slog.String("exercise", sub.Exercise))

		result, err = s.processOnce(ctx, exercise, sub)
		if err != nil && errors.Is(err, store.ErrConflict) {
			return nil, domain.NewConflictError(err)
		}
	}
	return result, err
}

// processOnce loads, transitions and writes state in one transaction.
func (s *serviceImpl) processOnce(
	ctx context.Context,
	exercise *domain.Exercise,
	sub AttemptSubmission,
) (*Result, error) {
	var result *Result

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		states := s.states.WithTx(tx)

		ue, err := states.Get(ctx, sub.UserID, sub.Exercise)
		created := false
		if err != nil {
			if !errors.Is(err, store.ErrUserExerciseNotFound) {
				return fmt.Errorf("failed to load exercise state: %w", err)
			}
			// First contact with this exercise: state is created lazily.
			ue, err = domain.NewUserExercise(sub.UserID, sub.Exercise)
			if err != nil {
				return err
			}
			ue.Summative = exercise.Summative
			created = true
		}

		// A submission must continue the user's problem sequence. Stale
		// tabs and replays land here; support tooling may bypass.
		expected := ue.TotalDone + 1
		if sub.ProblemNumber != expected && !sub.Admin {
			return domain.NewOutOfOrderError(
				"problem %d does not continue the sequence, expected %d",
				sub.ProblemNumber, expected)
		}

		next, res := s.applyAttempt(ue, exercise, sub)

		if created {
			if err := states.Create(ctx, next); err != nil {
				// A concurrent first attempt won the insert race; surface
				// it as a conflict so the retry reloads.
				if errors.Is(err, store.ErrDuplicate) {
					return fmt.Errorf("%w: %v", store.ErrConflict, err)
				}
				return fmt.Errorf("failed to create exercise state: %w", err)
			}
		} else {
			if err := states.Update(ctx, next); err != nil {
				if errors.Is(err, store.ErrConflict) {
					return err
				}
				return fmt.Errorf("failed to update exercise state: %w", err)
			}
		}

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyAttempt computes the state transition for one accepted submission.
// It never mutates ue.
func (s *serviceImpl) applyAttempt(
	ue *domain.UserExercise,
	exercise *domain.Exercise,
	sub AttemptSubmission,
) (*domain.UserExercise, *Result) {
	now := s.timeFunc().UTC()
	next := ue.Clone()

	streakBefore := next.Streak
	wasProficient := next.HasBeenProficient()
	firstAttempt := sub.AttemptNumber == 1
	correct := sub.Completed && firstAttempt && sub.CountHints == 0
	costlyHint := sub.AttemptNumber == 0 && sub.CountHints == 1
	afterReset := streakBefore == 0 && ue.TotalDone > 0

	if sub.Completed {
		next.TotalDone++
		if correct {
			next.TotalCorrect++
		}
		next.LastDone = now
		next.RecordOutcome(correct)
	}

	// The mastery penalty fires exactly once per problem: on a wrong first
	// response taken without hints, or on the first hint taken before any
	// response. Later attempts, later hints, and eventual completion never
	// penalize again.
	switch {
	case correct:
		next.Streak++
		if next.Streak > next.LongestStreak {
			next.LongestStreak = next.Streak
		}
		next.Progress = s.model.ApplyCorrect(next.Progress, streakBefore, next.Summative)
	case firstAttempt && sub.CountHints == 0:
		next.Streak = 0
		next.Progress = s.model.ApplyIncorrect(next.Progress)
	case costlyHint:
		next.Streak = 0
		next.Progress = s.model.ApplyIncorrect(next.Progress)
	case sub.Completed:
		// Completing on a later attempt, or with hints, never rebuilds
		// the streak.
		next.Streak = 0
	}

	justEarned := false
	if !wasProficient && s.model.IsProficientProgress(next.Progress) {
		next.Proficient = true
		next.ExplicitlyProficient = true
		next.ProficientDate = now
		justEarned = true
	}

	reviewScheduled := false
	if firstAttempt {
		dueBefore := next.ReviewDueAt
		next = s.scheduler.Schedule(next, correct, now)
		reviewScheduled = next.ReviewDueAt != nil &&
			(dueBefore == nil || !next.ReviewDueAt.Equal(*dueBefore))
	}

	points := s.points.Points(PointContext{
		Completed:             sub.Completed,
		Correct:               correct,
		Streak:                next.Streak,
		AfterReset:            afterReset,
		Suggested:             sub.Suggested,
		Proficient:            wasProficient,
		ReviewMode:            sub.ReviewMode,
		TimeTaken:             sub.TimeTaken,
		SecondsPerFastProblem: exercise.SecondsPerFastProblem,
	})

	next.UpdatedAt = now

	record := &domain.ProblemLog{
		ID:                uuid.New(),
		UserID:            sub.UserID,
		Exercise:          sub.Exercise,
		ProblemNumber:     sub.ProblemNumber,
		AttemptNumber:     sub.AttemptNumber,
		Completed:         sub.Completed,
		Correct:           correct,
		CountHints:        sub.CountHints,
		HintUsed:          sub.CountHints > 0,
		TimeTaken:         sub.TimeTaken,
		ContentSHA1:       sub.ContentSHA1,
		Seed:              sub.Seed,
		ProblemType:       sub.ProblemType,
		AttemptContent:    sub.AttemptContent,
		ReviewMode:        sub.ReviewMode,
		Suggested:         sub.Suggested,
		PointsEarned:      points,
		EarnedProficiency: justEarned,
		DoneAt:            now,
	}

	return next, &Result{
		State:             next,
		Correct:           correct,
		CostlyHint:        costlyHint,
		PointsEarned:      points,
		EarnedProficiency: justEarned,
		ReviewScheduled:   reviewScheduled,
		Log:               record,
	}
}

// publishEffects runs after the state commit: history and hooks are
// deferred to the task queue, and derived views are dropped. Failures here
// are logged, never surfaced; the attempt already committed.
func (s *serviceImpl) publishEffects(ctx context.Context, result *Result) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if event, err := events.NewTaskRequestEvent(events.EventTypeProblemLogAppend, result.Log); err != nil {
		log.Error("failed to build problem log event", slog.String("error", err.Error()))
	} else if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Error("failed to emit problem log event",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
	}

	hookPayload := task.AttemptEvent{
		UserID:            result.Log.UserID,
		Exercise:          result.Log.Exercise,
		ProblemNumber:     result.Log.ProblemNumber,
		Completed:         result.Log.Completed,
		Correct:           result.Correct,
		CostlyHint:        result.CostlyHint,
		ReviewMode:        result.Log.ReviewMode,
		PointsEarned:      result.PointsEarned,
		EarnedProficiency: result.EarnedProficiency,
		DoneAt:            result.Log.DoneAt,
	}
	if event, err := events.NewTaskRequestEvent(events.EventTypeAttemptRecorded, hookPayload); err != nil {
		log.Error("failed to build attempt hooks event", slog.String("error", err.Error()))
	} else if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Error("failed to emit attempt hooks event",
			slog.String("error", err.Error()),
			slog.String("event_id", event.ID.String()))
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(result.Log.UserID)
	}
}
