package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for ProblemLog.
var (
	ErrEmptyLogUserID       = errors.New("problem log user ID cannot be empty")
	ErrEmptyLogExercise     = errors.New("problem log exercise name cannot be empty")
	ErrInvalidProblemNumber = errors.New("problem number must be greater than or equal to 1")
	ErrInvalidAttemptNumber = errors.New("attempt number must be greater than or equal to 0")
)

// ProblemLog is the immutable history record written once per accepted
// attempt. It is advisory: losing a log entry must never corrupt
// UserExercise state, so log writes happen asynchronously after commit.
type ProblemLog struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"user_id"`
	Exercise          string        `json:"exercise"`
	ProblemNumber     int           `json:"problem_number"`
	AttemptNumber     int           `json:"attempt_number"` // 0 is the hint-path sentinel
	Completed         bool          `json:"completed"`
	Correct           bool          `json:"correct"` // clean first-attempt, no hints
	CountHints        int           `json:"count_hints"`
	HintUsed          bool          `json:"hint_used"`
	TimeTaken         time.Duration `json:"time_taken"`
	ContentSHA1       string        `json:"content_sha1"`
	Seed              string        `json:"seed"`
	ProblemType       string        `json:"problem_type"`
	AttemptContent    string        `json:"attempt_content"`
	ReviewMode        bool          `json:"review_mode"`
	Suggested         bool          `json:"suggested"`
	PointsEarned      int           `json:"points_earned"`
	EarnedProficiency bool          `json:"earned_proficiency"`
	DoneAt            time.Time     `json:"done_at"`
}

// Validate checks the log record before it is queued for persistence.
func (pl *ProblemLog) Validate() error {
	if pl.UserID == uuid.Nil {
		return ErrEmptyLogUserID
	}
	if pl.Exercise == "" {
		return ErrEmptyLogExercise
	}
	if pl.ProblemNumber < 1 {
		return ErrInvalidProblemNumber
	}
	if pl.AttemptNumber < 0 {
		return ErrInvalidAttemptNumber
	}
	return nil
}
