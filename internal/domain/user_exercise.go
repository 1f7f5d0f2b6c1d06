package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for UserExercise.
var (
	ErrEmptyUserID          = errors.New("user exercise user ID cannot be empty")
	ErrEmptyExercise        = errors.New("user exercise exercise name cannot be empty")
	ErrNegativeCounter      = errors.New("counters must be greater than or equal to 0")
	ErrProgressOutOfRange   = errors.New("progress must be between 0.0 and 1.0 inclusive")
	ErrStreakExceedsLongest = errors.New("streak cannot exceed longest streak")
)

// RecentOutcomeWindow is how many completed-problem outcomes are retained
// on a UserExercise for windowed struggling detection.
const RecentOutcomeWindow = 10

// UserExercise tracks one user's mastery state for one exercise. It is the
// source of truth the attempt processor mutates; every derived view
// (graph snapshot, review queue) is recomputed from it.
//
// Version supports optimistic concurrency: stores reject an update whose
// version does not match the stored row.
type UserExercise struct {
	UserID               uuid.UUID     `json:"user_id"`
	Exercise             string        `json:"exercise"`
	TotalDone            int           `json:"total_done"`
	TotalCorrect         int           `json:"total_correct"`
	Streak               int           `json:"streak"`
	LongestStreak        int           `json:"longest_streak"`
	Progress             float64       `json:"progress"`
	Proficient           bool          `json:"proficient"`
	ExplicitlyProficient bool          `json:"explicitly_proficient"`
	ProficientDate       time.Time     `json:"proficient_date"` // zero if never earned
	Summative            bool          `json:"summative"`
	LastDone             time.Time     `json:"last_done"`
	LastReview           time.Time     `json:"last_review"`
	ReviewInterval       time.Duration `json:"review_interval"`
	ReviewDueAt          *time.Time    `json:"review_due_at"` // nil until first scheduled
	RecentOutcomes       []bool        `json:"recent_outcomes"`
	Version              int           `json:"version"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// NewUserExercise creates all-zero state for a user and exercise. State is
// created lazily on the first attempt and never deleted.
func NewUserExercise(userID uuid.UUID, exercise string) (*UserExercise, error) {
	now := time.Now().UTC()
	ue := &UserExercise{
		UserID:    userID,
		Exercise:  exercise,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := ue.Validate(); err != nil {
		return nil, err
	}
	return ue, nil
}

// Validate checks the state invariants that hold between attempts.
func (ue *UserExercise) Validate() error {
	if ue.UserID == uuid.Nil {
		return ErrEmptyUserID
	}
	if ue.Exercise == "" {
		return ErrEmptyExercise
	}
	if ue.TotalDone < 0 || ue.TotalCorrect < 0 || ue.Streak < 0 || ue.LongestStreak < 0 {
		return ErrNegativeCounter
	}
	if ue.Progress < 0.0 || ue.Progress > 1.0 {
		return ErrProgressOutOfRange
	}
	if ue.Streak > ue.LongestStreak {
		return ErrStreakExceedsLongest
	}
	return nil
}

// Clone returns a deep copy for immutable-update flows.
func (ue *UserExercise) Clone() *UserExercise {
	clone := *ue
	if ue.ReviewDueAt != nil {
		due := *ue.ReviewDueAt
		clone.ReviewDueAt = &due
	}
	clone.RecentOutcomes = append([]bool(nil), ue.RecentOutcomes...)
	return &clone
}

// HasBeenProficient reports whether proficiency was ever earned, even if a
// policy has since flagged the exercise for renewed practice. Explicit
// proficiency is sticky: it is set once and never revoked.
func (ue *UserExercise) HasBeenProficient() bool {
	return ue.ExplicitlyProficient || !ue.ProficientDate.IsZero()
}

// RecordOutcome appends a completed-problem outcome to the recent window,
// dropping the oldest entry once the window is full.
func (ue *UserExercise) RecordOutcome(correct bool) {
	ue.RecentOutcomes = append(ue.RecentOutcomes, correct)
	if len(ue.RecentOutcomes) > RecentOutcomeWindow {
		ue.RecentOutcomes = ue.RecentOutcomes[len(ue.RecentOutcomes)-RecentOutcomeWindow:]
	}
}

// ReviewDue reports whether a scheduled review is due at the given time.
func (ue *UserExercise) ReviewDue(now time.Time) bool {
	return ue.ReviewDueAt != nil && !ue.ReviewDueAt.After(now)
}
