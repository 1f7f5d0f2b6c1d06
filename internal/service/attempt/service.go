// Package attempt processes problem attempts against per-user exercise
// state: validation, mastery transitions, review scheduling, points, and
// deferred history writes.
package attempt

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/domain"
)

// MaxAttemptContentLength bounds the stored attempt content. Oversize
// submissions are rejected outright; well-behaved clients never come close.
const MaxAttemptContentLength = 500

// AttemptSubmission is one graded response to a served problem.
// AttemptNumber counts responses to the same problem starting at 1; hints
// taken before any response arrive through HintReport instead.
type AttemptSubmission struct {
	UserID         uuid.UUID
	Exercise       string
	ProblemNumber  int
	AttemptNumber  int
	Completed      bool
	CountHints     int
	TimeTaken      time.Duration
	ContentSHA1    string
	Seed           string
	ProblemType    string
	AttemptContent string
	ReviewMode     bool
	Suggested      bool

	// Commitment is the signed token issued when the problem was served.
	Commitment string

	// Admin bypasses the problem-ordering check for support tooling. It
	// never bypasses the commitment check.
	Admin bool
}

// HintReport records that the user took a hint on the current problem.
// AttemptNumber is the number of graded responses made so far; 0 means the
// hint came before any response, which counts against mastery.
type HintReport struct {
	UserID        uuid.UUID
	Exercise      string
	ProblemNumber int
	AttemptNumber int
	CountHints    int
	ContentSHA1   string
	Seed          string
	ProblemType   string
	Commitment    string
	Admin         bool
}

// Result reports the outcome of an accepted submission.
type Result struct {
	// State is the committed per-exercise state after the attempt.
	State *domain.UserExercise

	// Correct reports whether the attempt counted as a clean first-attempt
	// completion.
	Correct bool

	// CostlyHint reports that this submission was a first hint taken before
	// any response, which counts against mastery. Hooks use it to separate
	// hint penalties from wrong answers.
	CostlyHint bool

	// PointsEarned is the score awarded for this attempt.
	PointsEarned int

	// EarnedProficiency reports whether this attempt crossed the
	// proficiency threshold. It is true at most once per exercise.
	EarnedProficiency bool

	// ReviewScheduled reports whether a review due date was set or moved.
	ReviewScheduled bool

	// Log is the history record queued for asynchronous persistence.
	Log *domain.ProblemLog
}

// CatalogProvider resolves exercise definitions for attempt processing.
type CatalogProvider interface {
	Exercise(ctx context.Context, name string) (*domain.Exercise, error)
}

// CacheInvalidator drops derived per-user views after state changes.
type CacheInvalidator interface {
	Invalidate(userID uuid.UUID)
}

// Service processes attempts and hint reports. Rejections are returned as
// *domain.AttemptError; rejected submissions never mutate state or fire
// hooks.
type Service interface {
	// SubmitAttempt validates and applies one graded response. The state
	// write commits synchronously; history and hooks are deferred to the
	// task queue after commit.
	SubmitAttempt(ctx context.Context, sub AttemptSubmission) (*Result, error)

	// ReportHint records a hint. A first hint taken before any response
	// counts as a wrong response for mastery purposes.
	ReportHint(ctx context.Context, report HintReport) (*Result, error)
}
