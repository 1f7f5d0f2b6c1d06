package api

import (
	"time"

	"github.com/phrazzld/mastery-api/internal/domain"
)

// Common request/response structures

// ProblemResponse is a served problem instance. The commitment token must be
// echoed back on the eventual attempt submission.
type ProblemResponse struct {
	Exercise              string  `json:"exercise"`
	DisplayName           string  `json:"display_name"`
	ProblemNumber         int     `json:"problem_number"`
	Seed                  string  `json:"seed"`
	ContentSHA1           string  `json:"sha1"`
	Summative             bool    `json:"summative"`
	SecondsPerFastProblem float64 `json:"seconds_per_fast_problem"`
	Commitment            string  `json:"commitment"`
}

// SubmitAttemptRequest defines the payload for submitting a graded response.
type SubmitAttemptRequest struct {
	ProblemNumber  int    `json:"problem_number"  validate:"required,min=1"`
	AttemptNumber  int    `json:"attempt_number"  validate:"required,min=1"`
	Completed      bool   `json:"completed"`
	CountHints     int    `json:"count_hints"     validate:"min=0"`
	TimeTakenMs    int64  `json:"time_taken_ms"   validate:"min=0"`
	ContentSHA1    string `json:"sha1"            validate:"required"`
	Seed           string `json:"seed"            validate:"required"`
	ProblemType    string `json:"problem_type"`
	AttemptContent string `json:"attempt_content"`
	ReviewMode     bool   `json:"review_mode"`
	Suggested      bool   `json:"suggested"`
	Commitment     string `json:"commitment"      validate:"required"`
	Admin          bool   `json:"admin"`
}

// ReportHintRequest defines the payload for reporting a taken hint.
// AttemptNumber is the number of graded responses made so far; 0 means the
// hint came before any response.
type ReportHintRequest struct {
	ProblemNumber int    `json:"problem_number" validate:"required,min=1"`
	AttemptNumber int    `json:"attempt_number" validate:"min=0"`
	CountHints    int    `json:"count_hints"    validate:"required,min=1"`
	ContentSHA1   string `json:"sha1"           validate:"required"`
	Seed          string `json:"seed"           validate:"required"`
	ProblemType   string `json:"problem_type"`
	Commitment    string `json:"commitment"     validate:"required"`
	Admin         bool   `json:"admin"`
}

// UserExerciseResponse is the committed per-exercise state after an attempt.
type UserExerciseResponse struct {
	Exercise       string     `json:"exercise"`
	TotalDone      int        `json:"total_done"`
	TotalCorrect   int        `json:"total_correct"`
	Streak         int        `json:"streak"`
	LongestStreak  int        `json:"longest_streak"`
	Progress       float64    `json:"progress"`
	Proficient     bool       `json:"proficient"`
	ProficientDate *time.Time `json:"proficient_date,omitempty"`
	Summative      bool       `json:"summative"`
	LastDone       *time.Time `json:"last_done,omitempty"`
	ReviewDueAt    *time.Time `json:"review_due_at,omitempty"`
}

// AttemptResponse reports the outcome of an accepted submission.
type AttemptResponse struct {
	Correct           bool                 `json:"correct"`
	PointsEarned      int                  `json:"points_earned"`
	EarnedProficiency bool                 `json:"earned_proficiency"`
	ReviewScheduled   bool                 `json:"review_scheduled"`
	State             UserExerciseResponse `json:"state"`
}

// ExerciseResponse is one catalog entry.
type ExerciseResponse struct {
	Name                  string   `json:"name"`
	DisplayName           string   `json:"display_name"`
	Prerequisites         []string `json:"prerequisites"`
	Covers                []string `json:"covers"`
	Summative             bool     `json:"summative"`
	HPosition             int      `json:"h_position"`
	VPosition             int      `json:"v_position"`
	SecondsPerFastProblem float64  `json:"seconds_per_fast_problem"`
}

// userExerciseToResponse converts committed state to its response form.
func userExerciseToResponse(ue *domain.UserExercise) UserExerciseResponse {
	resp := UserExerciseResponse{
		Exercise:      ue.Exercise,
		TotalDone:     ue.TotalDone,
		TotalCorrect:  ue.TotalCorrect,
		Streak:        ue.Streak,
		LongestStreak: ue.LongestStreak,
		Progress:      ue.Progress,
		Proficient:    ue.HasBeenProficient(),
		Summative:     ue.Summative,
		ReviewDueAt:   ue.ReviewDueAt,
	}
	if !ue.ProficientDate.IsZero() {
		d := ue.ProficientDate
		resp.ProficientDate = &d
	}
	if !ue.LastDone.IsZero() {
		d := ue.LastDone
		resp.LastDone = &d
	}
	return resp
}

// exerciseToResponse converts a catalog entry to its response form.
func exerciseToResponse(e *domain.Exercise) ExerciseResponse {
	return ExerciseResponse{
		Name:                  e.Name,
		DisplayName:           e.DisplayName,
		Prerequisites:         e.Prerequisites,
		Covers:                e.Covers,
		Summative:             e.Summative,
		HPosition:             e.HPosition,
		VPosition:             e.VPosition,
		SecondsPerFastProblem: e.SecondsPerFastProblem,
	}
}
