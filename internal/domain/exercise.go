package domain

import (
	"errors"
	"regexp"
	"time"
)

// Common validation errors for Exercise.
var (
	ErrEmptyExerciseName   = errors.New("exercise name cannot be empty")
	ErrInvalidExerciseName = errors.New("exercise name must be lowercase letters, digits and underscores")
	ErrSelfPrerequisite    = errors.New("exercise cannot be its own prerequisite")
)

var exerciseNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Exercise is a node in the practice catalog. Exercises are keyed by a
// stable name (e.g. "addition_1") and form a DAG through Prerequisites.
// The catalog owns these records; the mastery core only reads them.
type Exercise struct {
	Name                  string    `json:"name"`
	DisplayName           string    `json:"display_name"`
	Prerequisites         []string  `json:"prerequisites"`
	Covers                []string  `json:"covers"`
	Summative             bool      `json:"summative"`
	Live                  bool      `json:"live"`
	HPosition             int       `json:"h_position"`
	VPosition             int       `json:"v_position"`
	SecondsPerFastProblem float64   `json:"seconds_per_fast_problem"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// NewExercise creates a live exercise with default pacing.
func NewExercise(name string, prerequisites []string, summative bool) (*Exercise, error) {
	now := time.Now().UTC()
	e := &Exercise{
		Name:                  name,
		DisplayName:           name,
		Prerequisites:         prerequisites,
		Summative:             summative,
		Live:                  true,
		SecondsPerFastProblem: 4.0,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks the exercise definition for structural problems.
// Graph-level checks (cycles, dangling prerequisites) belong to the
// catalog loader, which sees the whole set.
func (e *Exercise) Validate() error {
	if e.Name == "" {
		return ErrEmptyExerciseName
	}
	if !exerciseNamePattern.MatchString(e.Name) {
		return ErrInvalidExerciseName
	}
	for _, p := range e.Prerequisites {
		if p == e.Name {
			return ErrSelfPrerequisite
		}
	}
	return nil
}
