// Package catalog provides an immutable, per-process view of the exercise
// graph. A Snapshot is built once from the exercise store, validated as a
// DAG, and then shared read-only across requests; the mastery core never
// mutates it.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/phrazzld/mastery-api/internal/domain"
)

// Common catalog errors.
var (
	ErrExerciseNotFound    = errors.New("exercise not found in catalog")
	ErrCyclicPrerequisites = errors.New("exercise prerequisite graph contains a cycle")
	ErrDuplicateExercise   = errors.New("duplicate exercise name in catalog")
)

// Snapshot is an immutable catalog view. Exercises are held in catalog
// order: by horizontal position, then vertical position, then name.
type Snapshot struct {
	exercises []*domain.Exercise
	byName    map[string]*domain.Exercise
	position  map[string]int
}

// NewSnapshot builds and validates a snapshot from a set of exercises.
// The prerequisite graph must be acyclic; prerequisites naming exercises
// absent from the set are tolerated and treated as satisfied, matching
// how partially-published catalogs behave.
func NewSnapshot(exercises []*domain.Exercise) (*Snapshot, error) {
	byName := make(map[string]*domain.Exercise, len(exercises))
	for _, e := range exercises {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("invalid exercise %q: %w", e.Name, err)
		}
		if _, dup := byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateExercise, e.Name)
		}
		byName[e.Name] = e
	}

	if err := checkAcyclic(byName); err != nil {
		return nil, err
	}

	ordered := make([]*domain.Exercise, len(exercises))
	copy(ordered, exercises)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.HPosition != b.HPosition {
			return a.HPosition < b.HPosition
		}
		if a.VPosition != b.VPosition {
			return a.VPosition < b.VPosition
		}
		return a.Name < b.Name
	})

	position := make(map[string]int, len(ordered))
	for i, e := range ordered {
		position[e.Name] = i
	}

	return &Snapshot{
		exercises: ordered,
		byName:    byName,
		position:  position,
	}, nil
}

// Get returns the named exercise or ErrExerciseNotFound.
func (s *Snapshot) Get(name string) (*domain.Exercise, error) {
	e, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrExerciseNotFound, name)
	}
	return e, nil
}

// All returns the exercises in catalog order. Callers must not modify the
// returned slice.
func (s *Snapshot) All() []*domain.Exercise {
	return s.exercises
}

// Len returns the number of exercises in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.exercises)
}

// PositionOf returns the catalog-order index of an exercise, or Len() for
// unknown names so they sort last.
func (s *Snapshot) PositionOf(name string) int {
	if pos, ok := s.position[name]; ok {
		return pos
	}
	return len(s.exercises)
}

// PrerequisitesSatisfied reports whether every known prerequisite of the
// named exercise satisfies the given predicate (typically "is the user
// proficient at it").
func (s *Snapshot) PrerequisitesSatisfied(name string, satisfied func(exercise string) bool) (bool, error) {
	e, err := s.Get(name)
	if err != nil {
		return false, err
	}

	for _, prereq := range e.Prerequisites {
		if _, known := s.byName[prereq]; !known {
			continue
		}
		if !satisfied(prereq) {
			return false, nil
		}
	}
	return true, nil
}

// checkAcyclic runs Kahn's algorithm over the prerequisite edges.
func checkAcyclic(byName map[string]*domain.Exercise) error {
	indegree := make(map[string]int, len(byName))
	dependents := make(map[string][]string, len(byName))

	for name, e := range byName {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, prereq := range e.Prerequisites {
			if _, known := byName[prereq]; !known {
				continue
			}
			indegree[name]++
			dependents[prereq] = append(dependents[prereq], name)
		}
	}

	queue := make([]string, 0, len(byName))
	for name, deg := range indegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++

		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(byName) {
		return ErrCyclicPrerequisites
	}
	return nil
}
