// Package graph builds per-user views of the exercise graph: proficiency,
// struggling detection, suggested practice, and the review queue. Views are
// derived entirely from committed state and are rebuilt from scratch after
// every change; nothing here is ever patched incrementally.
package graph

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ExerciseState is one node of a user's graph view.
type ExerciseState struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	HPosition   int        `json:"h_position"`
	VPosition   int        `json:"v_position"`
	Summative   bool       `json:"summative"`
	Progress    float64    `json:"progress"`
	Streak      int        `json:"streak"`
	TotalDone   int        `json:"total_done"`
	Proficient  bool       `json:"proficient"`
	Struggling  bool       `json:"struggling"`
	Suggested   bool       `json:"suggested"`
	ReviewDue   bool       `json:"review_due"`
	ReviewDueAt *time.Time `json:"review_due_at,omitempty"`
	LastDone    time.Time  `json:"last_done"`
}

// UserGraph is a complete derived view for one user. The name lists hold
// exercise names in catalog order, except Review (most overdue first) and
// Recent (most recently worked first).
type UserGraph struct {
	UserID      uuid.UUID        `json:"user_id"`
	BuiltAt     time.Time        `json:"built_at"`
	Exercises   []*ExerciseState `json:"exercises"`
	Proficient  []string         `json:"proficient"`
	Struggling  []string         `json:"struggling"`
	Suggested   []string         `json:"suggested"`
	Review      []string         `json:"review"`
	Recent      []string         `json:"recent"`
	ReviewsLeft int              `json:"reviews_left"`
}

// State returns the node for the named exercise, or nil when the catalog
// does not carry it.
func (g *UserGraph) State(name string) *ExerciseState {
	for _, s := range g.Exercises {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Service builds and caches user graph views.
type Service interface {
	// Graph returns the user's current view, rebuilding it when no cached
	// copy exists.
	Graph(ctx context.Context, userID uuid.UUID) (*UserGraph, error)

	// Invalidate drops the cached view so the next Graph call rebuilds.
	Invalidate(userID uuid.UUID)
}
