package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/catalog"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/domain/proficiency"
	"github.com/phrazzld/mastery-api/internal/domain/review"
	"github.com/phrazzld/mastery-api/internal/platform/logger"
	"github.com/phrazzld/mastery-api/internal/store"
)

// recentLimit caps the recently-worked list in a graph view.
const recentLimit = 5

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

// serviceImpl implements the Service interface with a per-user cache.
type serviceImpl struct {
	states    store.UserExerciseStore
	catalog   *catalog.Snapshot
	model     *proficiency.Model
	scheduler *review.Scheduler
	policy    proficiency.StrugglingPolicy
	timeFunc  func() time.Time
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[uuid.UUID]*UserGraph
}

// NewService creates a new graph Service implementation.
func NewService(
	states store.UserExerciseStore,
	cat *catalog.Snapshot,
	model *proficiency.Model,
	scheduler *review.Scheduler,
	policy proficiency.StrugglingPolicy,
	logger *slog.Logger,
) Service {
	// Validate inputs
	if states == nil {
		panic("states cannot be nil")
	}
	if cat == nil {
		panic("catalog snapshot cannot be nil")
	}
	if model == nil {
		panic("model cannot be nil")
	}
	if scheduler == nil {
		panic("scheduler cannot be nil")
	}
	if policy == nil {
		panic("policy cannot be nil")
	}

	// Use provided logger or create default
	if logger == nil {
		logger = slog.Default()
	}

	return &serviceImpl{
		states:    states,
		catalog:   cat,
		model:     model,
		scheduler: scheduler,
		policy:    policy,
		timeFunc:  time.Now,
		logger:    logger.With(slog.String("component", "graph_service")),
		cache:     make(map[uuid.UUID]*UserGraph),
	}
}

// Graph implements Service.Graph.
func (s *serviceImpl) Graph(ctx context.Context, userID uuid.UUID) (*UserGraph, error) {
	s.mu.RLock()
	cached, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	states, err := s.states.GetAllForUser(ctx, userID)
	if err != nil {
		log.Error("failed to load exercise states for graph",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to load exercise states: %w", err)
	}

	view := s.rebuild(userID, states, s.timeFunc().UTC())

	s.mu.Lock()
	s.cache[userID] = view
	s.mu.Unlock()

	log.Debug("rebuilt user graph",
		slog.String("user_id", userID.String()),
		slog.Int("proficient", len(view.Proficient)),
		slog.Int("struggling", len(view.Struggling)),
		slog.Int("suggested", len(view.Suggested)),
		slog.Int("reviews_left", view.ReviewsLeft))

	return view, nil
}

// Invalidate implements Service.Invalidate.
func (s *serviceImpl) Invalidate(userID uuid.UUID) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// rebuild derives a complete view from committed state. It runs on every
// state change rather than patching the previous view, so a bad patch can
// never poison later views.
func (s *serviceImpl) rebuild(
	userID uuid.UUID,
	states []*domain.UserExercise,
	now time.Time,
) *UserGraph {
	stateByName := make(map[string]*domain.UserExercise, len(states))
	for _, ue := range states {
		stateByName[ue.Exercise] = ue
	}

	proficient := make(map[string]bool, len(states))
	struggling := make(map[string]bool)
	for _, ue := range states {
		if ue.HasBeenProficient() {
			proficient[ue.Exercise] = true
		}
		required := s.model.RequiredStreak(ue.Summative)
		if s.policy.IsStruggling(ue, required) {
			struggling[ue.Exercise] = true
		}
	}

	// Review queue: due states, most overdue first, excluding struggling
	// exercises, which need renewed practice rather than spaced review.
	var reviewable []*domain.UserExercise
	for _, ue := range states {
		if !struggling[ue.Exercise] {
			reviewable = append(reviewable, ue)
		}
	}
	dueStates := s.scheduler.DueExercises(reviewable, now, 0, s.catalog.PositionOf)
	reviewSet := make(map[string]bool, len(dueStates))
	reviewNames := make([]string, 0, len(dueStates))
	for _, ue := range dueStates {
		reviewSet[ue.Exercise] = true
		reviewNames = append(reviewNames, ue.Exercise)
	}

	view := &UserGraph{
		UserID:      userID,
		BuiltAt:     now,
		Review:      reviewNames,
		ReviewsLeft: s.scheduler.ReviewsLeft(reviewable, now),
	}

	for _, exercise := range s.catalog.All() {
		if !exercise.Live {
			continue
		}

		node := &ExerciseState{
			Name:        exercise.Name,
			DisplayName: exercise.DisplayName,
			HPosition:   exercise.HPosition,
			VPosition:   exercise.VPosition,
			Summative:   exercise.Summative,
			Proficient:  proficient[exercise.Name],
			Struggling:  struggling[exercise.Name],
			ReviewDue:   reviewSet[exercise.Name],
		}

		if ue, ok := stateByName[exercise.Name]; ok {
			node.Progress = ue.Progress
			node.Streak = ue.Streak
			node.TotalDone = ue.TotalDone
			node.ReviewDueAt = ue.ReviewDueAt
			node.LastDone = ue.LastDone
		}

		// Suggested: the practice frontier. Not yet proficient, every
		// known prerequisite proficient, and not already queued for
		// review.
		if !node.Proficient && !node.ReviewDue {
			ok, err := s.catalog.PrerequisitesSatisfied(exercise.Name, func(prereq string) bool {
				return proficient[prereq]
			})
			if err == nil && ok {
				node.Suggested = true
			}
		}

		view.Exercises = append(view.Exercises, node)

		if node.Proficient {
			view.Proficient = append(view.Proficient, node.Name)
		}
		if node.Struggling {
			view.Struggling = append(view.Struggling, node.Name)
		}
		if node.Suggested {
			view.Suggested = append(view.Suggested, node.Name)
		}
	}

	view.Recent = recentNames(states, s.catalog)

	return view
}

// recentNames lists the most recently worked live exercises, newest first.
func recentNames(states []*domain.UserExercise, cat *catalog.Snapshot) []string {
	var worked []*domain.UserExercise
	for _, ue := range states {
		if ue.LastDone.IsZero() {
			continue
		}
		if e, err := cat.Get(ue.Exercise); err != nil || !e.Live {
			continue
		}
		worked = append(worked, ue)
	}

	sort.SliceStable(worked, func(i, j int) bool {
		return worked[i].LastDone.After(worked[j].LastDone)
	})

	if len(worked) > recentLimit {
		worked = worked[:recentLimit]
	}

	names := make([]string, 0, len(worked))
	for _, ue := range worked {
		names = append(names, ue.Exercise)
	}
	return names
}
