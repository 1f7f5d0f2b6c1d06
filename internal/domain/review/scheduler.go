package review

import (
	"sort"
	"time"

	"github.com/phrazzld/mastery-api/internal/domain"
)

// Scheduler computes review due dates and session queues. It is pure:
// Schedule returns a modified copy and never touches storage.
type Scheduler struct {
	params *Params
}

// NewScheduler creates a Scheduler with the given parameters, falling
// back to defaults when params is nil.
func NewScheduler(params *Params) *Scheduler {
	if params == nil {
		params = NewDefaultParams()
	}
	return &Scheduler{params: params}
}

// NewDefaultScheduler creates a Scheduler with default parameters.
func NewDefaultScheduler() *Scheduler {
	return NewScheduler(nil)
}

// Schedule returns a copy of ue with its review fields advanced for the
// outcome of the first attempt on a problem.
//
// Reviews exist only for exercises that have been proficient. A correct
// answer marks the review done now and doubles the interval whenever the
// user waited at least a full interval since the last review, bounded by
// MaxInterval. An incorrect answer resets the interval to MinInterval.
// Proficiency itself is never revoked here: a failed review makes the
// exercise due again soon (and typically struggling), nothing more.
func (s *Scheduler) Schedule(ue *domain.UserExercise, correct bool, now time.Time) *domain.UserExercise {
	next := ue.Clone()

	if !next.HasBeenProficient() && next.Progress < 1.0 {
		// Nothing to review yet.
		return next
	}

	interval := next.ReviewInterval
	if interval <= 0 {
		interval = s.params.MinInterval
	}

	if correct {
		if !next.LastReview.IsZero() {
			elapsed := now.Sub(next.LastReview)
			if elapsed >= interval {
				interval = 2 * elapsed
			}
		}
		next.LastReview = now
	} else {
		interval = s.params.MinInterval
	}

	if interval < s.params.MinInterval {
		interval = s.params.MinInterval
	}
	if interval > s.params.MaxInterval {
		interval = s.params.MaxInterval
	}

	base := next.LastReview
	if base.IsZero() {
		base = now
	}
	due := base.Add(interval)

	next.ReviewInterval = interval
	next.ReviewDueAt = &due
	next.UpdatedAt = now

	return next
}

// ReviewsLeft counts the exercises due for review at the given time,
// capped at the session quota. Only exercises that have earned
// proficiency carry a due date, so the count can never exceed the number
// of proficient exercises that are due.
func (s *Scheduler) ReviewsLeft(states []*domain.UserExercise, now time.Time) int {
	count := 0
	for _, ue := range states {
		if ue.ReviewDue(now) {
			count++
			if count >= s.params.SessionQuota {
				return s.params.SessionQuota
			}
		}
	}
	return count
}

// DueExercises returns up to n due exercises ordered most-overdue-first,
// ties broken by catalog position (orderOf). n values below 1 fall back
// to the session quota.
func (s *Scheduler) DueExercises(
	states []*domain.UserExercise,
	now time.Time,
	n int,
	orderOf func(exercise string) int,
) []*domain.UserExercise {
	if n < 1 {
		n = s.params.SessionQuota
	}

	var due []*domain.UserExercise
	for _, ue := range states {
		if ue.ReviewDue(now) {
			due = append(due, ue)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		di, dj := *due[i].ReviewDueAt, *due[j].ReviewDueAt
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return orderOf(due[i].Exercise) < orderOf(due[j].Exercise)
	})

	if len(due) > n {
		due = due[:n]
	}
	return due
}
