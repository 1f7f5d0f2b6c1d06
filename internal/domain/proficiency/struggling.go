package proficiency

import (
	"fmt"

	"github.com/phrazzld/mastery-api/internal/domain"
)

// Policy names accepted by PolicyFromName.
const (
	PolicyNameRecentWindow = "recent_window"
	PolicyNameAttemptCount = "attempt_count"
)

// StrugglingPolicy decides whether a user's recent history on an exercise
// indicates difficulty. The flag is transient: it is recomputed on every
// attempt and may toggle in both directions, unlike proficiency.
type StrugglingPolicy interface {
	// Name returns the configuration identifier for the policy.
	Name() string

	// IsStruggling inspects the current state. requiredStreak is the
	// proficiency threshold for the exercise, so policies can scale with
	// exercise difficulty.
	IsStruggling(ue *domain.UserExercise, requiredStreak int) bool
}

// RecentWindowPolicy flags struggling when enough of the recently
// completed problems were missed. It applies after proficiency too, so a
// run of failed reviews re-raises the flag without revoking proficiency.
type RecentWindowPolicy struct {
	// Window is how many recent completions are inspected.
	Window int

	// WrongThreshold is how many of them must be wrong.
	WrongThreshold int
}

// NewRecentWindowPolicy returns the default windowed policy: two or more
// wrong among the last three completed problems.
func NewRecentWindowPolicy() *RecentWindowPolicy {
	return &RecentWindowPolicy{Window: 3, WrongThreshold: 2}
}

// Name implements StrugglingPolicy.
func (p *RecentWindowPolicy) Name() string { return PolicyNameRecentWindow }

// IsStruggling implements StrugglingPolicy.
func (p *RecentWindowPolicy) IsStruggling(ue *domain.UserExercise, requiredStreak int) bool {
	outcomes := ue.RecentOutcomes
	if len(outcomes) > p.Window {
		outcomes = outcomes[len(outcomes)-p.Window:]
	}
	if len(outcomes) == 0 {
		return false
	}

	wrong := 0
	for _, correct := range outcomes {
		if !correct {
			wrong++
		}
	}
	return wrong >= p.WrongThreshold && ue.Streak == 0
}

// AttemptCountPolicy flags struggling when a user has ground through twice
// the required streak without ever earning proficiency and currently holds
// no streak. Once proficiency has been earned it never fires.
type AttemptCountPolicy struct {
	// Multiplier scales the required streak into an attempt budget.
	Multiplier int
}

// NewAttemptCountPolicy returns the attempt-count policy with the default
// budget of twice the required streak.
func NewAttemptCountPolicy() *AttemptCountPolicy {
	return &AttemptCountPolicy{Multiplier: 2}
}

// Name implements StrugglingPolicy.
func (p *AttemptCountPolicy) Name() string { return PolicyNameAttemptCount }

// IsStruggling implements StrugglingPolicy.
func (p *AttemptCountPolicy) IsStruggling(ue *domain.UserExercise, requiredStreak int) bool {
	if ue.HasBeenProficient() {
		return false
	}
	return ue.TotalDone >= p.Multiplier*requiredStreak && ue.Streak == 0
}

// PolicyFromName resolves a configured policy name to its implementation.
func PolicyFromName(name string) (StrugglingPolicy, error) {
	switch name {
	case PolicyNameRecentWindow, "":
		return NewRecentWindowPolicy(), nil
	case PolicyNameAttemptCount:
		return NewAttemptCountPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown struggling policy %q", name)
	}
}
