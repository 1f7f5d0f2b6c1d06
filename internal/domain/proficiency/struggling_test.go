package proficiency_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mastery-api/internal/domain"
	"github.com/phrazzld/mastery-api/internal/domain/proficiency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState(t *testing.T) *domain.UserExercise {
	t.Helper()
	ue, err := domain.NewUserExercise(uuid.New(), "adding_fractions")
	require.NoError(t, err)
	return ue
}

func TestRecentWindowPolicy(t *testing.T) {
	t.Parallel()

	policy := proficiency.NewRecentWindowPolicy()

	tests := []struct {
		name     string
		outcomes []bool
		streak   int
		want     bool
	}{
		{"no history", nil, 0, false},
		{"all correct", []bool{true, true, true}, 3, false},
		{"one wrong of three", []bool{false, true, true}, 2, false},
		{"two wrong of three", []bool{false, false, true}, 0, true},
		{"all wrong", []bool{false, false, false}, 0, true},
		{"two wrong but streak alive", []bool{false, false, true}, 1, false},
		{"old misses outside window", []bool{false, false, true, true, true}, 3, false},
		{"recent misses inside long history", []bool{true, true, true, false, false}, 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ue := newState(t)
			ue.RecentOutcomes = tt.outcomes
			ue.Streak = tt.streak
			ue.LongestStreak = tt.streak

			assert.Equal(t, tt.want, policy.IsStruggling(ue, 7))
		})
	}
}

func TestRecentWindowPolicyFiresAfterProficiency(t *testing.T) {
	t.Parallel()

	policy := proficiency.NewRecentWindowPolicy()

	// A run of failed reviews flags the exercise again without touching
	// proficiency itself.
	ue := newState(t)
	ue.ProficientDate = time.Now().UTC()
	ue.RecentOutcomes = []bool{false, false}
	ue.Streak = 0
	ue.LongestStreak = 7

	assert.True(t, policy.IsStruggling(ue, 7))
	assert.True(t, ue.HasBeenProficient())
}

func TestAttemptCountPolicy(t *testing.T) {
	t.Parallel()

	policy := proficiency.NewAttemptCountPolicy()

	tests := []struct {
		name       string
		totalDone  int
		streak     int
		proficient bool
		want       bool
	}{
		{"under budget", 13, 0, false, false},
		{"at budget no streak", 14, 0, false, true},
		{"over budget no streak", 30, 0, false, true},
		{"over budget with streak", 30, 2, false, false},
		{"never fires after proficiency", 30, 0, true, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ue := newState(t)
			ue.TotalDone = tt.totalDone
			ue.Streak = tt.streak
			ue.LongestStreak = tt.streak
			if tt.proficient {
				ue.ProficientDate = time.Now().UTC()
			}

			assert.Equal(t, tt.want, policy.IsStruggling(ue, 7))
		})
	}
}

func TestPolicyFromName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantName string
		wantErr  bool
	}{
		{"recent window", "recent_window", "recent_window", false},
		{"attempt count", "attempt_count", "attempt_count", false},
		{"empty defaults to recent window", "", "recent_window", false},
		{"unknown", "percentile", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			policy, err := proficiency.PolicyFromName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, policy.Name())
		})
	}
}
