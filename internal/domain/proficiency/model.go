package proficiency

// Model computes progress transitions from attempt outcomes using a fixed
// parameter set. All methods are deterministic and side-effect free.
type Model struct {
	params *Params
}

// NewModel creates a Model with the given parameters, falling back to
// defaults when params is nil.
func NewModel(params *Params) *Model {
	if params == nil {
		params = NewDefaultParams()
	}
	return &Model{params: params}
}

// NewDefaultModel creates a Model with default parameters.
func NewDefaultModel() *Model {
	return NewModel(nil)
}

// RequiredStreak returns the clean-correct streak needed for proficiency
// on a regular or summative exercise.
func (m *Model) RequiredStreak(summative bool) int {
	return m.params.requiredStreakFor(summative)
}

// ApplyCorrect returns the progress after a clean first-attempt correct
// answer, given the progress and streak held before the answer.
//
// Each clean answer closes an even share of the remaining gap to 1.0,
// sized so progress reaches exactly 1.0 on the answer that completes the
// required streak and stays strictly below 1.0 on every earlier one. A
// reset therefore costs display progress but never the streak requirement:
// however high progress climbs back, the full streak is still needed.
func (m *Model) ApplyCorrect(progress float64, streakBefore int, summative bool) float64 {
	required := m.params.requiredStreakFor(summative)

	remaining := required - streakBefore
	if remaining < 1 {
		remaining = 1
	}

	next := progress + (1.0-progress)/float64(remaining)
	if next > 1.0 {
		next = 1.0
	}
	if next < progress {
		// Progress is non-decreasing on a correct answer.
		next = progress
	}
	return next
}

// ApplyIncorrect returns the progress after a counted wrong response
// (wrong first attempt, or a costly hint). The decay is multiplicative,
// never producing a negative score or an abrupt drop to zero.
func (m *Model) ApplyIncorrect(progress float64) float64 {
	next := progress * m.params.ResetFactor
	if next < 0 {
		next = 0
	}
	return next
}

// IsProficientProgress reports whether a progress value crosses the
// proficiency threshold.
func (m *Model) IsProficientProgress(progress float64) bool {
	return progress >= 1.0
}
