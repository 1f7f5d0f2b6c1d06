// Package proficiency implements the pure mastery model: how a user's
// progress score moves in response to attempt outcomes, and when a user
// counts as struggling. Nothing here performs I/O, so the model can be
// property-tested in isolation from storage.
package proficiency

// Params defines all configurable parameters for the proficiency model.
type Params struct {
	// RequiredStreak is the consecutive clean-correct count needed before
	// progress can reach 1.0 on a regular exercise.
	RequiredStreak int

	// SummativeRequiredStreak is the longer streak required by summative
	// (topic-spanning) exercises.
	SummativeRequiredStreak int

	// ResetFactor is the multiplicative decay applied to progress on a
	// counted wrong response. It keeps resets smooth: progress shrinks
	// toward zero but never jumps below it.
	ResetFactor float64
}

// ParamsConfig allows overriding the default parameters.
type ParamsConfig struct {
	RequiredStreak          int
	SummativeRequiredStreak int
	ResetFactor             float64
}

// NewDefaultParams returns the standard model parameters.
func NewDefaultParams() *Params {
	return &Params{
		RequiredStreak:          7,
		SummativeRequiredStreak: 10,
		ResetFactor:             0.75,
	}
}

// NewParams returns Params with any positive config values applied over
// the defaults.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.RequiredStreak > 0 {
		params.RequiredStreak = config.RequiredStreak
	}
	if config.SummativeRequiredStreak > 0 {
		params.SummativeRequiredStreak = config.SummativeRequiredStreak
	}
	if config.ResetFactor > 0 {
		params.ResetFactor = config.ResetFactor
	}

	return params
}

// requiredStreakFor picks the streak threshold for an exercise kind.
func (p *Params) requiredStreakFor(summative bool) int {
	if summative {
		return p.SummativeRequiredStreak
	}
	return p.RequiredStreak
}
