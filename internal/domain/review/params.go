// Package review implements spaced-repetition scheduling for mastered
// exercises: when the next review of each proficient exercise falls due,
// and how many reviews a session should surface.
package review

import "time"

// Params defines all configurable parameters for review scheduling.
type Params struct {
	// MinInterval is the spacing after an incorrect review and the floor
	// for every computed interval.
	MinInterval time.Duration

	// MaxInterval caps the backoff so material is never shelved for good.
	MaxInterval time.Duration

	// SessionQuota bounds how many due reviews are reported for a single
	// session.
	SessionQuota int
}

// ParamsConfig allows overriding the default parameters.
type ParamsConfig struct {
	MinInterval  time.Duration
	MaxInterval  time.Duration
	SessionQuota int
}

// NewDefaultParams returns the standard scheduling parameters: one day
// minimum, 180 days maximum, ten reviews per session.
func NewDefaultParams() *Params {
	return &Params{
		MinInterval:  24 * time.Hour,
		MaxInterval:  180 * 24 * time.Hour,
		SessionQuota: 10,
	}
}

// NewParams returns Params with any positive config values applied over
// the defaults.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MinInterval > 0 {
		params.MinInterval = config.MinInterval
	}
	if config.MaxInterval > 0 {
		params.MaxInterval = config.MaxInterval
	}
	if config.SessionQuota > 0 {
		params.SessionQuota = config.SessionQuota
	}

	return params
}
