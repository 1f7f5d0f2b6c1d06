package attempt

import "time"

// PointContext carries everything a calculator may weigh when awarding
// points for one completed problem.
type PointContext struct {
	Completed bool
	Correct   bool
	Streak    int

	// AfterReset reports that the streak was zero going in on an exercise
	// with prior attempts. The first correct answer rebuilding from a reset
	// earns nothing; only the first problem ever on an exercise is exempt.
	AfterReset bool

	Suggested             bool
	Proficient            bool
	ReviewMode            bool
	TimeTaken             time.Duration
	SecondsPerFastProblem float64
}

// PointCalculator awards points for an accepted attempt. Implementations
// must be deterministic for a given context.
type PointCalculator interface {
	Points(pc PointContext) int
}

// StandardPointCalculator is the default scoring strategy. Points reward
// clean work on exercises the learner has not yet mastered: a zero streak
// always earns zero, as does the problem immediately after a streak reset,
// suggested practice before proficiency earns a bonus, and beating the
// exercise's fast-problem pace earns a little more.
type StandardPointCalculator struct {
	Base           int
	SuggestedBonus int
	FastBonus      int
}

// NewStandardPointCalculator returns the default scoring strategy.
func NewStandardPointCalculator() *StandardPointCalculator {
	return &StandardPointCalculator{
		Base:           5,
		SuggestedBonus: 10,
		FastBonus:      5,
	}
}

// Ensure StandardPointCalculator implements PointCalculator
var _ PointCalculator = (*StandardPointCalculator)(nil)

// Points implements PointCalculator.
func (c *StandardPointCalculator) Points(pc PointContext) int {
	if !pc.Completed || pc.Streak == 0 || pc.AfterReset {
		return 0
	}

	points := c.Base

	if pc.Suggested && !pc.Proficient && !pc.ReviewMode {
		points += c.SuggestedBonus
	}

	if pc.SecondsPerFastProblem > 0 {
		fast := time.Duration(pc.SecondsPerFastProblem * float64(time.Second))
		if pc.TimeTaken > 0 && pc.TimeTaken <= fast {
			points += c.FastBonus
		}
	}

	return points
}
