// Package loadgen drives a staged ramp of virtual users against HTTP endpoints and
// summarises what they observed.
//
// The scheduling loop in Generator.Run is the only code that changes the user pool or the
// counters. Virtual users run in their own goroutines and hand every result to the loop
// over a single channel.
package loadgen

import (
	"math"
	"time"

	"github.com/nookcoding/e2e-harness/scenariodef"
)

// TargetAt returns the number of virtual users the profile asks for at elapsed, together
// with the index of the stage in progress and its phase. Within a stage the target moves
// linearly from the previous stage's target (0 for the first stage) to the stage's own.
// Before the start and after the last stage the phase is idle and the target 0; after the
// last stage the index is len(stages).
func TargetAt(profile scenariodef.LoadProfile, elapsed time.Duration) (target, stage int, phase scenariodef.Phase) {
	if elapsed < 0 || len(profile.Stages) == 0 {
		return 0, 0, scenariodef.PhaseIdle
	}
	from := 0
	var stageStart time.Duration
	for i, s := range profile.Stages {
		d := s.Duration.D()
		if elapsed < stageStart+d {
			frac := float64(elapsed-stageStart) / float64(d)
			users := int(math.Round(float64(from) + float64(s.Target-from)*frac))
			return users, i, stagePhase(from, s.Target)
		}
		stageStart += d
		from = s.Target
	}
	return 0, len(profile.Stages), scenariodef.PhaseIdle
}

func stagePhase(from, to int) scenariodef.Phase {
	switch {
	case to > from:
		return scenariodef.PhaseRampUp
	case to < from:
		return scenariodef.PhaseRampDown
	default:
		return scenariodef.PhaseHold
	}
}
