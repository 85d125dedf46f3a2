// Package difficulty adapts question difficulty after each answer.
//
// Two rule sets are provided. Next is mastery-agnostic and is used when no
// mastery estimate is available (anonymous sessions). NextWithMastery
// additionally gates promotion on the learner's topic mastery.
package difficulty

import (
	"math"

	"github.com/abhisek/mentalmath/internal/domain"
)

const (
	// fastRatio is the share of the estimated time within which a correct
	// answer counts as quick.
	fastRatio = 0.9

	// minFastSecs floors the quick-answer threshold for very short estimates.
	minFastSecs = 1.0

	// slowRatio marks an answer as a struggle when exceeded.
	slowRatio = 1.5

	// MasteryGate is the minimum mastery required to promote under
	// NextWithMastery.
	MasteryGate = 0.8
)

// Next computes the next difficulty from the current level and the outcome
// of the answer. estimated is the question's estimated time in seconds, or
// nil when unknown.
func Next(current domain.Difficulty, correct bool, timeTaken float64, estimated *float64) (domain.Difficulty, error) {
	return next(current, correct, timeTaken, estimated, true)
}

// NextWithMastery is Next with promotion additionally requiring
// mastery >= MasteryGate.
func NextWithMastery(current domain.Difficulty, correct bool, timeTaken float64, estimated *float64, mastery float64) (domain.Difficulty, error) {
	if math.IsNaN(mastery) || mastery < 0 || mastery > 1 {
		return 0, domain.Invalid("mastery", "must be in [0,1], got %v", mastery)
	}
	return next(current, correct, timeTaken, estimated, mastery >= MasteryGate)
}

func next(current domain.Difficulty, correct bool, timeTaken float64, estimated *float64, canPromote bool) (domain.Difficulty, error) {
	if err := validate(current, timeTaken, estimated); err != nil {
		return 0, err
	}

	quick, slow := true, false
	if estimated != nil {
		e := *estimated
		quick = timeTaken <= math.Max(fastRatio*e, minFastSecs)
		// A zero estimate carries no pacing signal for the struggle check.
		slow = e > 0 && timeTaken > slowRatio*e
	}

	if canPromote && correct && quick {
		return (current + 1).Clamp(), nil
	}
	if !correct || slow {
		return (current - 1).Clamp(), nil
	}
	return current, nil
}

func validate(current domain.Difficulty, timeTaken float64, estimated *float64) error {
	if err := domain.ValidateDifficulty("difficulty", current); err != nil {
		return err
	}
	if math.IsNaN(timeTaken) || timeTaken < 0 {
		return domain.Invalid("time_taken", "must be >= 0, got %v", timeTaken)
	}
	if estimated != nil && (math.IsNaN(*estimated) || *estimated < 0) {
		return domain.Invalid("estimated_time", "must be >= 0, got %v", *estimated)
	}
	return nil
}
