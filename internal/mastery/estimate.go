package mastery

import "math"

const (
	// HistoryLimit is the maximum number of recent attempts considered.
	HistoryLimit = 50

	// NeutralPrior is returned when there is no history at all.
	NeutralPrior = 0.5

	// MissingTimePenalty stands in for the average time when no attempt in
	// the window carries timing data.
	MissingTimePenalty = 999.0

	// fastThresholdSecs is the average time at or under which speed is
	// scored as perfect.
	fastThresholdSecs = 30.0

	// decayWindowSecs is how far past the threshold the speed score takes
	// to decay linearly to zero.
	decayWindowSecs = 60.0

	accuracyWeight = 0.6
	speedWeight    = 0.4
)

// Attempt is one historical answer used for mastery estimation.
type Attempt struct {
	Correct bool
	// TimeTaken is in seconds. Nil when the attempt carries no timing.
	TimeTaken *float64
}

// Estimate converts a most-recent-first attempt window into a mastery score
// in [0,1]. Only the first HistoryLimit attempts are used.
func Estimate(history []Attempt) float64 {
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}
	if len(history) == 0 {
		return NeutralPrior
	}

	correct := 0
	timed := 0
	totalTime := 0.0
	for _, a := range history {
		if a.Correct {
			correct++
		}
		if a.TimeTaken != nil {
			timed++
			totalTime += *a.TimeTaken
		}
	}

	correctRate := float64(correct) / float64(len(history))

	avgTime := MissingTimePenalty
	if timed > 0 {
		avgTime = totalTime / float64(timed)
	}

	score := accuracyWeight*correctRate + speedWeight*TimeScore(avgTime)
	return clamp(score, 0, 1)
}

// TimeScore maps an average answer time in seconds to [0,1]: 1.0 up to 30s,
// then linear decay reaching 0 at 90s.
func TimeScore(avgTime float64) float64 {
	if math.IsNaN(avgTime) {
		return 0
	}
	if avgTime <= fastThresholdSecs {
		return 1.0
	}
	return math.Max(0, 1-(avgTime-fastThresholdSecs)/decayWindowSecs)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
