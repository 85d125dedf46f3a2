// Package selector picks the next question for a learner from the
// candidate pool exposed by an external question repository.
package selector

import (
	"context"

	"github.com/abhisek/mentalmath/internal/domain"
)

// Candidate is the engine's read-only projection of a question.
type Candidate struct {
	ID            domain.QuestionID `json:"id"`
	Topic         domain.Topic      `json:"topic"`
	Subtopic      string            `json:"subtopic,omitempty"`
	Difficulty    domain.Difficulty `json:"difficulty"`
	EstimatedTime float64           `json:"estimatedTime"` // seconds
	Hints         []string          `json:"hints,omitempty"`
	StrategyTip   string            `json:"strategyTip,omitempty"`
}

// Query filters the question pool. Zero-valued optional fields match
// everything.
type Query struct {
	Topic      domain.Topic
	Difficulty *domain.Difficulty
	Subtopic   string
	Exclude    []domain.QuestionID
	Limit      int
}

// Repository fetches candidate questions.
type Repository interface {
	Fetch(ctx context.Context, q Query) ([]Candidate, error)
}

// Tier identifies which filtering step produced a selection.
type Tier int

const (
	// TierSameLevel: same topic, subtopic and difficulty (remedial).
	TierSameLevel Tier = iota + 1
	// TierLowerLevel: same topic and subtopic, one level easier (remedial).
	TierLowerLevel
	// TierTarget: same topic at the adapted difficulty.
	TierTarget
	// TierAnyLevel: same topic, any difficulty.
	TierAnyLevel
)

func (t Tier) String() string {
	switch t {
	case TierSameLevel:
		return "same-level"
	case TierLowerLevel:
		return "lower-level"
	case TierTarget:
		return "target"
	case TierAnyLevel:
		return "any-level"
	default:
		return "none"
	}
}

// Reason is the selection strategy applied.
type Reason string

const (
	ReasonRemedial Reason = "remedial"
	ReasonProgress Reason = "progress"
)

// Request describes the just-answered question and the selection context.
type Request struct {
	Topic    domain.Topic
	Subtopic string
	// Current is the difficulty of the question just answered.
	Current domain.Difficulty
	// Target is the adapted difficulty for the next question.
	Target domain.Difficulty
	// Remedial selects the remedial path (previous answer was wrong).
	Remedial bool
	// Exclude lists questions already served in the session.
	Exclude []domain.QuestionID
	// RemainingBudget is the remaining session time in seconds; zero means
	// no budget applies.
	RemainingBudget float64
}

// Reason returns the strategy implied by the request.
func (r Request) Reason() Reason {
	if r.Remedial {
		return ReasonRemedial
	}
	return ReasonProgress
}

// Selection is the chosen question and how it was found.
type Selection struct {
	Candidate  Candidate
	Tier       Tier
	Reason     Reason
	Considered int
}
