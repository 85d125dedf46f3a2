// Package session tracks per-session answer events, derived statistics and
// end-of-session summaries.
package session

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/abhisek/mentalmath/internal/domain"
)

// FeedbackKind classifies a feedback entry.
type FeedbackKind string

const (
	FeedbackHint          FeedbackKind = "hint"
	FeedbackEncouragement FeedbackKind = "encouragement"
)

// KindFor returns the feedback classification for an answer outcome.
func KindFor(correct bool) FeedbackKind {
	if correct {
		return FeedbackEncouragement
	}
	return FeedbackHint
}

// Event is one answered question. Events are never mutated after they are
// appended to a session.
type Event struct {
	QuestionID    domain.QuestionID `json:"questionId"`
	Topic         domain.Topic      `json:"topic"`
	Subtopic      string            `json:"subtopic,omitempty"`
	Difficulty    domain.Difficulty `json:"difficulty"`
	Correct       bool              `json:"wasCorrect"`
	TimeTaken     float64           `json:"timeTaken"`
	EstimatedTime *float64          `json:"estimatedTime,omitempty"`
	Answer        string            `json:"answer,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Validate checks the event's field ranges.
func (e Event) Validate() error {
	if e.QuestionID == "" {
		return domain.Invalid("questionId", "is required")
	}
	if strings.TrimSpace(string(e.Topic)) == "" {
		return domain.Invalid("topic", "is required")
	}
	if err := domain.ValidateDifficulty("difficulty", e.Difficulty); err != nil {
		return err
	}
	if math.IsNaN(e.TimeTaken) || e.TimeTaken < 0 {
		return domain.Invalid("timeTaken", "must be a non-negative number of seconds, got %v", e.TimeTaken)
	}
	if e.EstimatedTime != nil && (math.IsNaN(*e.EstimatedTime) || *e.EstimatedTime < 0) {
		return domain.Invalid("estimatedTime", "must be a non-negative number of seconds, got %v", *e.EstimatedTime)
	}
	return nil
}

// Feedback is the message shown after an answer, kept for the summary.
type Feedback struct {
	Timestamp   time.Time    `json:"timestamp"`
	Message     string       `json:"message"`
	Kind        FeedbackKind `json:"kind"`
	StrategyTip string       `json:"strategyTip,omitempty"`
}

// Session is one practice session.
type Session struct {
	ID          domain.SessionID       `json:"sessionId"`
	LearnerID   domain.LearnerID       `json:"userId,omitempty"`
	TopicOrder  []domain.Topic         `json:"topicOrder"`
	TimeBudget  float64                `json:"timeBudget,omitempty"` // seconds, zero means unbounded
	StartedAt   time.Time              `json:"startedAt"`
	EndedAt     *time.Time             `json:"endedAt,omitempty"`
	Events      []Event                `json:"events"`
	Stats       map[domain.Topic]Stats `json:"perTopicStats"`
	Feedback    []Feedback             `json:"feedback"`
	SummaryText string                 `json:"summaryText,omitempty"`
}

// Ended reports whether the session is terminal.
func (s *Session) Ended() bool { return s.EndedAt != nil }

// AnsweredIDs returns the ids of every question answered so far.
func (s *Session) AnsweredIDs() []domain.QuestionID {
	ids := make([]domain.QuestionID, 0, len(s.Events))
	for _, e := range s.Events {
		if !slices.Contains(ids, e.QuestionID) {
			ids = append(ids, e.QuestionID)
		}
	}
	return ids
}

// RemainingBudget returns the unspent time budget in seconds, floored at
// zero. It returns zero when the session has no budget.
func (s *Session) RemainingBudget() float64 {
	if s.TimeBudget <= 0 {
		return 0
	}
	spent := 0.0
	for _, e := range s.Events {
		spent += e.TimeTaken
	}
	return math.Max(s.TimeBudget-spent, 0)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.TopicOrder = slices.Clone(s.TopicOrder)
	c.Events = make([]Event, len(s.Events))
	for i, e := range s.Events {
		if e.EstimatedTime != nil {
			v := *e.EstimatedTime
			e.EstimatedTime = &v
		}
		c.Events[i] = e
	}
	c.Feedback = slices.Clone(s.Feedback)
	if s.Stats != nil {
		c.Stats = make(map[domain.Topic]Stats, len(s.Stats))
		for k, v := range s.Stats {
			c.Stats[k] = v
		}
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
