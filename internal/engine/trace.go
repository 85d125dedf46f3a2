package engine

import (
	"context"
	"time"

	"github.com/abhisek/mentalmath/internal/domain"
)

// Trace records one decision for later audit.
type Trace struct {
	SessionID      domain.SessionID
	PrevQuestionID domain.QuestionID
	NextQuestionID *domain.QuestionID
	NextDifficulty domain.Difficulty
	Mastery        *float64
	Reason         string
	Tier           string
	Message        string
	Generated      bool
	Timestamp      time.Time
}

// TraceWriter persists decision traces. Write failures are logged and
// never fail the decision.
type TraceWriter interface {
	WriteTrace(ctx context.Context, t Trace) error
}

// TraceWriterFunc adapts a function to TraceWriter.
type TraceWriterFunc func(ctx context.Context, t Trace) error

func (f TraceWriterFunc) WriteTrace(ctx context.Context, t Trace) error { return f(ctx, t) }
