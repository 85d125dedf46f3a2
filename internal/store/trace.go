package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mentalmath/internal/domain"
)

// DecisionTrace records why the engine chose a next question.
type DecisionTrace struct {
	ID             int
	Sequence       int64
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

var traceColumns = []string{
	"id", "sequence", "session_id", "prev_question_id", "next_question_id", "next_difficulty",
	"mastery", "reason", "tier", "message", "generated", "timestamp",
}

// AppendDecisionTrace stores t. ID and Sequence are assigned here.
func (s *Store) AppendDecisionTrace(ctx context.Context, t DecisionTrace) error {
	seq, err := s.seq.Next(ctx, s.db)
	if err != nil {
		return err
	}
	var next, mastery any
	if t.NextQuestionID != nil {
		next = string(*t.NextQuestionID)
	}
	if t.Mastery != nil {
		mastery = *t.Mastery
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	ins := builder().Insert(DecisionTracesTable.Name).
		Columns(traceColumns[1:]...).
		Values(seq, string(t.SessionID), string(t.PrevQuestionID), next, int(t.NextDifficulty),
			mastery, t.Reason, t.Tier, t.Message, t.Generated, t.Timestamp.UTC())
	if err := exec(ctx, s.db, ins); err != nil {
		return fmt.Errorf("save decision trace: %w", err)
	}
	return nil
}

// ListDecisionTraces returns a session's traces in decision order.
func (s *Store) ListDecisionTraces(ctx context.Context, id domain.SessionID) ([]DecisionTrace, error) {
	q, args := builder().Select(traceColumns...).From(entsql.Table(DecisionTracesTable.Name)).
		Where(entsql.EQ("session_id", string(id))).
		OrderBy("sequence").
		Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query decision traces: %w", err)
	}
	defer rows.Close()

	var out []DecisionTrace
	for rows.Next() {
		var (
			t       DecisionTrace
			next    sql.NullString
			mastery sql.NullFloat64
		)
		if err := rows.Scan(&t.ID, &t.Sequence, &t.SessionID, &t.PrevQuestionID, &next, &t.NextDifficulty,
			&mastery, &t.Reason, &t.Tier, &t.Message, &t.Generated, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan decision trace: %w", err)
		}
		if next.Valid {
			id := domain.QuestionID(next.String)
			t.NextQuestionID = &id
		}
		if mastery.Valid {
			m := mastery.Float64
			t.Mastery = &m
		}
		t.Timestamp = t.Timestamp.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}
