package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/selector"
)

var _ selector.Repository = (*Store)(nil)

// Question is a question bank entry. The selector only sees its Candidate
// projection.
type Question struct {
	selector.Candidate
	Prompt string `json:"prompt,omitempty"`
	Answer string `json:"answer,omitempty"`
}

var questionColumns = []string{
	"id", "topic", "subtopic", "difficulty", "estimated_time", "hints", "strategy_tip", "prompt", "answer",
}

// Fetch implements selector.Repository.
func (s *Store) Fetch(ctx context.Context, q selector.Query) ([]selector.Candidate, error) {
	// Id order keeps a limited any-difficulty fetch from favoring the
	// easiest questions of a large topic.
	qs, err := s.queryQuestions(ctx, q, "id")
	if err != nil {
		return nil, err
	}
	out := make([]selector.Candidate, len(qs))
	for i, q := range qs {
		out[i] = q.Candidate
	}
	return out, nil
}

// ListQuestions returns bank entries matching q, ordered by topic,
// difficulty and id.
func (s *Store) ListQuestions(ctx context.Context, q selector.Query) ([]Question, error) {
	return s.queryQuestions(ctx, q, "topic", "difficulty", "id")
}

func (s *Store) queryQuestions(ctx context.Context, q selector.Query, orderBy ...string) ([]Question, error) {
	var preds []*entsql.Predicate
	if q.Topic != "" {
		preds = append(preds, entsql.EQ("topic", string(q.Topic)))
	}
	if q.Difficulty != nil {
		preds = append(preds, entsql.EQ("difficulty", int(*q.Difficulty)))
	}
	if q.Subtopic != "" {
		preds = append(preds, entsql.EQ("subtopic", q.Subtopic))
	}
	if len(q.Exclude) > 0 {
		ids := make([]any, len(q.Exclude))
		for i, id := range q.Exclude {
			ids[i] = string(id)
		}
		preds = append(preds, entsql.NotIn("id", ids...))
	}

	sel := builder().Select(questionColumns...).From(entsql.Table(QuestionsTable.Name)).
		OrderBy(orderBy...)
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}

	query, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		qu, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, qu)
	}
	return out, rows.Err()
}

// GetQuestion returns one bank entry, or nil if it does not exist.
func (s *Store) GetQuestion(ctx context.Context, id domain.QuestionID) (*Question, error) {
	query, args := builder().Select(questionColumns...).From(entsql.Table(QuestionsTable.Name)).
		Where(entsql.EQ("id", string(id))).Query()
	q, err := scanQuestion(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query question: %w", err)
	}
	return &q, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(r rowScanner) (Question, error) {
	var (
		q     Question
		hints string
	)
	if err := r.Scan(&q.ID, &q.Topic, &q.Subtopic, &q.Difficulty, &q.EstimatedTime,
		&hints, &q.StrategyTip, &q.Prompt, &q.Answer); err != nil {
		return Question{}, err
	}
	if err := json.Unmarshal([]byte(hints), &q.Hints); err != nil {
		return Question{}, fmt.Errorf("decode hints for %s: %w", q.ID, err)
	}
	return q, nil
}

// UpsertQuestions inserts or replaces questions in one transaction.
func (s *Store) UpsertQuestions(ctx context.Context, qs []Question) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range qs {
			if err := upsertQuestion(ctx, tx, q); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertQuestion(ctx context.Context, tx *sql.Tx, q Question) error {
	hj, err := json.Marshal(nonNil(q.Hints))
	if err != nil {
		return fmt.Errorf("marshal hints: %w", err)
	}
	ins := builder().Insert(QuestionsTable.Name).
		Columns(questionColumns...).
		Values(string(q.ID), string(q.Topic), q.Subtopic, int(q.Difficulty), q.EstimatedTime,
			string(hj), q.StrategyTip, q.Prompt, q.Answer).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues())
	if err := exec(ctx, tx, ins); err != nil {
		return fmt.Errorf("upsert question %s: %w", q.ID, err)
	}
	return nil
}
