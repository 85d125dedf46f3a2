package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/session"
)

var _ session.Repository = (*Store)(nil)

// Create implements session.Repository.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	order, err := json.Marshal(sess.TopicOrder)
	if err != nil {
		return fmt.Errorf("marshal topic order: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		q, args := builder().Select(entsql.Count("*")).From(entsql.Table(SessionsTable.Name)).
			Where(entsql.EQ("id", string(sess.ID))).Query()
		if err := tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("session %s: %w", sess.ID, domain.ErrSessionExists)
		}

		seq, err := s.seq.Next(ctx, tx)
		if err != nil {
			return err
		}
		ins := builder().Insert(SessionsTable.Name).
			Columns("id", "sequence", "learner_id", "topic_order", "time_budget", "started_at", "summary_text").
			Values(string(sess.ID), seq, string(sess.LearnerID), string(order), sess.TimeBudget, sess.StartedAt.UTC(), sess.SummaryText)
		if err := exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// Get implements session.Repository. Stats are recomputed from events.
func (s *Store) Get(ctx context.Context, id domain.SessionID) (*session.Session, error) {
	q, args := builder().
		Select("id", "learner_id", "topic_order", "time_budget", "started_at", "ended_at", "summary_text").
		From(entsql.Table(SessionsTable.Name)).
		Where(entsql.EQ("id", string(id))).
		Query()

	var (
		sess    session.Session
		order   string
		endedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, q, args...).Scan(
		&sess.ID, &sess.LearnerID, &order, &sess.TimeBudget, &sess.StartedAt, &endedAt, &sess.SummaryText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	if err := json.Unmarshal([]byte(order), &sess.TopicOrder); err != nil {
		return nil, fmt.Errorf("decode topic order: %w", err)
	}
	sess.StartedAt = sess.StartedAt.UTC()
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		sess.EndedAt = &t
	}

	if sess.Events, err = s.events(ctx, id); err != nil {
		return nil, err
	}
	if sess.Feedback, err = s.feedback(ctx, id); err != nil {
		return nil, err
	}
	sess.Stats = session.ComputeStats(sess.Events)
	return &sess, nil
}

func (s *Store) events(ctx context.Context, id domain.SessionID) ([]session.Event, error) {
	q, args := builder().
		Select("question_id", "topic", "subtopic", "difficulty", "correct", "time_taken", "estimated_time", "answer", "timestamp").
		From(entsql.Table(SessionEventsTable.Name)).
		Where(entsql.EQ("session_id", string(id))).
		OrderBy("sequence").
		Query()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []session.Event{}
	for rows.Next() {
		var (
			e   session.Event
			est sql.NullFloat64
		)
		if err := rows.Scan(&e.QuestionID, &e.Topic, &e.Subtopic, &e.Difficulty, &e.Correct,
			&e.TimeTaken, &est, &e.Answer, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if est.Valid {
			v := est.Float64
			e.EstimatedTime = &v
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) feedback(ctx context.Context, id domain.SessionID) ([]session.Feedback, error) {
	q, args := builder().
		Select("timestamp", "message", "kind", "strategy_tip").
		From(entsql.Table(FeedbackTable.Name)).
		Where(entsql.EQ("session_id", string(id))).
		OrderBy("sequence").
		Query()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	out := []session.Feedback{}
	for rows.Next() {
		var fb session.Feedback
		if err := rows.Scan(&fb.Timestamp, &fb.Message, &fb.Kind, &fb.StrategyTip); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		fb.Timestamp = fb.Timestamp.UTC()
		out = append(out, fb)
	}
	return out, rows.Err()
}

// sessionState reports whether the session exists and whether it ended.
func sessionState(ctx context.Context, q execer, id domain.SessionID) (exists, ended bool, err error) {
	query, args := builder().Select("ended_at").From(entsql.Table(SessionsTable.Name)).
		Where(entsql.EQ("id", string(id))).Query()
	var endedAt sql.NullTime
	err = q.QueryRowContext(ctx, query, args...).Scan(&endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("query session: %w", err)
	}
	return true, endedAt.Valid, nil
}

// Append implements session.Repository. The event and feedback are written
// in one transaction.
func (s *Store) Append(ctx context.Context, id domain.SessionID, e session.Event, fb *session.Feedback) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		exists, ended, err := sessionState(ctx, tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		if ended {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionClosed)
		}

		seq, err := s.seq.Next(ctx, tx)
		if err != nil {
			return err
		}
		var est any
		if e.EstimatedTime != nil {
			est = *e.EstimatedTime
		}
		ins := builder().Insert(SessionEventsTable.Name).
			Columns("sequence", "session_id", "question_id", "topic", "subtopic", "difficulty", "correct",
				"time_taken", "estimated_time", "answer", "timestamp").
			Values(seq, string(id), string(e.QuestionID), string(e.Topic), e.Subtopic, int(e.Difficulty), e.Correct,
				e.TimeTaken, est, e.Answer, e.Timestamp.UTC())
		if err := exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		if fb == nil {
			return nil
		}
		if seq, err = s.seq.Next(ctx, tx); err != nil {
			return err
		}
		ins = builder().Insert(FeedbackTable.Name).
			Columns("sequence", "session_id", "timestamp", "message", "kind", "strategy_tip").
			Values(seq, string(id), fb.Timestamp.UTC(), fb.Message, string(fb.Kind), fb.StrategyTip)
		if err := exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert feedback: %w", err)
		}
		return nil
	})
}

// Finish implements session.Repository. Finishing an ended session is a
// no-op so the first summary text is kept.
func (s *Store) Finish(ctx context.Context, id domain.SessionID, endedAt time.Time, summaryText string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		exists, ended, err := sessionState(ctx, tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		if ended {
			return nil
		}
		upd := builder().Update(SessionsTable.Name).
			Set("ended_at", endedAt.UTC()).
			Set("summary_text", summaryText).
			Where(entsql.And(entsql.EQ("id", string(id)), entsql.IsNull("ended_at")))
		if err := exec(ctx, tx, upd); err != nil {
			return fmt.Errorf("finish session: %w", err)
		}
		return nil
	})
}

// SessionInfo is a row of the session listing.
type SessionInfo struct {
	ID        domain.SessionID
	LearnerID domain.LearnerID
	StartedAt time.Time
	EndedAt   *time.Time
	Events    int
}

// ListSessions returns the most recent sessions, optionally for one learner.
func (s *Store) ListSessions(ctx context.Context, learner domain.LearnerID, limit int) ([]SessionInfo, error) {
	t := builder().Table(SessionsTable.Name)
	e := builder().Table(SessionEventsTable.Name)
	sel := builder().
		Select(t.C("id"), t.C("learner_id"), t.C("started_at"), t.C("ended_at"), entsql.Count(e.C("id"))).
		From(t).
		LeftJoin(e).On(t.C("id"), e.C("session_id")).
		GroupBy(t.C("id")).
		OrderBy(entsql.Desc(t.C("sequence")))
	if learner != "" {
		sel.Where(entsql.EQ(t.C("learner_id"), string(learner)))
	}
	if limit > 0 {
		sel.Limit(limit)
	}

	q, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var (
			si      SessionInfo
			endedAt sql.NullTime
		)
		if err := rows.Scan(&si.ID, &si.LearnerID, &si.StartedAt, &endedAt, &si.Events); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			si.EndedAt = &t
		}
		out = append(out, si)
	}
	return out, rows.Err()
}
