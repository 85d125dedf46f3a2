package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/mastery"
)

var _ mastery.AttemptReader = (*Store)(nil)

// ReadRecent implements mastery.AttemptReader over the events of every
// session owned by learner, most recent first.
func (s *Store) ReadRecent(ctx context.Context, learner domain.LearnerID, topic domain.Topic, limit int) ([]mastery.Attempt, error) {
	e := builder().Table(SessionEventsTable.Name)
	t := builder().Table(SessionsTable.Name)
	sel := builder().
		Select(e.C("correct"), e.C("time_taken")).
		From(e).
		Join(t).On(e.C("session_id"), t.C("id")).
		Where(entsql.And(
			entsql.EQ(t.C("learner_id"), string(learner)),
			entsql.EQ(e.C("topic"), string(topic)),
		)).
		OrderBy(entsql.Desc(e.C("sequence")))
	if limit > 0 {
		sel.Limit(limit)
	}

	q, args := sel.Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []mastery.Attempt
	for rows.Next() {
		var (
			a mastery.Attempt
			t float64
		)
		if err := rows.Scan(&a.Correct, &t); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.TimeTaken = &t
		out = append(out, a)
	}
	return out, rows.Err()
}
