package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mentalmath/internal/catalog"
)

// UpsertTopics inserts or replaces topic definitions.
func (s *Store) UpsertTopics(ctx context.Context, topics []catalog.Topic) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range topics {
			subs, err := json.Marshal(nonNil(t.Subtopics))
			if err != nil {
				return fmt.Errorf("marshal subtopics: %w", err)
			}
			tips, err := json.Marshal(nonNil(t.Tips))
			if err != nil {
				return fmt.Errorf("marshal tips: %w", err)
			}
			ins := builder().Insert(TopicsTable.Name).
				Columns("name", "title", "subtopics", "tips").
				Values(string(t.Name), t.Title, string(subs), string(tips)).
				OnConflict(entsql.ConflictColumns("name"), entsql.ResolveWithNewValues())
			if err := exec(ctx, tx, ins); err != nil {
				return fmt.Errorf("upsert topic %s: %w", t.Name, err)
			}
		}
		return nil
	})
}

// Topics returns every stored topic ordered by name.
func (s *Store) Topics(ctx context.Context) ([]catalog.Topic, error) {
	q, args := builder().Select("name", "title", "subtopics", "tips").
		From(entsql.Table(TopicsTable.Name)).OrderBy("name").Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var out []catalog.Topic
	for rows.Next() {
		var (
			t          catalog.Topic
			subs, tips string
		)
		if err := rows.Scan(&t.Name, &t.Title, &subs, &tips); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		if err := json.Unmarshal([]byte(subs), &t.Subtopics); err != nil {
			return nil, fmt.Errorf("decode subtopics for %s: %w", t.Name, err)
		}
		if err := json.Unmarshal([]byte(tips), &t.Tips); err != nil {
			return nil, fmt.Errorf("decode tips for %s: %w", t.Name, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
