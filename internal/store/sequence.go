package store

import (
	"context"
	"database/sql"
	"fmt"
)

// sequenceCounter hands out one monotonic sequence shared by sessions,
// events, feedback, traces and LLM requests, so rows in different tables
// can be ordered against each other. The counter lives in raw SQL because
// ent has no atomic counter; the RETURNING clause makes the increment
// atomic in the database.
type sequenceCounter struct{}

func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{}, nil
}

// Next returns the next sequence number. q is the database or the
// transaction the new row is written in.
func (sc *sequenceCounter) Next(ctx context.Context, q execer) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}
