package selector

import (
	"context"
	"slices"

	"github.com/abhisek/mentalmath/internal/domain"
)

// Pool is an in-memory Repository over a fixed candidate list.
type Pool struct {
	cands []Candidate
}

// NewPool creates a pool. The slice is copied.
func NewPool(cands ...Candidate) *Pool {
	return &Pool{cands: slices.Clone(cands)}
}

// Fetch implements Repository.
func (p *Pool) Fetch(ctx context.Context, q Query) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Candidate
	for _, c := range p.cands {
		if !Matches(c, q) {
			continue
		}
		out = append(out, c)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Matches reports whether c satisfies every filter in q.
func Matches(c Candidate, q Query) bool {
	if c.Topic != q.Topic {
		return false
	}
	if q.Difficulty != nil && c.Difficulty != *q.Difficulty {
		return false
	}
	if q.Subtopic != "" && c.Subtopic != q.Subtopic {
		return false
	}
	return !slices.Contains(q.Exclude, c.ID)
}

// Lookup returns the candidate with the given id.
func (p *Pool) Lookup(id domain.QuestionID) (Candidate, bool) {
	for _, c := range p.cands {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}
