package selector

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultFetchLimit caps the candidates fetched per tier.
	DefaultFetchLimit = 50

	// DefaultFetchTimeout bounds a single repository call.
	DefaultFetchTimeout = 2 * time.Second

	// budgetShare is the fraction of the remaining budget a question may
	// take before its weight is halved.
	budgetShare = 1.0 / 6.0

	overBudgetFactor = 0.5
	noHintsFactor    = 1.1
)

// Step is one filtering tier of a selection plan.
type Step struct {
	Tier  Tier
	Query Query
}

// Plan returns the ordered filtering steps for req. The remedial path tries
// the same level and one level lower within the subtopic before falling
// back to the progress steps.
func Plan(req Request, limit int) []Step {
	var steps []Step

	if req.Remedial {
		same := req.Current
		steps = append(steps, Step{TierSameLevel, Query{
			Topic: req.Topic, Difficulty: &same, Subtopic: req.Subtopic, Exclude: req.Exclude, Limit: limit,
		}})
		if lower := req.Current - 1; lower.Valid() {
			steps = append(steps, Step{TierLowerLevel, Query{
				Topic: req.Topic, Difficulty: &lower, Subtopic: req.Subtopic, Exclude: req.Exclude, Limit: limit,
			}})
		}
	}

	target := req.Target
	steps = append(steps,
		Step{TierTarget, Query{Topic: req.Topic, Difficulty: &target, Exclude: req.Exclude, Limit: limit}},
		Step{TierAnyLevel, Query{Topic: req.Topic, Exclude: req.Exclude, Limit: limit}},
	)
	return steps
}

// Selector performs tiered filtering and a weighted random draw.
type Selector struct {
	repo    Repository
	limit   int
	timeout time.Duration
	log     zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithSeed makes the draw deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Selector) { s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithLimit overrides the per-tier fetch limit.
func WithLimit(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithTimeout overrides the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Selector) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Selector) { s.log = l }
}

// New creates a Selector over repo.
func New(repo Repository, opts ...Option) *Selector {
	s := &Selector{
		repo:    repo,
		limit:   DefaultFetchLimit,
		timeout: DefaultFetchTimeout,
		log:     zerolog.Nop(),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SelectNext walks the plan for req and draws from the first non-empty
// tier. It returns (nil, nil) when every tier is empty, which means the
// topic's pool is exhausted. A repository failure is reported as a
// *domain.DataUnavailableError.
func (s *Selector) SelectNext(ctx context.Context, req Request) (*Selection, error) {
	excluded := make(map[domain.QuestionID]struct{}, len(req.Exclude))
	for _, id := range req.Exclude {
		excluded[id] = struct{}{}
	}

	for _, step := range Plan(req, s.limit) {
		cands, err := s.fetch(ctx, step.Query)
		if err != nil {
			return nil, domain.Unavailable("question repository", err)
		}

		cands = dropExcluded(cands, excluded)
		if len(cands) == 0 {
			s.log.Debug().Str("topic", string(req.Topic)).Stringer("tier", step.Tier).Msg("tier empty")
			continue
		}

		return &Selection{
			Candidate:  s.draw(cands, req.RemainingBudget),
			Tier:       step.Tier,
			Reason:     req.Reason(),
			Considered: len(cands),
		}, nil
	}
	return nil, nil
}

func (s *Selector) fetch(ctx context.Context, q Query) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.Fetch(ctx, q)
}

func (s *Selector) draw(cands []Candidate, budget float64) Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Draw(cands, budget, s.rng)
}

func dropExcluded(cands []Candidate, excluded map[domain.QuestionID]struct{}) []Candidate {
	if len(excluded) == 0 {
		return cands
	}
	out := cands[:0:0]
	for _, c := range cands {
		if _, skip := excluded[c.ID]; !skip {
			out = append(out, c)
		}
	}
	return out
}

// Weight scores a candidate for the draw: halved when it would take more
// than a sixth of the remaining budget, boosted by 10% when it has no hints.
func Weight(c Candidate, budget float64) float64 {
	w := 1.0
	if budget > 0 && c.EstimatedTime > budget*budgetShare {
		w *= overBudgetFactor
	}
	if len(c.Hints) == 0 {
		w *= noHintsFactor
	}
	return w
}

// Draw picks one candidate with probability proportional to its Weight.
// cands must be non-empty.
func Draw(cands []Candidate, budget float64, r *rand.Rand) Candidate {
	total := 0.0
	weights := make([]float64, len(cands))
	for i, c := range cands {
		weights[i] = Weight(c, budget)
		total += weights[i]
	}

	x := r.Float64() * total
	for i, w := range weights {
		if x < w {
			return cands[i]
		}
		x -= w
	}
	return cands[len(cands)-1]
}
