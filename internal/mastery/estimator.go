package mastery

import (
	"context"
	"time"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/rs/zerolog"
)

// AttemptReader reads a learner's recent attempts on a topic, most recent
// first, returning at most limit entries.
type AttemptReader interface {
	ReadRecent(ctx context.Context, learner domain.LearnerID, topic domain.Topic, limit int) ([]Attempt, error)
}

// Cache stores computed mastery values. Implementations must be safe for
// concurrent use. A cache failure is never fatal.
type Cache interface {
	Get(ctx context.Context, learner domain.LearnerID, topic domain.Topic) (float64, bool, error)
	Set(ctx context.Context, learner domain.LearnerID, topic domain.Topic, value float64) error
	Delete(ctx context.Context, learner domain.LearnerID, topic domain.Topic) error
}

// DefaultReadTimeout bounds a single attempt-log read.
const DefaultReadTimeout = 2 * time.Second

// Estimator computes mastery from the attempt log.
type Estimator struct {
	reader  AttemptReader
	cache   Cache
	timeout time.Duration
	log     zerolog.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithCache enables caching of computed mastery values.
func WithCache(c Cache) Option {
	return func(e *Estimator) { e.cache = c }
}

// WithTimeout overrides the per-read timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used for cache warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Estimator) { e.log = l }
}

// NewEstimator creates an Estimator reading from reader.
func NewEstimator(reader AttemptReader, opts ...Option) *Estimator {
	e := &Estimator{
		reader:  reader,
		timeout: DefaultReadTimeout,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// History reads the most recent HistoryLimit attempts. A read failure or
// timeout is reported as a *domain.DataUnavailableError.
func (e *Estimator) History(ctx context.Context, learner domain.LearnerID, topic domain.Topic) ([]Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	history, err := e.reader.ReadRecent(ctx, learner, topic, HistoryLimit)
	if err != nil {
		return nil, domain.Unavailable("attempt log", err)
	}
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}
	return history, nil
}

// Mastery returns the learner's mastery on topic, consulting the cache first.
func (e *Estimator) Mastery(ctx context.Context, learner domain.LearnerID, topic domain.Topic) (float64, error) {
	if e.cache != nil {
		v, ok, err := e.cache.Get(ctx, learner, topic)
		if err != nil {
			e.log.Warn().Err(err).Str("learner", string(learner)).Str("topic", string(topic)).Msg("mastery cache read failed")
		} else if ok {
			return v, nil
		}
	}

	history, err := e.History(ctx, learner, topic)
	if err != nil {
		return 0, err
	}
	m := Estimate(history)

	if e.cache != nil {
		if err := e.cache.Set(ctx, learner, topic, m); err != nil {
			e.log.Warn().Err(err).Str("learner", string(learner)).Str("topic", string(topic)).Msg("mastery cache write failed")
		}
	}
	return m, nil
}

// Invalidate drops any cached value for learner and topic. Call after a new
// attempt has been committed.
func (e *Estimator) Invalidate(ctx context.Context, learner domain.LearnerID, topic domain.Topic) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Delete(ctx, learner, topic); err != nil {
		e.log.Warn().Err(err).Str("learner", string(learner)).Str("topic", string(topic)).Msg("mastery cache invalidation failed")
	}
}
