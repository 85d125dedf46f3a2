package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abhisek/mentalmath/internal/domain"
)

// StartParams are the inputs to Tracker.Start.
type StartParams struct {
	ID         domain.SessionID
	LearnerID  domain.LearnerID
	TopicOrder []domain.Topic
	TimeBudget float64
}

// Tracker owns the session lifecycle on top of a Repository.
type Tracker struct {
	repo Repository
	now  func() time.Time

	mu    sync.Mutex
	locks map[domain.SessionID]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker.
func NewTracker(repo Repository, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		locks: make(map[domain.SessionID]*keyLock),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Now returns the tracker's current time.
func (t *Tracker) Now() time.Time { return t.now() }

// Start creates a session, generating an id when none is supplied.
func (t *Tracker) Start(ctx context.Context, p StartParams) (*Session, error) {
	if len(p.TopicOrder) == 0 {
		return nil, domain.Invalid("topicOrder", "must name at least one topic")
	}
	if p.TimeBudget < 0 {
		return nil, domain.Invalid("timeBudget", "must not be negative")
	}

	id := p.ID
	if id == "" {
		id = domain.NewSessionID()
	}

	s := &Session{
		ID:         id,
		LearnerID:  p.LearnerID,
		TopicOrder: p.TopicOrder,
		TimeBudget: p.TimeBudget,
		StartedAt:  t.now(),
		Events:     []Event{},
		Stats:      map[domain.Topic]Stats{},
		Feedback:   []Feedback{},
	}
	if err := t.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// Get returns the session.
func (t *Tracker) Get(ctx context.Context, id domain.SessionID) (*Session, error) {
	return t.repo.Get(ctx, id)
}

// Open returns the session, failing with domain.ErrSessionClosed when it
// has already ended.
func (t *Tracker) Open(ctx context.Context, id domain.SessionID) (*Session, error) {
	s, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Ended() {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionClosed)
	}
	return s, nil
}

// Record appends an event with optional feedback. A zero event timestamp
// is set to the current time.
func (t *Tracker) Record(ctx context.Context, id domain.SessionID, e Event, fb *Feedback) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if _, err := t.Open(ctx, id); err != nil {
		return err
	}

	now := t.now()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if fb != nil && fb.Timestamp.IsZero() {
		fb.Timestamp = now
	}
	return t.repo.Append(ctx, id, e, fb)
}

// End finalizes the session and returns its summary. summarize is called
// at most once per session to produce the free-text summary and may be nil.
// Ending an ended session returns the stored summary unchanged.
func (t *Tracker) End(ctx context.Context, id domain.SessionID, summarize func(context.Context, *Session) string) (Summary, error) {
	s, err := t.repo.Get(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	if s.Ended() {
		return Summarize(s), nil
	}

	s.Stats = ComputeStats(s.Events)
	text := ""
	if summarize != nil {
		text = summarize(ctx, s)
	}

	if err := t.repo.Finish(ctx, id, t.now(), text); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return Summary{}, err
		}
		return Summary{}, fmt.Errorf("failed to finish session: %w", err)
	}

	// Re-read so a concurrent End observes the same stored result.
	s, err = t.repo.Get(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(s), nil
}

// Lock serializes work on one session. The returned func releases it.
func (t *Tracker) Lock(id domain.SessionID) (unlock func()) {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &keyLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}
