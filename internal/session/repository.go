package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/mastery"
)

// Repository persists sessions. Implementations must be safe for
// concurrent use.
type Repository interface {
	// Create stores a new session. Returns domain.ErrSessionExists on
	// duplicate ids.
	Create(ctx context.Context, s *Session) error

	// Get returns a copy of the session or domain.ErrSessionNotFound.
	Get(ctx context.Context, id domain.SessionID) (*Session, error)

	// Append adds an event and optional feedback in one atomic step.
	Append(ctx context.Context, id domain.SessionID, e Event, fb *Feedback) error

	// Finish marks the session ended and stores the summary text.
	Finish(ctx context.Context, id domain.SessionID, endedAt time.Time, summaryText string) error
}

// MemoryRepository is a process-local Repository. It also serves as an
// attempt log for learners with sessions in memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
	// attempts is the global answer log in commit order.
	attempts []loggedAttempt
}

type loggedAttempt struct {
	learner domain.LearnerID
	topic   domain.Topic
	correct bool
	taken   float64
}

var (
	_ Repository            = (*MemoryRepository)(nil)
	_ mastery.AttemptReader = (*MemoryRepository)(nil)
)

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[domain.SessionID]*Session)}
}

func (r *MemoryRepository) Create(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session %s: %w", s.ID, domain.ErrSessionExists)
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id domain.SessionID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) Append(_ context.Context, id domain.SessionID, e Event, fb *Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if s.Ended() {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionClosed)
	}
	s.Events = append(s.Events, e)
	r.attempts = append(r.attempts, loggedAttempt{learner: s.LearnerID, topic: e.Topic, correct: e.Correct, taken: e.TimeTaken})
	if fb != nil {
		s.Feedback = append(s.Feedback, *fb)
	}
	s.Stats = ComputeStats(s.Events)
	return nil
}

func (r *MemoryRepository) Finish(_ context.Context, id domain.SessionID, endedAt time.Time, summaryText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if s.Ended() {
		return nil
	}
	s.EndedAt = &endedAt
	s.SummaryText = summaryText
	s.Stats = ComputeStats(s.Events)
	return nil
}

// ReadRecent implements mastery.AttemptReader over every session owned by
// the learner, most recently committed first.
func (r *MemoryRepository) ReadRecent(_ context.Context, learner domain.LearnerID, topic domain.Topic, limit int) ([]mastery.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []mastery.Attempt
	for i := len(r.attempts) - 1; i >= 0; i-- {
		a := r.attempts[i]
		if a.learner != learner || a.topic != topic {
			continue
		}
		t := a.taken
		out = append(out, mastery.Attempt{Correct: a.correct, TimeTaken: &t})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
