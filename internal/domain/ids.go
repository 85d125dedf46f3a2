package domain

import "github.com/google/uuid"

// SessionID identifies a practice session. Opaque to the engine.
type SessionID string

// LearnerID identifies the learner who owns a session. May be empty for
// anonymous sessions.
type LearnerID string

// QuestionID identifies a question in the external question bank.
type QuestionID string

// Topic is a subject area such as "Arithmetic" or "Algebra".
type Topic string

// NewSessionID returns a new globally unique session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

func (id SessionID) String() string  { return string(id) }
func (id LearnerID) String() string  { return string(id) }
func (id QuestionID) String() string { return string(id) }
func (t Topic) String() string       { return string(t) }
