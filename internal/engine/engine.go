// Package engine orchestrates one adaptive practice decision: it records
// an answer, estimates mastery, adapts difficulty, selects the next
// question and composes the feedback message.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhisek/mentalmath/internal/catalog"
	"github.com/abhisek/mentalmath/internal/composer"
	"github.com/abhisek/mentalmath/internal/difficulty"
	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/mastery"
	"github.com/abhisek/mentalmath/internal/selector"
	"github.com/abhisek/mentalmath/internal/session"
)

// traceTimeout bounds a decision trace write.
const traceTimeout = 2 * time.Second

// Engine is safe for concurrent use. Decisions on one session are
// serialized; different sessions proceed in parallel.
type Engine struct {
	catalog   *catalog.Catalog
	tracker   *session.Tracker
	selector  *selector.Selector
	composer  *composer.Composer
	estimator *mastery.Estimator
	traces    TraceWriter

	defaultBudget float64
	log           zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEstimator enables mastery-aware difficulty adaptation for sessions
// that name a learner.
func WithEstimator(e *mastery.Estimator) Option {
	return func(en *Engine) { en.estimator = e }
}

// WithTraceWriter records a Trace for every decision.
func WithTraceWriter(w TraceWriter) Option {
	return func(en *Engine) { en.traces = w }
}

// WithDefaultBudget sets the time budget, in seconds, of sessions started
// without one.
func WithDefaultBudget(seconds float64) Option {
	return func(en *Engine) {
		if seconds > 0 {
			en.defaultBudget = seconds
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(en *Engine) { en.log = l }
}

// New creates an Engine.
func New(cat *catalog.Catalog, tracker *session.Tracker, sel *selector.Selector, comp *composer.Composer, opts ...Option) *Engine {
	e := &Engine{
		catalog:  cat,
		tracker:  tracker,
		selector: sel,
		composer: comp,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// StartRequest opens a session.
type StartRequest struct {
	SessionID  domain.SessionID `json:"sessionId,omitempty"`
	LearnerID  domain.LearnerID `json:"userId,omitempty"`
	TopicOrder []domain.Topic   `json:"topicOrder"`
	// TimeBudget is in seconds. Nil uses the engine default.
	TimeBudget *float64 `json:"timeBudget,omitempty"`
}

// StartSession validates the topic order against the catalog and creates
// the session.
func (e *Engine) StartSession(ctx context.Context, req StartRequest) (*session.Session, error) {
	if len(req.TopicOrder) == 0 {
		return nil, domain.Invalid("topicOrder", "must name at least one topic")
	}
	for _, t := range req.TopicOrder {
		if !e.catalog.Has(t) {
			return nil, domain.Invalid("topicOrder", "unknown topic %q", t)
		}
	}

	budget := e.defaultBudget
	if req.TimeBudget != nil {
		budget = *req.TimeBudget
	}

	s, err := e.tracker.Start(ctx, session.StartParams{
		ID:         req.SessionID,
		LearnerID:  req.LearnerID,
		TopicOrder: req.TopicOrder,
		TimeBudget: budget,
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().
		Str("session_id", string(s.ID)).
		Str("learner", string(s.LearnerID)).
		Int("topics", len(s.TopicOrder)).
		Msg("session started")
	return s, nil
}

// AnswerRequest reports one answered question.
type AnswerRequest struct {
	SessionID     domain.SessionID  `json:"sessionId"`
	QuestionID    domain.QuestionID `json:"questionId"`
	Topic         domain.Topic      `json:"topic"`
	Subtopic      string            `json:"subtopic,omitempty"`
	Difficulty    domain.Difficulty `json:"difficulty"`
	Correct       bool              `json:"wasCorrect"`
	TimeTaken     float64           `json:"timeTaken"`
	EstimatedTime *float64          `json:"estimatedTime,omitempty"`
	Answer        string            `json:"answer,omitempty"`
}

func (r AnswerRequest) event() session.Event {
	return session.Event{
		QuestionID:    r.QuestionID,
		Topic:         r.Topic,
		Subtopic:      r.Subtopic,
		Difficulty:    r.Difficulty,
		Correct:       r.Correct,
		TimeTaken:     r.TimeTaken,
		EstimatedTime: r.EstimatedTime,
		Answer:        r.Answer,
	}
}

// Decision is the engine's response to an answer.
type Decision struct {
	// NextQuestionID is nil when the topic's pool is exhausted.
	NextQuestionID   *domain.QuestionID  `json:"nextQuestionId"`
	NextQuestion     *selector.Candidate `json:"nextQuestion,omitempty"`
	NextDifficulty   domain.Difficulty   `json:"nextDifficulty"`
	StrategyTip      string              `json:"strategyTip"`
	Message          string              `json:"message"`
	ReflectionPrompt *string             `json:"reflectionPrompt"`
	// Mastery is nil when the session has no learner or no estimator is
	// configured.
	Mastery   *float64        `json:"mastery,omitempty"`
	Reason    selector.Reason `json:"reason"`
	Tier      string          `json:"tier"`
	Generated bool            `json:"generated"`
}

// SubmitAnswer records the answer and returns the next decision. Every
// read happens before the event is committed, so an error leaves the
// session unchanged.
func (e *Engine) SubmitAnswer(ctx context.Context, req AnswerRequest) (*Decision, error) {
	ev := req.event()
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	unlock := e.tracker.Lock(req.SessionID)
	defer unlock()

	s, err := e.tracker.Open(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	// Catalog topics outside the session's order are accepted and listed
	// after it in the summary.
	if !e.catalog.Has(req.Topic) {
		return nil, domain.Invalid("topic", "unknown topic %q", req.Topic)
	}

	m, err := e.masteryWith(ctx, s.LearnerID, req)
	if err != nil {
		return nil, err
	}

	var next domain.Difficulty
	if m != nil {
		next, err = difficulty.NextWithMastery(req.Difficulty, req.Correct, req.TimeTaken, req.EstimatedTime, *m)
	} else {
		next, err = difficulty.Next(req.Difficulty, req.Correct, req.TimeTaken, req.EstimatedTime)
	}
	if err != nil {
		return nil, err
	}

	after := s.Clone()
	after.Events = append(after.Events, ev)
	sel, err := e.selector.SelectNext(ctx, selector.Request{
		Topic:           req.Topic,
		Subtopic:        req.Subtopic,
		Current:         req.Difficulty,
		Target:          next,
		Remedial:        !req.Correct,
		Exclude:         after.AnsweredIDs(),
		RemainingBudget: after.RemainingBudget(),
	})
	if err != nil {
		return nil, err
	}

	tip := composer.PickTip(e.catalog.Tips(req.Topic), req.Correct, req.TimeTaken, req.EstimatedTime)
	msg := e.composer.Compose(ctx, composer.Context{
		Topic:          req.Topic,
		Correct:        req.Correct,
		TimeTaken:      req.TimeTaken,
		Estimated:      req.EstimatedTime,
		Mastery:        m,
		Difficulty:     req.Difficulty,
		NextDifficulty: next,
		Tip:            tip,
	})

	fb := &session.Feedback{
		Message:     msg.Text,
		Kind:        session.KindFor(req.Correct),
		StrategyTip: tip,
	}
	if err := e.tracker.Record(ctx, req.SessionID, ev, fb); err != nil {
		return nil, err
	}
	if m != nil {
		e.estimator.Invalidate(ctx, s.LearnerID, req.Topic)
	}

	d := &Decision{
		NextDifficulty: next,
		StrategyTip:    tip,
		Message:        msg.Text,
		Mastery:        m,
		Reason:         selector.Request{Remedial: !req.Correct}.Reason(),
		Tier:           "none",
		Generated:      msg.Generated,
	}
	if p := composer.ReflectionPrompt(req.Correct); p != "" {
		d.ReflectionPrompt = &p
	}
	if sel != nil {
		id := sel.Candidate.ID
		c := sel.Candidate
		d.NextQuestionID = &id
		d.NextQuestion = &c
		d.Tier = sel.Tier.String()
	}

	e.writeTrace(ctx, req, d, fb.Timestamp)

	e.log.Debug().
		Str("session_id", string(req.SessionID)).
		Str("question_id", string(req.QuestionID)).
		Bool("correct", req.Correct).
		Int("next_difficulty", int(next)).
		Str("tier", d.Tier).
		Msg("decision made")
	return d, nil
}

// masteryWith estimates mastery including the attempt being submitted.
// It returns nil when the session is anonymous or no estimator is set.
func (e *Engine) masteryWith(ctx context.Context, learner domain.LearnerID, req AnswerRequest) (*float64, error) {
	if e.estimator == nil || learner == "" {
		return nil, nil
	}
	history, err := e.estimator.History(ctx, learner, req.Topic)
	if err != nil {
		return nil, err
	}
	took := req.TimeTaken
	window := append([]mastery.Attempt{{Correct: req.Correct, TimeTaken: &took}}, history...)
	m := mastery.Estimate(window)
	return &m, nil
}

func (e *Engine) writeTrace(ctx context.Context, req AnswerRequest, d *Decision, at time.Time) {
	if e.traces == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), traceTimeout)
	defer cancel()

	t := Trace{
		SessionID:      req.SessionID,
		PrevQuestionID: req.QuestionID,
		NextQuestionID: d.NextQuestionID,
		NextDifficulty: d.NextDifficulty,
		Mastery:        d.Mastery,
		Reason:         string(d.Reason),
		Tier:           d.Tier,
		Message:        d.Message,
		Generated:      d.Generated,
		Timestamp:      at,
	}
	if err := e.traces.WriteTrace(ctx, t); err != nil {
		e.log.Warn().Err(err).Str("session_id", string(req.SessionID)).Msg("decision trace write failed")
	}
}

// EndSession finalizes the session. Ending it again returns the same
// summary.
func (e *Engine) EndSession(ctx context.Context, id domain.SessionID) (session.Summary, error) {
	unlock := e.tracker.Lock(id)
	defer unlock()

	sum, err := e.tracker.End(ctx, id, e.composer.Summarize)
	if err != nil {
		return session.Summary{}, err
	}
	e.log.Info().
		Str("session_id", string(id)).
		Float64("accuracy", sum.OverallAccuracy).
		Msg("session ended")
	return sum, nil
}

// Session returns the current state of a session.
func (e *Engine) Session(ctx context.Context, id domain.SessionID) (*session.Session, error) {
	return e.tracker.Get(ctx, id)
}

// ErrMasteryDisabled is returned by Mastery when no estimator is set.
var ErrMasteryDisabled = errors.New("mastery estimation is not configured")

// Mastery returns the learner's current mastery on topic.
func (e *Engine) Mastery(ctx context.Context, learner domain.LearnerID, topic domain.Topic) (float64, error) {
	if learner == "" {
		return 0, domain.Invalid("userId", "is required")
	}
	if topic == "" {
		return 0, domain.Invalid("topic", "is required")
	}
	if e.estimator == nil {
		return 0, domain.Unavailable("attempt log", ErrMasteryDisabled)
	}
	m, err := e.estimator.Mastery(ctx, learner, topic)
	if err != nil {
		return 0, fmt.Errorf("mastery for %s/%s: %w", learner, topic, err)
	}
	return m, nil
}

// Topics returns the catalog's topic names.
func (e *Engine) Topics() []domain.Topic {
	return e.catalog.Names()
}
