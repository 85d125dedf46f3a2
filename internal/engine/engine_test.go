package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mentalmath/internal/catalog"
	"github.com/abhisek/mentalmath/internal/composer"
	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/mastery"
	"github.com/abhisek/mentalmath/internal/selector"
	"github.com/abhisek/mentalmath/internal/session"
)

type genFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

func (f genFunc) GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

type failingReader struct{}

func (failingReader) ReadRecent(context.Context, domain.LearnerID, domain.Topic, int) ([]mastery.Attempt, error) {
	return nil, errors.New("connection refused")
}

type failingRepo struct{}

func (failingRepo) Fetch(context.Context, selector.Query) ([]selector.Candidate, error) {
	return nil, errors.New("connection refused")
}

type traceLog struct {
	mu     sync.Mutex
	traces []Trace
	err    error
}

func (l *traceLog) WriteTrace(_ context.Context, t Trace) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.traces = append(l.traces, t)
	return l.err
}

func pool() []selector.Candidate {
	return []selector.Candidate{
		{ID: "ar-3a", Topic: "Arithmetic", Subtopic: "Multiplication", Difficulty: 3, EstimatedTime: 20},
		{ID: "ar-3b", Topic: "Arithmetic", Subtopic: "Multiplication", Difficulty: 3, EstimatedTime: 20},
		{ID: "ar-4a", Topic: "Arithmetic", Subtopic: "Multiplication", Difficulty: 4, EstimatedTime: 30},
		{ID: "ar-2a", Topic: "Arithmetic", Subtopic: "Estimation", Difficulty: 2, EstimatedTime: 15},
		{ID: "al-1a", Topic: "Algebra", Difficulty: 1, EstimatedTime: 20},
		{ID: "al-1b", Topic: "Algebra", Difficulty: 1, EstimatedTime: 20},
		{ID: "al-1c", Topic: "Algebra", Difficulty: 1, EstimatedTime: 20},
	}
}

type fixture struct {
	eng    *Engine
	repo   *session.MemoryRepository
	traces *traceLog
}

type fixtureOpts struct {
	gen     composer.TextGenerator
	cands   []selector.Candidate
	selRepo selector.Repository
	reader  mastery.AttemptReader
	timeout time.Duration
	extra   []Option
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	repo := session.NewMemoryRepository()
	if o.cands == nil {
		o.cands = pool()
	}
	var selRepo selector.Repository = selector.NewPool(o.cands...)
	if o.selRepo != nil {
		selRepo = o.selRepo
	}
	var reader mastery.AttemptReader = repo
	if o.reader != nil {
		reader = o.reader
	}
	compOpts := []composer.Option{}
	if o.timeout > 0 {
		compOpts = append(compOpts, composer.WithTimeout(o.timeout), composer.WithSummaryTimeout(o.timeout))
	}
	traces := &traceLog{}
	opts := append([]Option{
		WithEstimator(mastery.NewEstimator(reader)),
		WithTraceWriter(traces),
	}, o.extra...)

	eng := New(
		catalog.Default(),
		session.NewTracker(repo),
		selector.New(selRepo, selector.WithSeed(7)),
		composer.New(o.gen, compOpts...),
		opts...,
	)
	return &fixture{eng: eng, repo: repo, traces: traces}
}

func (f *fixture) start(t *testing.T, learner domain.LearnerID, topics ...domain.Topic) domain.SessionID {
	t.Helper()
	s, err := f.eng.StartSession(context.Background(), StartRequest{LearnerID: learner, TopicOrder: topics})
	require.NoError(t, err)
	return s.ID
}

func est(v float64) *float64 { return &v }

func TestSubmitAnswerCorrectAndQuick(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.start(t, "", "Arithmetic")

	d, err := f.eng.SubmitAnswer(context.Background(), AnswerRequest{
		SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Subtopic: "Multiplication",
		Difficulty: 3, Correct: true, TimeTaken: 10, EstimatedTime: est(20),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Difficulty(4), d.NextDifficulty)
	assert.Equal(t, "", d.StrategyTip)
	assert.Equal(t, "Nice work, keep going!", d.Message)
	assert.False(t, d.Generated)
	assert.Nil(t, d.ReflectionPrompt)
	assert.Nil(t, d.Mastery, "anonymous sessions have no mastery")
	assert.Equal(t, selector.ReasonProgress, d.Reason)
	assert.Equal(t, "target", d.Tier)
	require.NotNil(t, d.NextQuestionID)
	assert.Equal(t, domain.QuestionID("ar-4a"), *d.NextQuestionID)
	require.NotNil(t, d.NextQuestion)
	assert.Equal(t, 30.0, d.NextQuestion.EstimatedTime)

	s, err := f.eng.Session(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, s.Events, 1)
	require.Len(t, s.Feedback, 1)
	assert.Equal(t, session.FeedbackEncouragement, s.Feedback[0].Kind)
	assert.False(t, s.Events[0].Timestamp.IsZero())
}

func TestSubmitAnswerIncorrectTakesRemedialPath(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.start(t, "", "Arithmetic")
	tip := catalog.Default().Tips("Arithmetic")[0]

	d, err := f.eng.SubmitAnswer(context.Background(), AnswerRequest{
		SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Subtopic: "Multiplication",
		Difficulty: 3, Correct: false, TimeTaken: 25, EstimatedTime: est(20),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Difficulty(2), d.NextDifficulty)
	assert.Equal(t, tip, d.StrategyTip)
	assert.Equal(t, "Don't worry, you'll get it with practice. Try this tip: "+tip, d.Message)
	require.NotNil(t, d.ReflectionPrompt)
	assert.Equal(t, "What method did you try?", *d.ReflectionPrompt)
	assert.Equal(t, selector.ReasonRemedial, d.Reason)
	assert.Equal(t, "same-level", d.Tier)
	require.NotNil(t, d.NextQuestionID)
	assert.Equal(t, domain.QuestionID("ar-3b"), *d.NextQuestionID)

	s, err := f.eng.Session(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, s.Feedback, 1)
	assert.Equal(t, session.FeedbackHint, s.Feedback[0].Kind)
	assert.Equal(t, tip, s.Feedback[0].StrategyTip)
}

func TestSubmitAnswerNeverRepeatsServedQuestions(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.start(t, "", "Algebra")
	ctx := context.Background()

	served := map[domain.QuestionID]bool{"al-1a": true}
	q := domain.QuestionID("al-1a")
	for i := 0; i < 2; i++ {
		d, err := f.eng.SubmitAnswer(ctx, AnswerRequest{
			SessionID: id, QuestionID: q, Topic: "Algebra", Difficulty: 1, Correct: true, TimeTaken: 40,
		})
		require.NoError(t, err)
		require.NotNil(t, d.NextQuestionID)
		assert.False(t, served[*d.NextQuestionID], "question %s served twice", *d.NextQuestionID)
		served[*d.NextQuestionID] = true
		q = *d.NextQuestionID
	}

	d, err := f.eng.SubmitAnswer(ctx, AnswerRequest{
		SessionID: id, QuestionID: q, Topic: "Algebra", Difficulty: 1, Correct: true, TimeTaken: 40,
	})
	require.NoError(t, err)
	assert.Nil(t, d.NextQuestionID, "pool exhausted")
	assert.Equal(t, "none", d.Tier)
}

func TestSubmitAnswerMasteryGatesPromotion(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	fresh := f.start(t, "new-learner", "Arithmetic")
	d, err := f.eng.SubmitAnswer(ctx, AnswerRequest{
		SessionID: fresh, QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 3,
		Correct: true, TimeTaken: 10, EstimatedTime: est(20),
	})
	require.NoError(t, err)
	require.NotNil(t, d.Mastery)
	assert.Equal(t, 1.0, *d.Mastery)
	assert.Equal(t, domain.Difficulty(4), d.NextDifficulty)

	struggling := f.start(t, "struggling", "Arithmetic")
	for _, q := range []domain.QuestionID{"ar-3a", "ar-3b", "ar-2a"} {
		_, err := f.eng.SubmitAnswer(ctx, AnswerRequest{
			SessionID: struggling, QuestionID: q, Topic: "Arithmetic", Difficulty: 3,
			Correct: false, TimeTaken: 10,
		})
		require.NoError(t, err)
	}
	d, err = f.eng.SubmitAnswer(ctx, AnswerRequest{
		SessionID: struggling, QuestionID: "ar-4a", Topic: "Arithmetic", Difficulty: 3,
		Correct: true, TimeTaken: 10, EstimatedTime: est(20),
	})
	require.NoError(t, err)
	require.NotNil(t, d.Mastery)
	// 1 of 4 correct, all quick: 0.6*0.25 + 0.4*1.
	assert.InDelta(t, 0.55, *d.Mastery, 1e-9)
	assert.Equal(t, domain.Difficulty(3), d.NextDifficulty, "no promotion below the mastery gate")
}

func TestSubmitAnswerAttemptLogFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{reader: failingReader{}})
	id := f.start(t, "u1", "Arithmetic")

	_, err := f.eng.SubmitAnswer(context.Background(), AnswerRequest{
		SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 3, Correct: true, TimeTaken: 10,
	})
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	s, err := f.eng.Session(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, s.Events, "a failed decision records nothing")
}

func TestSubmitAnswerCandidateFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{selRepo: failingRepo{}})
	id := f.start(t, "", "Arithmetic")

	_, err := f.eng.SubmitAnswer(context.Background(), AnswerRequest{
		SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 3, Correct: true, TimeTaken: 10,
	})
	var unavailable *domain.DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "question repository", unavailable.Source)

	s, err := f.eng.Session(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, s.Events)
	assert.Empty(t, f.traces.traces)
}

func TestSubmitAnswerGeneratorTimeoutFallsBack(t *testing.T) {
	block := genFunc(func(ctx context.Context, _ string, _ int) (string, error) {
		time.Sleep(time.Second)
		return "too late", nil
	})
	f := newFixture(t, fixtureOpts{gen: block, timeout: 30 * time.Millisecond})
	id := f.start(t, "", "Arithmetic")

	start := time.Now()
	d, err := f.eng.SubmitAnswer(context.Background(), AnswerRequest{
		SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 3, Correct: true, TimeTaken: 10,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, "Nice work, keep going!", d.Message)
	assert.False(t, d.Generated)
}

func TestSubmitAnswerUsesGeneratedMessage(t *testing.T) {
	var prompts []string
	gen := genFunc(func(_ context.Context, prompt string, _ int) (string, error) {
		prompts = append(prompts, prompt)
		return "  Great speed on that one!  ", nil
	})
	f := newFixture(t, fixtureOpts{gen: gen})
	id := f.start(t, "u1", "Arithmetic")

	d, err := f.eng.SubmitAnswer(context.Background(), AnswerRequest{
		SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 3, Correct: true, TimeTaken: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Great speed on that one!", d.Message)
	assert.True(t, d.Generated)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Arithmetic")
	assert.Contains(t, prompts[0], "mastery")

	s, err := f.eng.Session(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Great speed on that one!", s.Feedback[0].Message)
}

func TestSubmitAnswerRejections(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	id := f.start(t, "", "Arithmetic")

	tests := []struct {
		name string
		req  AnswerRequest
		want error
	}{
		{"unknown session", AnswerRequest{SessionID: "nope", QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 3}, domain.ErrSessionNotFound},
		{"difficulty too high", AnswerRequest{SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 6}, domain.ErrInvalidInput},
		{"difficulty zero", AnswerRequest{SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic"}, domain.ErrInvalidInput},
		{"negative time", AnswerRequest{SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 3, TimeTaken: -1}, domain.ErrInvalidInput},
		{"missing question", AnswerRequest{SessionID: id, Topic: "Arithmetic", Difficulty: 3}, domain.ErrInvalidInput},
		{"topic not in catalog", AnswerRequest{SessionID: id, QuestionID: "bg-1", Topic: "Bogus", Difficulty: 3, Correct: true, TimeTaken: 5}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.SubmitAnswer(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	s, err := f.eng.Session(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, s.Events)
	assert.Empty(t, s.Feedback)

	_, err = f.eng.EndSession(ctx, id)
	require.NoError(t, err)
	_, err = f.eng.SubmitAnswer(ctx, AnswerRequest{SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 3})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}

func TestSubmitAnswerConcurrentOnOneSession(t *testing.T) {
	var cands []selector.Candidate
	for i := 0; i < 40; i++ {
		cands = append(cands, selector.Candidate{ID: domain.QuestionID(fmt.Sprintf("q%02d", i)), Topic: "Arithmetic", Difficulty: 3, EstimatedTime: 20})
	}
	f := newFixture(t, fixtureOpts{cands: cands})
	id := f.start(t, "u1", "Arithmetic")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.eng.SubmitAnswer(context.Background(), AnswerRequest{
				SessionID: id, QuestionID: cands[i].ID, Topic: "Arithmetic", Difficulty: 3,
				Correct: i%2 == 0, TimeTaken: 12,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s, err := f.eng.Session(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, s.Events, 20)
	assert.Len(t, s.Feedback, 20)
	assert.Len(t, f.traces.traces, 20)
}

func TestDecisionTrace(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.start(t, "u1", "Arithmetic")
	f.traces.err = errors.New("disk full")

	d, err := f.eng.SubmitAnswer(context.Background(), AnswerRequest{
		SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 3, Correct: true, TimeTaken: 10, EstimatedTime: est(20),
	})
	require.NoError(t, err, "trace failures never fail the decision")

	require.Len(t, f.traces.traces, 1)
	tr := f.traces.traces[0]
	assert.Equal(t, id, tr.SessionID)
	assert.Equal(t, domain.QuestionID("ar-3a"), tr.PrevQuestionID)
	assert.Equal(t, d.NextQuestionID, tr.NextQuestionID)
	assert.Equal(t, d.NextDifficulty, tr.NextDifficulty)
	assert.Equal(t, d.Mastery, tr.Mastery)
	assert.Equal(t, "progress", tr.Reason)
	assert.Equal(t, "target", tr.Tier)
	assert.Equal(t, d.Message, tr.Message)
	assert.False(t, tr.Timestamp.IsZero())
}

func TestStartSession(t *testing.T) {
	f := newFixture(t, fixtureOpts{extra: []Option{WithDefaultBudget(600)}})
	ctx := context.Background()

	s, err := f.eng.StartSession(ctx, StartRequest{TopicOrder: []domain.Topic{"Arithmetic", "Algebra"}})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 600.0, s.TimeBudget)
	assert.Empty(t, s.Events)
	assert.Equal(t, time.UTC, s.StartedAt.Location())

	zero := 0.0
	s, err = f.eng.StartSession(ctx, StartRequest{SessionID: "mine", TopicOrder: []domain.Topic{"Algebra"}, TimeBudget: &zero})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("mine"), s.ID)
	assert.Equal(t, 0.0, s.TimeBudget)

	_, err = f.eng.StartSession(ctx, StartRequest{SessionID: "mine", TopicOrder: []domain.Topic{"Algebra"}})
	assert.ErrorIs(t, err, domain.ErrSessionExists)

	_, err = f.eng.StartSession(ctx, StartRequest{TopicOrder: []domain.Topic{"Astrology"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.eng.StartSession(ctx, StartRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEndSession(t *testing.T) {
	calls := 0
	gen := genFunc(func(_ context.Context, prompt string, _ int) (string, error) {
		if len(prompt) > 0 && prompt[:7] == "Session" {
			calls++
			return "Solid session.", nil
		}
		return "", errors.New("feedback disabled")
	})
	f := newFixture(t, fixtureOpts{gen: gen})
	ctx := context.Background()
	id := f.start(t, "", "Algebra", "Arithmetic")

	_, err := f.eng.SubmitAnswer(ctx, AnswerRequest{SessionID: id, QuestionID: "al-1a", Topic: "Algebra", Difficulty: 1, Correct: true, TimeTaken: 10})
	require.NoError(t, err)
	_, err = f.eng.SubmitAnswer(ctx, AnswerRequest{SessionID: id, QuestionID: "al-1b", Topic: "Algebra", Difficulty: 1, Correct: false, TimeTaken: 20})
	require.NoError(t, err)

	sum, err := f.eng.EndSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Stats{Count: 2, Correct: 1, Accuracy: 50, AvgTime: 15}, sum.PerTopicStats["Algebra"])
	assert.Equal(t, 50.0, sum.OverallAccuracy)
	assert.Equal(t, []string{
		"Solid session.",
		"Review basics of Algebra and try 10 easy questions.",
	}, sum.Recommendations)
	assert.False(t, sum.EndedAt.IsZero())

	again, err := f.eng.EndSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, sum, again)
	assert.Equal(t, 1, calls)

	_, err = f.eng.EndSession(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEndSessionEmpty(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	id := f.start(t, "", "Algebra")

	sum, err := f.eng.EndSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum.OverallAccuracy)
	assert.Empty(t, sum.Recommendations)
}

func TestMastery(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	m, err := f.eng.Mastery(ctx, "u1", "Arithmetic")
	require.NoError(t, err)
	assert.Equal(t, mastery.NeutralPrior, m)

	id := f.start(t, "u1", "Arithmetic")
	_, err = f.eng.SubmitAnswer(ctx, AnswerRequest{SessionID: id, QuestionID: "ar-3a", Topic: "Arithmetic", Difficulty: 3, Correct: true, TimeTaken: 10})
	require.NoError(t, err)

	m, err = f.eng.Mastery(ctx, "u1", "Arithmetic")
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)

	_, err = f.eng.Mastery(ctx, "", "Arithmetic")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = newFixture(t, fixtureOpts{reader: failingReader{}}).eng.Mastery(ctx, "u1", "Arithmetic")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestMasteryDisabled(t *testing.T) {
	eng := New(catalog.Default(), session.NewTracker(session.NewMemoryRepository()),
		selector.New(selector.NewPool()), composer.New(nil))

	_, err := eng.Mastery(context.Background(), "u1", "Arithmetic")
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.ErrorIs(t, err, ErrMasteryDisabled)
}
