package composer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mentalmath/internal/catalog"
	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/llm"
	"github.com/abhisek/mentalmath/internal/session"
)

func f(v float64) *float64 { return &v }

type genFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

func (g genFunc) GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return g(ctx, prompt, maxTokens)
}

func TestPickTip(t *testing.T) {
	tips := catalog.Default().Tips("Arithmetic")
	require.GreaterOrEqual(t, len(tips), 2)

	tests := []struct {
		name      string
		tips      []string
		correct   bool
		timeTaken float64
		estimated *float64
		want      string
	}{
		{"incorrect gets first tip", tips, false, 5, f(20), tips[0]},
		{"correct and quick gets none", tips, true, 10, f(20), ""},
		{"correct but slow gets second tip", tips, true, 31, f(20), tips[1]},
		{"exactly 1.5x is not slow", tips, true, 30, f(20), ""},
		{"slow with single tip uses first", []string{"only"}, true, 100, f(20), "only"},
		{"no estimate never slow", tips, true, 1000, nil, ""},
		{"zero estimate never slow", tips, true, 1000, f(0), ""},
		{"no tips configured", nil, false, 5, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PickTip(tt.tips, tt.correct, tt.timeTaken, tt.estimated))
		})
	}
}

func TestPickTip_UnknownTopicUsesDefault(t *testing.T) {
	tips := catalog.Default().Tips("Geometry")
	assert.Equal(t, catalog.DefaultTip, PickTip(tips, false, 5, nil))
}

func TestFallback(t *testing.T) {
	assert.Equal(t, "Nice work, keep going!", Fallback(Context{Correct: true}))
	assert.Equal(t,
		"Don't worry, you'll get it with practice. Try this tip: Draw a diagram.",
		Fallback(Context{Correct: false, Tip: "Draw a diagram."}))
}

func TestReflectionPrompt(t *testing.T) {
	assert.Equal(t, "What method did you try?", ReflectionPrompt(false))
	assert.Empty(t, ReflectionPrompt(true))
}

func TestPrompt(t *testing.T) {
	p := Prompt(Context{
		Topic: "Algebra", Correct: false, TimeTaken: 42.5, Estimated: f(30),
		Mastery: f(0.42), Difficulty: 3, NextDifficulty: 2, Tip: "Isolate the variable.",
	})
	assert.Contains(t, p, "Algebra question incorrectly after 42.5s")
	assert.Contains(t, p, "expected about 30s")
	assert.Contains(t, p, "mastery of Algebra is 42%")
	assert.Contains(t, p, "Tip: Isolate the variable.")

	p = Prompt(Context{Topic: "Arithmetic", Correct: true, TimeTaken: 10, Difficulty: 3, NextDifficulty: 4})
	assert.Contains(t, p, "correctly in 10s")
	assert.Contains(t, p, "getting harder")
	assert.NotContains(t, p, "mastery")
	assert.NotContains(t, p, "Tip:")
}

func TestCompose_NilGenerator(t *testing.T) {
	c := New(nil)
	msg := c.Compose(context.Background(), Context{Correct: true})
	assert.Equal(t, Message{Text: "Nice work, keep going!"}, msg)
}

func TestCompose_UsesGeneratedText(t *testing.T) {
	var purpose string
	gen := genFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		purpose = llm.PurposeFrom(ctx)
		assert.Equal(t, DefaultMaxTokens, maxTokens)
		return "  Great job on that one!  \n", nil
	})

	msg := New(gen).Compose(context.Background(), Context{Topic: "Arithmetic", Correct: true})
	assert.Equal(t, Message{Text: "Great job on that one!", Generated: true}, msg)
	assert.Equal(t, "feedback", purpose)
}

func TestCompose_FallbackOnFailure(t *testing.T) {
	mc := Context{Topic: "Algebra", Correct: false, Tip: "Check your work."}
	want := Message{Text: "Don't worry, you'll get it with practice. Try this tip: Check your work."}

	tests := []struct {
		name string
		gen  genFunc
	}{
		{"error", func(context.Context, string, int) (string, error) { return "", errors.New("boom") }},
		{"blank", func(context.Context, string, int) (string, error) { return "   ", nil }},
		{"panic", func(context.Context, string, int) (string, error) { panic("bad provider") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, want, New(tt.gen).Compose(context.Background(), mc))
		})
	}
}

func TestCompose_TimeoutReturnsFallbackPromptly(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	// Ignores ctx on purpose: Compose must not wait for it.
	gen := genFunc(func(context.Context, string, int) (string, error) {
		<-release
		return "too late", nil
	})

	c := New(gen, WithTimeout(20*time.Millisecond))
	start := time.Now()
	msg := c.Compose(context.Background(), Context{Correct: true})

	assert.Equal(t, "Nice work, keep going!", msg.Text)
	assert.False(t, msg.Generated)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSummarize(t *testing.T) {
	s := &session.Session{
		ID:         "s1",
		TopicOrder: []domain.Topic{"Algebra"},
		Events: []session.Event{
			{QuestionID: "q1", Topic: "Algebra", Difficulty: 2, Correct: true, TimeTaken: 10},
			{QuestionID: "q2", Topic: "Algebra", Difficulty: 2, Correct: false, TimeTaken: 20},
		},
	}

	var calls atomic.Int32
	gen := genFunc(func(ctx context.Context, prompt string, _ int) (string, error) {
		calls.Add(1)
		assert.Equal(t, "summary", llm.PurposeFrom(ctx))
		assert.True(t, strings.Contains(prompt, "Algebra: 2 answered, 1 correct, accuracy 50.00%"))
		return "Good effort today.", nil
	})

	assert.Equal(t, "Good effort today.", New(gen).Summarize(context.Background(), s))
	assert.Equal(t, int32(1), calls.Load())

	assert.Empty(t, New(nil).Summarize(context.Background(), s))

	failing := genFunc(func(context.Context, string, int) (string, error) { return "", errors.New("down") })
	assert.Empty(t, New(failing).Summarize(context.Background(), s))
}

func TestSummarize_EmptySessionSkipsGenerator(t *testing.T) {
	gen := genFunc(func(context.Context, string, int) (string, error) {
		t.Fatal("generator should not be called")
		return "", nil
	})
	assert.Empty(t, New(gen).Summarize(context.Background(), &session.Session{ID: "s1"}))
}
