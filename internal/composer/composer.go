// Package composer produces the feedback shown after each answer: a
// strategy tip, a deterministic fallback message, and an optional
// generated message bounded by a timeout.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/llm"
	"github.com/abhisek/mentalmath/internal/session"
)

const (
	DefaultTimeout        = 3 * time.Second
	DefaultSummaryTimeout = 5 * time.Second
	DefaultMaxTokens      = 80
	summaryMaxTokens      = 200

	// slowRatio marks a correct answer as slow relative to its estimate.
	slowRatio = 1.5

	correctFallback   = "Nice work, keep going!"
	incorrectFallback = "Don't worry, you'll get it with practice. Try this tip: %s"

	reflectionPrompt = "What method did you try?"
)

// errBlank is returned internally when the generator produced only
// whitespace.
var errBlank = errors.New("empty generated text")

// TextGenerator produces free text from a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Context is what the composer knows about one answer.
type Context struct {
	Topic          domain.Topic
	Correct        bool
	TimeTaken      float64
	Estimated      *float64
	Mastery        *float64
	Difficulty     domain.Difficulty
	NextDifficulty domain.Difficulty
	Tip            string
}

// Message is the composed feedback text.
type Message struct {
	Text      string
	Generated bool
}

// PickTip selects the strategy tip for an answer: the first tip when the
// answer was wrong, the second (or first) when it was right but slow, and
// "" when no tip is needed.
func PickTip(tips []string, correct bool, timeTaken float64, estimated *float64) string {
	if len(tips) == 0 {
		return ""
	}
	if !correct {
		return tips[0]
	}
	if estimated == nil || *estimated <= 0 {
		return ""
	}
	if e := *estimated; timeTaken > slowRatio*e {
		if len(tips) > 1 {
			return tips[1]
		}
		return tips[0]
	}
	return ""
}

// Fallback is the deterministic message for c.
func Fallback(c Context) string {
	if c.Correct {
		return correctFallback
	}
	return fmt.Sprintf(incorrectFallback, c.Tip)
}

// ReflectionPrompt returns the question shown after a wrong answer, or ""
// after a correct one.
func ReflectionPrompt(correct bool) string {
	if correct {
		return ""
	}
	return reflectionPrompt
}

// Prompt describes c for a text generator.
func Prompt(c Context) string {
	var b strings.Builder
	if c.Correct {
		fmt.Fprintf(&b, "A learner solved a %s question correctly in %ss", c.Topic, seconds(c.TimeTaken))
	} else {
		fmt.Fprintf(&b, "A learner answered a %s question incorrectly after %ss", c.Topic, seconds(c.TimeTaken))
	}
	if c.Estimated != nil {
		fmt.Fprintf(&b, " (expected about %ss)", seconds(*c.Estimated))
	}
	b.WriteString(".")
	if c.Mastery != nil {
		fmt.Fprintf(&b, " Their mastery of %s is %.0f%%.", c.Topic, *c.Mastery*100)
	}
	if c.NextDifficulty != 0 {
		fmt.Fprintf(&b, " The next question is difficulty %d of %d.", c.NextDifficulty, domain.MaxDifficulty)
	}
	if c.Correct {
		b.WriteString(" Praise them concisely")
		if c.NextDifficulty > c.Difficulty {
			b.WriteString(" and mention that the questions are getting harder")
		}
		b.WriteString(".")
	} else {
		b.WriteString(" Write a short encouraging message and a short reflection prompt.")
	}
	if c.Tip != "" {
		fmt.Fprintf(&b, " Tip: %s", c.Tip)
	}
	return b.String()
}

func seconds(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", v), "0"), ".")
}

// Composer calls an optional TextGenerator and falls back to the
// deterministic message on any failure.
type Composer struct {
	gen            TextGenerator
	timeout        time.Duration
	summaryTimeout time.Duration
	maxTokens      int
	log            zerolog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

func WithTimeout(d time.Duration) Option {
	return func(c *Composer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithSummaryTimeout(d time.Duration) Option {
	return func(c *Composer) {
		if d > 0 {
			c.summaryTimeout = d
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Composer) { c.log = l }
}

// New creates a Composer. gen may be nil, in which case every message is
// the fallback.
func New(gen TextGenerator, opts ...Option) *Composer {
	c := &Composer{
		gen:            gen,
		timeout:        DefaultTimeout,
		summaryTimeout: DefaultSummaryTimeout,
		maxTokens:      DefaultMaxTokens,
		log:            zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compose returns the feedback message for mc. It never fails and never
// blocks past the configured timeout.
func (c *Composer) Compose(ctx context.Context, mc Context) Message {
	fallback := Fallback(mc)
	if c.gen == nil {
		return Message{Text: fallback}
	}

	text, err := c.generate(llm.WithPurpose(ctx, "feedback"), Prompt(mc), c.maxTokens, c.timeout)
	if err != nil {
		c.log.Warn().Err(err).Str("topic", string(mc.Topic)).Msg("text generation failed, using fallback")
		return Message{Text: fallback}
	}
	return Message{Text: text, Generated: true}
}

// SummaryPrompt describes an ended session for a text generator.
func SummaryPrompt(s *session.Session) string {
	stats := session.ComputeStats(s.Events)

	var b strings.Builder
	fmt.Fprintf(&b, "Session summary for %s.\n", s.ID)
	for _, topic := range s.TopicOrder {
		st, ok := stats[topic]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %d answered, %d correct, accuracy %.2f%%, average time %.2fs\n",
			topic, st.Count, st.Correct, st.Accuracy, st.AvgTime)
	}
	fmt.Fprintf(&b, "Overall accuracy: %.2f%%\n", session.OverallAccuracy(stats))
	b.WriteString("Provide a concise friendly summary and 2 actionable recommendations.")
	return b.String()
}

// Summarize returns generated free text for an ended session, or "" when
// no generator is configured or generation fails.
func (c *Composer) Summarize(ctx context.Context, s *session.Session) string {
	if c.gen == nil || len(s.Events) == 0 {
		return ""
	}
	text, err := c.generate(llm.WithPurpose(ctx, "summary"), SummaryPrompt(s), summaryMaxTokens, c.summaryTimeout)
	if err != nil {
		c.log.Warn().Err(err).Str("session_id", string(s.ID)).Msg("summary generation failed")
		return ""
	}
	return text
}

type result struct {
	text string
	err  error
}

// generate runs the generator in its own goroutine so a generator that
// ignores cancellation cannot hold the caller past timeout.
func (c *Composer) generate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("text generator panicked: %v", r)}
			}
		}()
		text, err := c.gen.GenerateText(ctx, prompt, maxTokens)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		text := strings.TrimSpace(r.text)
		if text == "" {
			return "", errBlank
		}
		return text, nil
	}
}
