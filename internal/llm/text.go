package llm

import (
	"context"
	"errors"
	"strings"
)

// defaultTemperature keeps feedback varied without drifting off topic.
const defaultTemperature = 0.7

// TextGenerator adapts a Provider to plain prompt-in, text-out calls.
type TextGenerator struct {
	provider Provider
	system   string
}

// NewTextGenerator wraps p. system is sent as the system prompt.
func NewTextGenerator(p Provider, system string) *TextGenerator {
	return &TextGenerator{provider: p, system: system}
}

// GenerateText returns the model's trimmed answer to prompt.
func (g *TextGenerator) GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if g == nil || g.provider == nil {
		return "", &ErrProviderUnavailable{}
	}

	resp, err := g.provider.Generate(ctx, Request{
		System:      g.system,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		if resp.StopReason == StopMaxTokens {
			return "", &ErrMaxTokensExceeded{MaxTokens: maxTokens}
		}
		return "", &ErrInvalidResponse{Err: errors.New("empty text")}
	}
	return text, nil
}
