package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/abhisek/mentalmath/internal/store"
)

// NewProvider creates the configured Provider wrapped with retry and
// request logging (caller -> retry -> logging -> base). It returns
// (nil, nil) when no provider is configured.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo, log zerolog.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case ProviderNone:
		return nil, nil
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderLlamaCpp:
		base, err = NewLlamaCppProvider(cfg.LlamaCpp)
	case ProviderMock:
		base = NewEchoMockProvider("Keep it up!")
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	if eventRepo != nil {
		base = WithLogging(base, cfg.Provider, eventRepo, log)
	}
	return WithRetry(base, cfg.Retry, WithRetryLogger(log)), nil
}
