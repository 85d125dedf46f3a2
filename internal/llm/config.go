package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted in Config.Provider.
const (
	ProviderNone      = ""
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderLlamaCpp  = "llamacpp"
	ProviderMock      = "mock"
)

// Config holds provider configuration. It is parsed from the environment
// with the LLM_ prefix nested under the application prefix.
type Config struct {
	// Provider selects the backend. Empty disables generation and every
	// message falls back to its deterministic text.
	Provider string `env:"PROVIDER"`

	// System is the system prompt sent with every request.
	System string `env:"SYSTEM_PROMPT" envDefault:"You are a friendly mental math coach. Reply in one or two short sentences."`

	Anthropic AnthropicConfig `envPrefix:"ANTHROPIC_"`
	OpenAI    OpenAIConfig    `envPrefix:"OPENAI_"`
	Gemini    GeminiConfig    `envPrefix:"GEMINI_"`
	LlamaCpp  LlamaCppConfig  `envPrefix:"LLAMACPP_"`
	Retry     RetryConfig     `envPrefix:"RETRY_"`
}

type AnthropicConfig struct {
	APIKey string `env:"API_KEY"`
	Model  string `env:"MODEL" envDefault:"claude-haiku"`
}

type OpenAIConfig struct {
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL" envDefault:"gpt-4o-mini"`
	BaseURL string `env:"BASE_URL"`
}

type GeminiConfig struct {
	APIKey string `env:"API_KEY"`
	Model  string `env:"MODEL" envDefault:"gemini-flash"`
}

// LlamaCppConfig points at a llama.cpp server's OpenAI-compatible API.
type LlamaCppConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"http://127.0.0.1:8080/v1"`
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL" envDefault:"local"`
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"2"`
	InitialWait time.Duration `env:"INITIAL_WAIT" envDefault:"200ms"`
	MaxWait     time.Duration `env:"MAX_WAIT" envDefault:"1s"`
	Multiplier  float64       `env:"MULTIPLIER" envDefault:"2"`
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		System:    "You are a friendly mental math coach. Reply in one or two short sentences.",
		Anthropic: AnthropicConfig{Model: "claude-haiku"},
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:    GeminiConfig{Model: "gemini-flash"},
		LlamaCpp:  LlamaCppConfig{BaseURL: "http://127.0.0.1:8080/v1", Model: "local"},
		Retry: RetryConfig{
			MaxAttempts: 2,
			InitialWait: 200 * time.Millisecond,
			MaxWait:     time.Second,
			Multiplier:  2.0,
		},
	}
}

// Discover fills in a provider from the conventional vendor API key
// variables when none was selected explicitly. It reports whether a
// provider was found.
func (c *Config) Discover() bool {
	if c.Provider != ProviderNone {
		return true
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		c.Provider, c.Gemini.APIKey = ProviderGemini, k
		return true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		c.Provider, c.OpenAI.APIKey = ProviderOpenAI, k
		return true
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		c.Provider, c.Anthropic.APIKey = ProviderAnthropic, k
		return true
	}
	return false
}

// Validate checks that the selected provider has what it needs.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderNone, ProviderMock:
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("MENTALMATH_LLM_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("MENTALMATH_LLM_OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("MENTALMATH_LLM_GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderLlamaCpp:
		if c.LlamaCpp.BaseURL == "" {
			return fmt.Errorf("MENTALMATH_LLM_LLAMACPP_BASE_URL is required for the llamacpp provider")
		}
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}
