package llm

import "fmt"

// NewLlamaCppProvider targets a llama.cpp server (llama-server) through its
// OpenAI-compatible /v1 API. The API key is only needed when the server was
// started with --api-key.
func NewLlamaCppProvider(cfg LlamaCppConfig) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llama.cpp base URL is required")
	}
	model := cfg.Model
	if model == "" {
		model = "local"
	}
	return newOpenAICompatible(cfg.APIKey, cfg.BaseURL, model, true), nil
}
