package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func newTestGeminiProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL},
	})
	if err != nil {
		t.Fatalf("genai.NewClient: %v", err)
	}
	return &GeminiProvider{client: client, model: "gemini-2.0-flash"}
}

func TestGeminiProvider_HappyPath(t *testing.T) {
	var path string
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": "Good pace!"}}},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{
				"promptTokenCount":     12,
				"candidatesTokenCount": 4,
				"totalTokenCount":      16,
			},
			"modelVersion": "gemini-2.0-flash-001",
		})
	})

	resp, err := p.Generate(context.Background(), Request{System: "coach", Prompt: "praise", MaxTokens: 80})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, "/models/gemini-2.0-flash:generateContent") {
		t.Fatalf("unexpected path %q", path)
	}
	if resp.Text != "Good pace!" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 16 {
		t.Fatalf("expected 16 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if resp.Model != "gemini-2.0-flash-001" {
		t.Fatalf("expected model version from response, got %q", resp.Model)
	}
}

func TestGeminiProvider_ServerError(t *testing.T) {
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 503, "message": "overloaded", "status": "UNAVAILABLE"},
		})
	})

	_, err := p.Generate(context.Background(), Request{Prompt: "x", MaxTokens: 10})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got %T (%v)", err, err)
	}
}

func TestMapGeminiStopReason(t *testing.T) {
	maxed := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonMaxTokens}}}
	if got := mapGeminiStopReason(maxed); got != StopMaxTokens {
		t.Fatalf("expected max_tokens, got %q", got)
	}
	if got := mapGeminiStopReason(&genai.GenerateContentResponse{}); got != StopEnd {
		t.Fatalf("expected end, got %q", got)
	}
}
