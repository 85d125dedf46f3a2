package llm

import (
	"context"
	"errors"
	"testing"
)

func TestTextGenerator_TrimsText(t *testing.T) {
	mock := NewMockProvider(MockResponse{Text: "  Nice!\n"})
	g := NewTextGenerator(mock, "coach")

	text, err := g.GenerateText(context.Background(), "praise", 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Nice!" {
		t.Fatalf("expected %q, got %q", "Nice!", text)
	}

	req := mock.Calls[0]
	if req.System != "coach" || req.Prompt != "praise" || req.MaxTokens != 40 {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestTextGenerator_EmptyText(t *testing.T) {
	_, err := NewTextGenerator(NewMockProvider(MockResponse{Text: "  "}), "").GenerateText(context.Background(), "p", 10)
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse, got %T (%v)", err, err)
	}
}

type truncatingProvider struct{}

func (truncatingProvider) Generate(context.Context, Request) (*Response, error) {
	return &Response{StopReason: StopMaxTokens}, nil
}

func (truncatingProvider) ModelID() string { return "trunc" }

func TestTextGenerator_TruncatedEmpty(t *testing.T) {
	_, err := NewTextGenerator(truncatingProvider{}, "").GenerateText(context.Background(), "p", 10)
	var maxTok *ErrMaxTokensExceeded
	if !errors.As(err, &maxTok) || maxTok.MaxTokens != 10 {
		t.Fatalf("expected ErrMaxTokensExceeded, got %T (%v)", err, err)
	}
}

func TestTextGenerator_NilProvider(t *testing.T) {
	_, err := NewTextGenerator(nil, "").GenerateText(context.Background(), "p", 10)
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got %T", err)
	}
}
