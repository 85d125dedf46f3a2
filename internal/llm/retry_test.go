package llm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestRetry(t *testing.T) {
	down := MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}}
	bad := MockResponse{Err: &ErrInvalidResponse{Err: errors.New("bad")}}
	ok := MockResponse{Text: "ok"}

	tests := []struct {
		name      string
		responses []MockResponse
		wantText  string
		wantErr   func(error) bool
		wantCalls int
	}{
		{name: "first attempt", responses: []MockResponse{ok}, wantText: "ok", wantCalls: 1},
		{name: "transient then success", responses: []MockResponse{down, ok}, wantText: "ok", wantCalls: 2},
		{
			name:      "all attempts fail",
			responses: []MockResponse{down, down, down},
			wantErr:   func(err error) bool { var e *ErrProviderUnavailable; return errors.As(err, &e) },
			wantCalls: 3,
		},
		{
			name:      "max tokens not retried",
			responses: []MockResponse{{Err: &ErrMaxTokensExceeded{MaxTokens: 80}}, ok},
			wantErr:   func(err error) bool { var e *ErrMaxTokensExceeded; return errors.As(err, &e) },
			wantCalls: 1,
		},
		{
			name:      "invalid response retried once",
			responses: []MockResponse{bad, bad, ok},
			wantErr:   func(err error) bool { var e *ErrInvalidResponse; return errors.As(err, &e) },
			wantCalls: 2,
		},
		{
			name:      "rate limit waits retry-after",
			responses: []MockResponse{{Err: &ErrRateLimit{RetryAfter: time.Millisecond, Err: errors.New("429")}}, ok},
			wantText:  "ok",
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(tt.responses...)
			resp, err := WithRetry(mock, fastRetry()).Generate(context.Background(), Request{Prompt: "p"})

			if tt.wantErr != nil {
				if err == nil || !tt.wantErr(err) {
					t.Fatalf("unexpected error %v (%T)", err, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if resp.Text != tt.wantText {
					t.Fatalf("text = %q, want %q", resp.Text, tt.wantText)
				}
			}
			if got := mock.CallCount(); got != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRetryStopsOnContext(t *testing.T) {
	t.Run("deadline during call", func(t *testing.T) {
		mock := NewMockProvider(MockResponse{Text: "late", Delay: time.Second}, MockResponse{Text: "unreached"})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := WithRetry(mock, fastRetry()).Generate(ctx, Request{})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if mock.CallCount() != 1 {
			t.Fatalf("expected 1 call, got %d", mock.CallCount())
		}
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		down := MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}}
		mock := NewMockProvider(down, down, MockResponse{Text: "ok"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		slow := RetryConfig{MaxAttempts: 3, InitialWait: time.Second, MaxWait: time.Second, Multiplier: 1}
		if _, err := WithRetry(mock, slow).Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestRetryModelID(t *testing.T) {
	if id := WithRetry(NewMockProvider(), fastRetry()).ModelID(); id != "mock" {
		t.Fatalf("ModelID = %q, want mock", id)
	}
}

func TestRetryLogsEachRetry(t *testing.T) {
	var buf bytes.Buffer
	down := MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}}
	mock := NewMockProvider(down, down, MockResponse{Text: "ok"})
	p := WithRetry(mock, fastRetry(), WithRetryLogger(zerolog.New(&buf)))

	if _, err := p.Generate(WithPurpose(context.Background(), "feedback"), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if n := strings.Count(out, "retrying llm request"); n != 2 {
		t.Fatalf("expected 2 retry log lines, got %d: %s", n, out)
	}
	if !strings.Contains(out, `"purpose":"feedback"`) {
		t.Fatalf("retry log missing purpose: %s", out)
	}
}

func TestRetryZeroAttemptsStillCalls(t *testing.T) {
	mock := NewMockProvider(MockResponse{Text: "ok"})
	if _, err := WithRetry(mock, RetryConfig{}).Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
}
