package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/tgruber/sourceqa/internal/metrics"
)

// fakeLLM captures the messages sent to it and plays back a canned
// response.
type fakeLLM struct {
	calls    [][]llms.MessageContent
	response string
	err      error
}

func (f *fakeLLM) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestModel(fake *fakeLLM, stats *metrics.Collector) *Model {
	return &Model{
		llm:        fake,
		modelName:  "test-model",
		maxRetries: 1,
		stats:      stats,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("embed: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isFatalAPIError(tt.err)
			if got != tt.fatal {
				t.Errorf("isFatalAPIError(%v) = %v, want %v", tt.err, got, tt.fatal)
			}
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		if !errors.Is(wrapped, ErrFatalAPI) {
			t.Errorf("expected wrapped error to match ErrFatalAPI")
		}
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		if errors.Is(result, ErrFatalAPI) {
			t.Errorf("non-fatal error should not be wrapped with ErrFatalAPI")
		}
		if result != err {
			t.Errorf("expected original error returned, got %v", result)
		}
	})
}

func TestCompletionWithSystem_SplitsMessages(t *testing.T) {
	fake := &fakeLLM{response: "hello"}
	m := newTestModel(fake, metrics.NewCollector())

	out, err := m.CompletionWithSystem(context.Background(), "be terse", "say hi")
	if err != nil {
		t.Fatalf("CompletionWithSystem() error = %v", err)
	}
	if out != "hello" {
		t.Errorf("CompletionWithSystem() = %q, want %q", out, "hello")
	}

	if len(fake.calls) != 1 {
		t.Fatalf("llm received %d calls, want 1", len(fake.calls))
	}
	messages := fake.calls[0]
	if len(messages) != 2 {
		t.Fatalf("llm received %d messages, want 2", len(messages))
	}
	if messages[0].Role != llms.ChatMessageTypeSystem {
		t.Errorf("first message role = %v, want system", messages[0].Role)
	}
	if messages[1].Role != llms.ChatMessageTypeHuman {
		t.Errorf("second message role = %v, want human", messages[1].Role)
	}
	if text, ok := messages[1].Parts[0].(llms.TextContent); !ok || text.Text != "say hi" {
		t.Errorf("user message = %v, want %q", messages[1].Parts[0], "say hi")
	}
}

// Decide sends the routing instructions as the system message and the
// bare question as the user message.
func TestDecide_UsesSystemPrompt(t *testing.T) {
	fake := &fakeLLM{response: "RETRIEVE"}
	m := newTestModel(fake, metrics.NewCollector())

	decision, err := m.Decide(context.Background(), "what is chunking?")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !decision.NeedsRetrieval {
		t.Error("Decide() should signal retrieval for the sentinel response")
	}

	if len(fake.calls) != 1 {
		t.Fatalf("llm received %d calls, want 1", len(fake.calls))
	}
	messages := fake.calls[0]
	if len(messages) != 2 || messages[0].Role != llms.ChatMessageTypeSystem {
		t.Fatalf("Decide() should send a system and a user message, got %d messages", len(messages))
	}
	if text, ok := messages[1].Parts[0].(llms.TextContent); !ok || text.Text != "what is chunking?" {
		t.Errorf("user message = %v, want the bare question", messages[1].Parts[0])
	}
}

func TestCompletion_RecordsStats(t *testing.T) {
	t.Run("success counts one generation", func(t *testing.T) {
		stats := metrics.NewCollector()
		m := newTestModel(&fakeLLM{response: "ok"}, stats)

		if _, err := m.Completion(context.Background(), "prompt"); err != nil {
			t.Fatalf("Completion() error = %v", err)
		}

		snap := stats.Snapshot()
		if snap.LLMGenerate == nil || snap.LLMGenerate.Count != 1 {
			t.Errorf("llm generate stats = %+v, want count 1", snap.LLMGenerate)
		}
	})

	t.Run("fatal error counts one failure", func(t *testing.T) {
		stats := metrics.NewCollector()
		m := newTestModel(&fakeLLM{err: errors.New("invalid api key")}, stats)

		if _, err := m.Completion(context.Background(), "prompt"); !errors.Is(err, ErrFatalAPI) {
			t.Fatalf("Completion() error = %v, want ErrFatalAPI", err)
		}

		snap := stats.Snapshot()
		if snap.LLMGenerate == nil || snap.LLMGenerate.Errors != 1 {
			t.Errorf("llm generate stats = %+v, want 1 error", snap.LLMGenerate)
		}
	})
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		wantRetrieve bool
		wantAnswer   string
	}{
		{"bare sentinel", "RETRIEVE", true, ""},
		{"sentinel with whitespace", "  RETRIEVE \n", true, ""},
		{"sentinel lowercase", "retrieve", true, ""},
		{"sentinel with period", "RETRIEVE.", true, ""},
		{"sentinel with trailing lines", "RETRIEVE\nI need documents for this.", true, ""},
		{"direct answer", "Hello! How can I help you today?", false, "Hello! How can I help you today?"},
		{"answer mentioning retrieval", "You can retrieve files with the export button.", false, "You can retrieve files with the export button."},
		{"empty response", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDecision(tt.response)
			if got.NeedsRetrieval != tt.wantRetrieve {
				t.Errorf("parseDecision(%q).NeedsRetrieval = %v, want %v", tt.response, got.NeedsRetrieval, tt.wantRetrieve)
			}
			if !got.NeedsRetrieval && got.Answer != tt.wantAnswer {
				t.Errorf("parseDecision(%q).Answer = %q, want %q", tt.response, got.Answer, tt.wantAnswer)
			}
		})
	}
}
