// Package llm provides LLM and embedding services using langchaingo.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/tgruber/sourceqa/internal/config"
	"github.com/tgruber/sourceqa/internal/metrics"
)

// ErrFatalAPI marks provider errors that retrying cannot fix, such as
// bad credentials or exhausted quota.
var ErrFatalAPI = errors.New("fatal API error")

// Model wraps a langchaingo LLM for text generation with bounded retries.
type Model struct {
	llm        llms.Model
	modelName  string
	maxRetries int
	stats      *metrics.Collector
	log        *slog.Logger
}

// NewModel creates an LLM model based on configuration. Generation
// timings and failures are recorded in stats.
func NewModel(cfg config.Config, log *slog.Logger, stats *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	if log == nil {
		log = slog.Default()
	}
	if stats == nil {
		stats = metrics.NewCollector()
	}
	return &Model{
		llm:        model,
		modelName:  cfg.LLMModel,
		maxRetries: cfg.LLMMaxRetries,
		stats:      stats,
		log:        log,
	}, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Completion generates text from a single user prompt, retrying transient
// failures with exponential backoff.
func (m *Model) Completion(ctx context.Context, prompt string) (string, error) {
	return m.withRetry(ctx, func() (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	})
}

// CompletionWithSystem generates text with a system prompt.
func (m *Model) CompletionWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.withRetry(ctx, func() (string, error) {
		messages := []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
		}
		response, err := m.llm.GenerateContent(ctx, messages)
		if err != nil {
			return "", err
		}
		if len(response.Choices) == 0 {
			return "", fmt.Errorf("no response choices")
		}
		return response.Choices[0].Content, nil
	})
}

func (m *Model) withRetry(ctx context.Context, call func() (string, error)) (string, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(500*time.Millisecond),
			backoff.WithMaxInterval(10*time.Second),
		),
		uint64(m.maxRetries),
	), ctx)

	start := time.Now()
	result, err := backoff.RetryWithData(func() (string, error) {
		out, callErr := call()
		if callErr != nil {
			callErr = wrapFatalError(callErr)
			if errors.Is(callErr, ErrFatalAPI) {
				return "", backoff.Permanent(callErr)
			}
			m.log.Warn("llm call failed, retrying", "model", m.modelName, "error", callErr)
			return "", callErr
		}
		return out, nil
	}, policy)
	if err != nil {
		m.stats.RecordError(metrics.OpLLMGenerate)
		return "", fmt.Errorf("generate: %w", err)
	}

	m.stats.RecordTiming(metrics.OpLLMGenerate, time.Since(start))
	m.log.Debug("llm call complete",
		"model", m.modelName,
		"response_len", len(result),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

var fatalAPIMarkers = []string{
	"credit balance",
	"rate limit",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication failed",
	"unauthorized",
	"401",
	"403",
}

// isFatalAPIError reports whether an error indicates an account or auth
// problem that no amount of retrying will fix.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalAPIMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func wrapFatalError(err error) error {
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %v", ErrFatalAPI, err)
	}
	return err
}
