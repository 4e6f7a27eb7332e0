package tools

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
)

// errEmptyLLMResponse marks a completion that returned no choices; callers
// fall through to their deterministic path.
var errEmptyLLMResponse = errors.New("empty LLM response")

// LLMRetryConfig configures retry behavior for LLM calls
type LLMRetryConfig struct {
	MaxRetries      int           `json:"max_retries"`
	InitialDelay    time.Duration `json:"initial_delay"`
	MaxDelay        time.Duration `json:"max_delay"`
	BackoffFactor   float64       `json:"backoff_factor"`
	TimeoutPerRetry time.Duration `json:"timeout_per_retry"`
}

// DefaultLLMRetryConfig returns the retry policy used for parsing and
// synthesis calls. Both have deterministic fallbacks, so the budget is kept
// short: a degraded LLM should not stall the whole request.
func DefaultLLMRetryConfig() LLMRetryConfig {
	return LLMRetryConfig{
		MaxRetries:      2,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffFactor:   2.0,
		TimeoutPerRetry: 30 * time.Second,
	}
}

// LLMRetryWrapper wraps an LLM with retry logic for transient failures
type LLMRetryWrapper struct {
	llm    llms.Model
	config LLMRetryConfig
	log    zerolog.Logger
}

// NewLLMRetryWrapper creates a new retry wrapper for an LLM
func NewLLMRetryWrapper(llm llms.Model, config LLMRetryConfig, log zerolog.Logger) *LLMRetryWrapper {
	return &LLMRetryWrapper{
		llm:    llm,
		config: config,
		log:    log.With().Str("component", "llm").Logger(),
	}
}

// GenerateContent calls the LLM, retrying transient failures with
// exponential backoff
func (w *LLMRetryWrapper) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var lastErr error
	delay := w.config.InitialDelay

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		retryCtx, cancel := context.WithTimeout(ctx, w.config.TimeoutPerRetry)
		response, err := w.llm.GenerateContent(retryCtx, messages, options...)
		cancel()

		if err == nil {
			return response, nil
		}

		lastErr = err

		if attempt >= w.config.MaxRetries {
			break
		}

		if !w.isRetryableError(err) {
			w.log.Debug().Err(err).Msg("LLM error is not retryable")
			break
		}

		w.log.Warn().Err(err).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("LLM call failed, retrying")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * w.config.BackoffFactor)
		if delay > w.config.MaxDelay {
			delay = w.config.MaxDelay
		}
	}

	return nil, fmt.Errorf("LLM call failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}

// isRetryableError determines if an error is worth retrying
func (w *LLMRetryWrapper) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "context canceled") {
		return true
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "temporary failure") {
		return true
	}

	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "429") {
		return true
	}

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "service unavailable") {
		return true
	}

	if netErr, ok := err.(net.Error); ok {
		return netErr.Timeout()
	}

	if urlErr, ok := err.(*url.Error); ok {
		return w.isRetryableError(urlErr.Err)
	}

	return false
}

// CallLLMWithRetry calls an LLM with the default retry configuration
func CallLLMWithRetry(ctx context.Context, llm llms.Model, messages []llms.MessageContent, log zerolog.Logger, options ...llms.CallOption) (*llms.ContentResponse, error) {
	wrapper := NewLLMRetryWrapper(llm, DefaultLLMRetryConfig(), log)
	return wrapper.GenerateContent(ctx, messages, options...)
}
