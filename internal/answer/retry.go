package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RetryConfig configures the retry behavior for LLM calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category.
// Matched case-insensitively against err.Error().
//
// NOTE: String matching is used because Genkit and the provider SDKs do
// not expose typed errors for transient failures. Re-evaluate if Genkit
// adds structured error types in a future version.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrGenerationTimeout) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, pattern := range group {
			if strings.Contains(errStr, pattern) {
				return true
			}
		}
	}
	return false
}

// generateWithRetry runs the generator with exponential backoff.
// Each attempt, including retries, waits on the rate limiter first.
func (s *Synthesizer) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	delay := s.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		text, err := s.generate(ctx, prompt)
		if err == nil {
			s.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return text, nil
		}

		lastErr = err

		if !retryableError(err) {
			return "", fmt.Errorf("generating answer: %w", err)
		}
		if attempt == s.retry.MaxRetries {
			break
		}

		s.logger.Debug("retrying generation",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, s.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("generating answer after %d retries (elapsed: %v): %w",
		s.retry.MaxRetries, time.Since(start), lastErr)
}

// generate runs one model call under the per-call deadline. An attempt
// that hits its own deadline, rather than the request's, is reported as
// ErrGenerationTimeout so a stalled model never blocks a request.
func (s *Synthesizer) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	text, err := s.generator.Generate(callCtx, prompt)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationTimeout, err)
	}
	return text, err
}
