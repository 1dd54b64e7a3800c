package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for inference calls.
type RetryConfig struct {
	MaxRetries int           // maximum number of retry attempts (0 = no retries)
	RetryDelay time.Duration // initial delay between retries
	MaxDelay   time.Duration // maximum delay between retries (caps exponential backoff)
	Timeout    time.Duration // per-request timeout
}

// DefaultRetryConfig returns a sensible default configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    2 * time.Minute,
	}
}

// RetryProvider wraps a Provider with timeout and retry logic.
type RetryProvider struct {
	inner  Provider
	config *RetryConfig
}

// NewRetryProvider wraps an existing provider with retry logic.
func NewRetryProvider(inner Provider, config *RetryConfig) *RetryProvider {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryProvider{inner: inner, config: config}
}

// Name returns the underlying provider name.
func (r *RetryProvider) Name() string {
	return r.inner.Name()
}

// Analyze sends an analysis request with timeout and retry logic.
func (r *RetryProvider) Analyze(ctx context.Context, image []byte, prompt string) (string, error) {
	var out string
	err := r.do(ctx, func(attemptCtx context.Context) error {
		var err error
		out, err = r.inner.Analyze(attemptCtx, image, prompt)
		return err
	})
	return out, err
}

// Embed sends an embedding request with timeout and retry logic.
func (r *RetryProvider) Embed(ctx context.Context, image []byte) ([]float32, error) {
	var out []float32
	err := r.do(ctx, func(attemptCtx context.Context) error {
		var err error
		out, err = r.inner.Embed(attemptCtx, image)
		return err
	})
	return out, err
}

func (r *RetryProvider) do(ctx context.Context, call func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.calculateBackoff(attempt)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		err := call(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !r.isRetryable(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", r.config.MaxRetries, lastErr)
}

// calculateBackoff returns the delay for the given attempt using exponential backoff.
func (r *RetryProvider) calculateBackoff(attempt int) time.Duration {
	delay := r.config.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
			break
		}
	}
	return delay
}

// isRetryable determines if an error should trigger a retry.
func (r *RetryProvider) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors mean the caller cancelled; do not retry those.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errStr := err.Error()

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests") {
		return true
	}

	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, http.StatusText(http.StatusInternalServerError)) ||
		strings.Contains(errStr, http.StatusText(http.StatusBadGateway)) ||
		strings.Contains(errStr, http.StatusText(http.StatusServiceUnavailable)) ||
		strings.Contains(errStr, http.StatusText(http.StatusGatewayTimeout)) {
		return true
	}

	// Client errors (4xx except 429) won't succeed on retry.
	if strings.Contains(errStr, "400") ||
		strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "404") {
		return false
	}

	// Default: retry on unknown errors (conservative for inference calls).
	return true
}

// WrapWithRetry wraps a provider with retry logic taken from provider config.
func WrapWithRetry(provider Provider, cfg ProviderConfig) Provider {
	if provider == nil {
		return nil
	}

	config := DefaultRetryConfig()
	if cfg.Timeout > 0 {
		config.Timeout = cfg.Timeout
	}
	if cfg.MaxRetries > 0 {
		config.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		config.RetryDelay = cfg.RetryDelay
	}
	return NewRetryProvider(provider, config)
}
