package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig configures request rate limiting for providers.
type RateLimitConfig struct {
	// RequestsPerMinute limits the number of inference calls per minute (0 = unlimited)
	RequestsPerMinute int
	// BurstSize allows temporary burst above the rate limit
	BurstSize int
}

// DefaultRateLimitConfig returns defaults suitable for a local GPU box
// serving one multimodal model.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         5,
	}
}

// RateLimitProvider wraps a provider with a token-bucket request limiter.
type RateLimitProvider struct {
	inner  Provider
	config *RateLimitConfig

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// WithRateLimit wraps a provider with rate limiting. A nil provider passes
// through so inference-free wiring stays simple.
func WithRateLimit(inner Provider, config *RateLimitConfig) Provider {
	if inner == nil {
		return nil
	}
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	burst := config.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitProvider{
		inner:      inner,
		config:     config,
		tokens:     burst,
		lastRefill: time.Now(),
	}
}

// Name returns the underlying provider name.
func (r *RateLimitProvider) Name() string {
	return r.inner.Name()
}

// Analyze rate-limits and delegates to the inner provider.
func (r *RateLimitProvider) Analyze(ctx context.Context, image []byte, prompt string) (string, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return "", err
	}
	return r.inner.Analyze(ctx, image, prompt)
}

// Embed rate-limits and delegates to the inner provider.
func (r *RateLimitProvider) Embed(ctx context.Context, image []byte) ([]float32, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, image)
}

// waitForCapacity blocks until the limiter allows a request.
func (r *RateLimitProvider) waitForCapacity(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.config.RequestsPerMinute == 0 {
			r.mu.Unlock()
			return nil
		}
		if r.tokens > 0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}

		// One token becomes available every 60/RPM seconds.
		wait := time.Duration(float64(time.Minute) / float64(r.config.RequestsPerMinute))
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *RateLimitProvider) refill() {
	now := time.Now()
	if r.config.RequestsPerMinute <= 0 {
		r.lastRefill = now
		return
	}

	elapsed := now.Sub(r.lastRefill)
	add := int(elapsed.Minutes() * float64(r.config.RequestsPerMinute))
	if add > 0 {
		r.tokens += add
		burst := r.config.BurstSize
		if burst <= 0 {
			burst = 1
		}
		if r.tokens > burst {
			r.tokens = burst
		}
		r.lastRefill = now
	}
}
