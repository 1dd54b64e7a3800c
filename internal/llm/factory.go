package llm

import (
	"fmt"
	"time"
)

// ProviderConfig holds all configuration needed to create any provider.
type ProviderConfig struct {
	Provider   string // "ollama", "custom"
	Model      string // multimodal analysis model
	EmbedModel string // image embedding model
	BaseURL    string // override for self-hosted endpoints
	APIKey     string

	// Timeout and retry configuration
	Timeout    time.Duration // per-request timeout (default: 2 minutes)
	MaxRetries int           // max retry attempts (default: 3)
	RetryDelay time.Duration // initial retry delay for exponential backoff (default: 1s)
}

// DefaultProviderConfig returns a config with sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// ProviderFactory creates Provider instances from config.
type ProviderFactory struct {
	constructors map[string]ProviderConstructor
}

// NewFactory creates an empty factory; callers register constructors.
func NewFactory() *ProviderFactory {
	return &ProviderFactory{constructors: make(map[string]ProviderConstructor)}
}

// Register adds a provider constructor under the given name.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.constructors[name] = ctor
}

// Create builds a Provider from config. Returns nil (no error) when provider
// is empty or "none", allowing inference-free operation such as store-only
// commands. The returned provider is wrapped with retry logic if configured.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	if cfg.Provider == "" || cfg.Provider == "none" {
		return nil, nil
	}

	ctor, ok := f.constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown vision provider %q — registered: %v", cfg.Provider, f.names())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 || cfg.MaxRetries > 0 {
		return WrapWithRetry(provider, cfg), nil
	}
	return provider, nil
}

func (f *ProviderFactory) names() []string {
	var out []string
	for k := range f.constructors {
		out = append(out, k)
	}
	return out
}

// KnownProviders documents the built-in provider presets.
var KnownProviders = map[string]string{
	"ollama": "http://localhost:11434",
	"custom": "",
}
