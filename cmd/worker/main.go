package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/sitewise-ai/sitewise/internal/config"
	"github.com/sitewise-ai/sitewise/internal/imaging"
	"github.com/sitewise-ai/sitewise/internal/llm"
	"github.com/sitewise-ai/sitewise/internal/llm/ollama"
	"github.com/sitewise-ai/sitewise/internal/observability"
	"github.com/sitewise-ai/sitewise/internal/store"
	"github.com/sitewise-ai/sitewise/internal/store/memory"
	"github.com/sitewise-ai/sitewise/internal/store/qdrant"
	"github.com/sitewise-ai/sitewise/internal/survey"
	temporalmod "github.com/sitewise-ai/sitewise/internal/temporal"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	provider, err := buildProvider(cfg)
	if err != nil {
		log.Fatalf("creating vision provider: %v", err)
	}
	if provider == nil {
		log.Fatalf("worker requires a vision provider (got %q)", cfg.LLM.Provider)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	registry := observability.NewRegistry()
	metrics := observability.NewSurveyMetrics(registry)

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Pipeline: survey.New(provider, imaging.NewProcessor(cfg.Imaging.MaxEdge), st, nil, metrics),
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	fmt.Printf("Worker started on task queue: %s\n", cfg.Temporal.TaskQueue)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	w.Stop()
	fmt.Println("Worker stopped")
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	factory := llm.NewFactory()
	factory.Register("ollama", func(c llm.ProviderConfig) (llm.Provider, error) {
		base := c.BaseURL
		if base == "" {
			base = llm.KnownProviders["ollama"]
		}
		return ollama.New(base, c.Model, c.EmbedModel), nil
	})
	factory.Register("custom", func(c llm.ProviderConfig) (llm.Provider, error) {
		if c.BaseURL == "" {
			return nil, fmt.Errorf("provider 'custom' requires base_url")
		}
		return ollama.New(c.BaseURL, c.Model, c.EmbedModel), nil
	})

	pc := llm.DefaultProviderConfig()
	pc.Provider = cfg.LLM.Provider
	pc.Model = cfg.LLM.Model
	pc.EmbedModel = cfg.LLM.EmbedModel
	pc.BaseURL = cfg.LLM.BaseURL
	pc.APIKey = cfg.LLM.APIKey
	if cfg.LLM.Timeout > 0 {
		pc.Timeout = cfg.LLM.Timeout
	}
	if cfg.LLM.MaxRetries > 0 {
		pc.MaxRetries = cfg.LLM.MaxRetries
	}

	provider, err := factory.Create(pc)
	if err != nil {
		return nil, err
	}

	// Rate-limit before SetDependencies so every activity shares the bucket.
	return llm.WithRateLimit(provider, llm.DefaultRateLimitConfig()), nil
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Vector.Backend {
	case "qdrant":
		st, err := qdrant.New(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection, cfg.Vector.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("connecting to qdrant: %w", err)
		}
		return st, nil
	case "", "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}
