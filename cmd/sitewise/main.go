package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/sitewise-ai/sitewise/internal/config"
	"github.com/sitewise-ai/sitewise/internal/imaging"
	"github.com/sitewise-ai/sitewise/internal/kb"
	"github.com/sitewise-ai/sitewise/internal/llm"
	"github.com/sitewise-ai/sitewise/internal/llm/ollama"
	"github.com/sitewise-ai/sitewise/internal/observability"
	"github.com/sitewise-ai/sitewise/internal/server"
	"github.com/sitewise-ai/sitewise/internal/store"
	"github.com/sitewise-ai/sitewise/internal/store/memory"
	"github.com/sitewise-ai/sitewise/internal/store/qdrant"
	"github.com/sitewise-ai/sitewise/internal/survey"
	temporalmod "github.com/sitewise-ai/sitewise/internal/temporal"
)

const version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "sitewise",
		Short: "Photo-based industrial equipment survey analysis",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: built-in defaults plus SITEWISE_* env)")

	var durable bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the survey API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, durable)
		},
	}
	serveCmd.Flags().BoolVar(&durable, "durable", false, "Submit surveys as Temporal workflows instead of running in-process")

	var (
		imagePaths []string
		textNotes  string
		surveyID   string
		jsonOut    bool
	)
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze survey photos from the command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), configPath, imagePaths, textNotes, surveyID, jsonOut)
		},
	}
	analyzeCmd.Flags().StringArrayVar(&imagePaths, "image", nil, "Equipment photo (repeatable)")
	analyzeCmd.Flags().StringVar(&textNotes, "notes", "", "Free-text survey notes")
	analyzeCmd.Flags().StringVar(&surveyID, "id", "", "Survey id (generated when empty)")
	analyzeCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full result as JSON")
	_ = analyzeCmd.MarkFlagRequired("image")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), configPath)
		},
	}

	var (
		seedDir      string
		seedManifest string
	)
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the knowledge base from labelled photos or a JSON manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (seedDir == "") == (seedManifest == "") {
				return fmt.Errorf("exactly one of --dir or --manifest is required")
			}
			return runSeed(cmd.Context(), configPath, seedDir, seedManifest)
		},
	}
	seedCmd.Flags().StringVar(&seedDir, "dir", "", "Directory containing pass/ and fail/ image subdirectories")
	seedCmd.Flags().StringVar(&seedManifest, "manifest", "", "JSON manifest of historical survey records")

	var confirmed bool
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored survey",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to reset without --yes")
			}
			return runReset(cmd.Context(), configPath)
		},
	}
	resetCmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm deletion of all stored surveys")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available vision providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available vision providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-8s %s\n", name, url)
			}
			fmt.Println("  none     (store-only operation, no analysis)")
			fmt.Println()
			fmt.Println("Configure in a config file or via environment:")
			fmt.Println("  SITEWISE_LLM_PROVIDER=ollama")
			fmt.Println("  SITEWISE_LLM_MODEL=llava")
			fmt.Println("  SITEWISE_LLM_BASE_URL=http://gpu-box:11434")
		},
	}

	rootCmd.AddCommand(serveCmd, analyzeCmd, statsCmd, seedCmd, resetCmd, providersCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, configPath string, durable bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := buildLogger(cfg.Log)

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "sitewise",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := observability.NewRegistry()
	metrics := observability.NewSurveyMetrics(registry)

	var analyzer server.Analyzer
	var providerName string
	var temporalCheck server.HealthChecker

	if durable {
		c, err := temporalclient.Dial(temporalclient.Options{
			HostPort:  cfg.Temporal.Host,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			return fmt.Errorf("temporal client: %w", err)
		}
		defer c.Close()
		analyzer = temporalmod.NewAnalyzer(c, cfg.Temporal.TaskQueue)
		providerName = "temporal:" + cfg.Temporal.TaskQueue
		temporalCheck = server.TemporalHealthChecker(func(ctx context.Context) error {
			_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
			return err
		})
		log.Info("surveys run as temporal workflows", "task_queue", cfg.Temporal.TaskQueue)
	} else {
		provider, err := buildProvider(cfg)
		if err != nil {
			return err
		}
		if provider == nil {
			return fmt.Errorf("serve requires a vision provider (got %q)", cfg.LLM.Provider)
		}
		providerName = provider.Name()
		analyzer = survey.New(provider, imaging.NewProcessor(cfg.Imaging.MaxEdge), st, log, metrics)
	}

	srv := server.New(cfg.Server, analyzer, st, server.Options{
		Metrics: registry.Handler(),
		Version: version,
		Logger:  log,
	})
	srv.RegisterHealthCheck("provider", server.ProviderHealthChecker(providerName, nil))
	if temporalCheck != nil {
		srv.RegisterHealthCheck("temporal", temporalCheck)
	}

	return srv.Run(ctx)
}

func runAnalyze(ctx context.Context, configPath string, imagePaths []string, textNotes, surveyID string, jsonOut bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := buildLogger(cfg.Log)

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("analyze requires a vision provider (got %q)", cfg.LLM.Provider)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	images := make([][]byte, 0, len(imagePaths))
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image %s: %w", path, err)
		}
		images = append(images, data)
	}

	pipeline := survey.New(provider, imaging.NewProcessor(cfg.Imaging.MaxEdge), st, log, nil)
	res, err := pipeline.Run(ctx, images, textNotes, surveyID)
	if err != nil {
		return err
	}

	if jsonOut {
		data, _ := json.MarshalIndent(res.State, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Survey:     %s\n", res.State.SurveyID)
	fmt.Printf("Status:     %s\n", res.State.OverallStatus)
	fmt.Printf("Confidence: %.2f\n", res.State.ConfidenceScore)
	fmt.Printf("Persisted:  %t\n\n", res.Persisted)
	fmt.Println(res.State.FinalReport)
	return nil
}

func runStats(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Stored surveys: %d\n", stats.Total)
	fmt.Printf("  pass: %d\n", stats.PassCount)
	fmt.Printf("  fail: %d\n", stats.FailCount)
	fmt.Printf("  pass rate: %.1f%%\n", stats.PassRate*100)
	return nil
}

func runSeed(ctx context.Context, configPath, dir, manifest string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := buildLogger(cfg.Log)

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("seed requires a vision provider (got %q)", cfg.LLM.Provider)
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	seeder := kb.NewSeeder(provider, st, log)
	var report kb.Report
	if manifest != "" {
		report, err = seeder.SeedManifest(ctx, manifest)
	} else {
		report, err = seeder.SeedDir(ctx, dir)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d surveys (%d files skipped)\n", report.Seeded, report.Skipped)
	return nil
}

func runReset(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Reset(ctx); err != nil {
		return err
	}
	fmt.Println("Knowledge base reset")
	return nil
}

func buildLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	log := slog.New(handler)
	slog.SetDefault(log)
	return log
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
	// Any ollama-compatible endpoint.
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
		return nil, fmt.Errorf("creating vision provider: %w", err)
	}
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
