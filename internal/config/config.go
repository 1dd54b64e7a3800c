// Package config loads the sitewise configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Server   ServerConfig   `mapstructure:"server"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Imaging  ImagingConfig  `mapstructure:"imaging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
}

type LLMConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	EmbedModel string        `mapstructure:"embed_model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type VectorConfig struct {
	// Backend selects the similarity store: "qdrant" or "memory".
	Backend    string `mapstructure:"backend"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	Dimensions int    `mapstructure:"dimensions"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type ImagingConfig struct {
	MaxEdge int `mapstructure:"max_edge"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when no config file is present:
// a local ollama provider and the in-memory store.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   "ollama",
			Model:      "llava",
			EmbedModel: "llava",
			BaseURL:    "http://localhost:11434",
			Timeout:    120 * time.Second,
			MaxRetries: 3,
		},
		Vector: VectorConfig{
			Backend:    "memory",
			Host:       "localhost",
			Port:       6334,
			Collection: "surveys",
			Dimensions: 4096,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			MaxUploadBytes:  32 << 20,
			ShutdownTimeout: 15 * time.Second,
		},
		Temporal: TemporalConfig{
			Host:      "localhost:7233",
			Namespace: "default",
			TaskQueue: "sitewise-surveys",
		},
		Imaging: ImagingConfig{MaxEdge: 1024},
		Tracing: TracingConfig{SampleRate: 1.0, Environment: "development"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Provider == "custom" && c.LLM.BaseURL == "" {
		warnings = append(warnings, "LLM provider 'custom' is configured but base_url is empty")
	}
	if c.LLM.MaxRetries < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_retries %d is negative", c.LLM.MaxRetries))
	}
	switch c.Vector.Backend {
	case "", "memory", "qdrant":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown vector backend '%s', expected 'qdrant' or 'memory'", c.Vector.Backend))
	}
	if c.Vector.Backend == "qdrant" && c.Vector.Collection == "" {
		warnings = append(warnings, "vector backend 'qdrant' requires a collection name")
	}
	if c.Imaging.MaxEdge < 0 {
		warnings = append(warnings, fmt.Sprintf("imaging max_edge %d is negative", c.Imaging.MaxEdge))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// Load reads configuration from path and the SITEWISE_* environment. An
// empty path loads defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// defaults seeds viper so environment-only runs get a working local setup.
// Keys must be registered here for AutomaticEnv to see their SITEWISE_*
// variables during Unmarshal.
func defaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.embed_model", d.LLM.EmbedModel)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_retries", d.LLM.MaxRetries)

	v.SetDefault("vector.backend", d.Vector.Backend)
	v.SetDefault("vector.host", d.Vector.Host)
	v.SetDefault("vector.port", d.Vector.Port)
	v.SetDefault("vector.collection", d.Vector.Collection)
	v.SetDefault("vector.dimensions", d.Vector.Dimensions)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("temporal.host", d.Temporal.Host)
	v.SetDefault("temporal.namespace", d.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", d.Temporal.TaskQueue)

	v.SetDefault("imaging.max_edge", d.Imaging.MaxEdge)

	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.environment", d.Tracing.Environment)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
