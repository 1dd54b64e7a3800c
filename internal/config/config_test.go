package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: ollama
  model: llava:13b
  base_url: http://gpu-box:11434
  timeout: 90s
vector:
  backend: qdrant
  host: qdrant.internal
  port: 6334
  collection: surveys-prod
  dimensions: 4096
server:
  port: 9000
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.Model != "llava:13b" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("LLM.Timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Vector.Backend != "qdrant" || cfg.Vector.Collection != "surveys-prod" {
		t.Errorf("Vector = %+v", cfg.Vector)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("default provider = %q", cfg.LLM.Provider)
	}
	if cfg.Vector.Backend != "memory" {
		t.Errorf("default vector backend = %q", cfg.Vector.Backend)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default server port = %d", cfg.Server.Port)
	}
	if cfg.Imaging.MaxEdge != 1024 {
		t.Errorf("default max edge = %d", cfg.Imaging.MaxEdge)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("unset key lost its default: provider = %q", cfg.LLM.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SITEWISE_VECTOR_BACKEND", "qdrant")
	t.Setenv("SITEWISE_LLM_MODEL", "bakllava")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vector.Backend != "qdrant" {
		t.Errorf("env override ignored: backend = %q", cfg.Vector.Backend)
	}
	if cfg.LLM.Model != "bakllava" {
		t.Errorf("env override ignored: model = %q", cfg.LLM.Model)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load with missing file succeeded")
	}
}

func TestValidateWarnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   int
	}{
		{"clean defaults", func(c *Config) {}, 0},
		{"custom without base url", func(c *Config) { c.LLM.Provider = "custom"; c.LLM.BaseURL = "" }, 1},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }, 1},
		{"unknown backend", func(c *Config) { c.Vector.Backend = "sqlite" }, 1},
		{"qdrant without collection", func(c *Config) { c.Vector.Backend = "qdrant"; c.Vector.Collection = "" }, 1},
		{"sample rate out of range", func(c *Config) { c.Tracing.SampleRate = 1.5 }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if got := cfg.Validate(); len(got) != tt.want {
				t.Errorf("got %d warnings %v, want %d", len(got), got, tt.want)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8000}
	if got := s.Addr(); got != "127.0.0.1:8000" {
		t.Errorf("Addr() = %q", got)
	}
}
