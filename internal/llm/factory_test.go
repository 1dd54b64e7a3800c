package llm

import (
	"context"
	"testing"
)

type staticProvider struct{ name string }

func (s *staticProvider) Analyze(_ context.Context, _ []byte, _ string) (string, error) {
	return "", nil
}
func (s *staticProvider) Embed(_ context.Context, _ []byte) ([]float32, error) { return nil, nil }
func (s *staticProvider) Name() string                                         { return s.name }

func TestFactory_CreateRegistered(t *testing.T) {
	f := NewFactory()
	f.Register("ollama", func(cfg ProviderConfig) (Provider, error) {
		return &staticProvider{name: "ollama"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "ollama"})
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Name() != "ollama" {
		t.Fatalf("p = %v", p)
	}
}

func TestFactory_NoneReturnsNil(t *testing.T) {
	f := NewFactory()

	for _, name := range []string{"", "none"} {
		p, err := f.Create(ProviderConfig{Provider: name})
		if err != nil {
			t.Fatalf("provider %q: %v", name, err)
		}
		if p != nil {
			t.Fatalf("provider %q should create nil, got %v", name, p)
		}
	}
}

func TestFactory_UnknownProvider(t *testing.T) {
	f := NewFactory()
	if _, err := f.Create(ProviderConfig{Provider: "banana"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestFactory_WrapsWithRetry(t *testing.T) {
	f := NewFactory()
	f.Register("ollama", func(cfg ProviderConfig) (Provider, error) {
		return &staticProvider{name: "ollama"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "ollama", MaxRetries: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*RetryProvider); !ok {
		t.Fatalf("expected RetryProvider wrapper, got %T", p)
	}
}
