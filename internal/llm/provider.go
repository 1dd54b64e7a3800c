// Package llm defines the multimodal inference capabilities the survey
// pipeline consumes: free-text analysis of an image under a prompt, and
// image embedding for similarity search.
package llm

import "context"

// Provider is the interface all multimodal backends must implement.
type Provider interface {
	// Analyze sends an image and a prompt and returns the model's free-text
	// completion. No structured return: callers parse what they need.
	Analyze(ctx context.Context, image []byte, prompt string) (string, error)
	// Embed returns a fixed-width embedding vector for the image.
	Embed(ctx context.Context, image []byte) ([]float32, error)
	// Name returns the provider identifier (e.g. "ollama").
	Name() string
}
