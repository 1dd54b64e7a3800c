// Package ollama implements llm.Provider against an Ollama server running a
// multimodal model (analysis) and an image embedding model.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sitewise-ai/sitewise/internal/llm"
)

const defaultBaseURL = "http://localhost:11434"

// Client talks to Ollama's HTTP API.
type Client struct {
	baseURL    string
	model      string
	embedModel string
	http       *http.Client
}

// New creates an Ollama provider. model handles Analyze calls, embedModel
// handles Embed calls.
func New(baseURL, model, embedModel string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		embedModel: embedModel,
		http:       &http.Client{Timeout: 300 * time.Second},
	}
}

func (c *Client) Name() string { return "ollama" }

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Analyze sends the image and prompt to /api/generate and returns the
// completion text.
func (c *Client) Analyze(ctx context.Context, image []byte, prompt string) (string, error) {
	reqBody := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	}
	if len(image) > 0 {
		reqBody.Images = []string{base64.StdEncoding.EncodeToString(image)}
	}

	var result generateResponse
	if err := c.post(ctx, "/api/generate", reqBody, &result); err != nil {
		return "", fmt.Errorf("ollama analyze: %w", err)
	}
	return result.Response, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed sends the base64-encoded image to /api/embeddings and returns the
// embedding vector.
func (c *Client) Embed(ctx context.Context, image []byte) ([]float32, error) {
	reqBody := embedRequest{
		Model:  c.embedModel,
		Prompt: base64.StdEncoding.EncodeToString(image),
	}

	var result embedResponse
	if err := c.post(ctx, "/api/embeddings", reqBody, &result); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding from model %s", c.embedModel)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, body)
	}
	return json.Unmarshal(body, out)
}

var _ llm.Provider = (*Client)(nil)
