// Package ollama provides an Ollama-backed embedding client. Response
// shape normalization happens here so the rest of the pipeline only
// ever sees a single fixed-length vector.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout bounds one embedding call.
const DefaultTimeout = 30 * time.Second

// Client calls Ollama's embedding API.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates an embedding client for the given Ollama base URL
// and model. timeout <= 0 falls back to DefaultTimeout.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse covers both shapes Ollama returns: a batch "embeddings"
// field on /api/embed and a single "embedding" on older endpoints.
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Embedding  []float64   `json:"embedding"`
}

// Embed returns the embedding vector for text, normalized to float32.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: embed: status %d", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ollama: decode: %w", err)
	}

	vec := parsed.Embedding
	if len(parsed.Embeddings) > 0 {
		vec = parsed.Embeddings[0]
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("ollama: response carried no embedding")
	}

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out, nil
}
