// Package embedder provides implementations of the vecstore.Embedder
// interface for converting text into vector embeddings. Each implementation
// talks to a different backend (embedding hub, OpenAI, Azure OpenAI, Ollama)
// via plain HTTP — no additional SDK dependencies are required.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HubEmbedder talks to a hosted embedding hub that serves both a dense
// sentence model and a ColBERT-style token-level model. It is the only
// backend implementing vecstore.LateEmbedder and therefore the only one that
// enables hybrid late-interaction retrieval. Safe for concurrent use.
type HubEmbedder struct {
	// baseURL is the hub base URL (e.g. "http://localhost:8800").
	baseURL string
	// apiKey is the optional Bearer token.
	apiKey string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// HubConfig holds the settings for constructing a HubEmbedder.
type HubConfig struct {
	// BaseURL is the hub base URL (e.g. "http://localhost:8800").
	BaseURL string
	// APIKey is the optional Bearer token.
	APIKey string
}

// NewHubEmbedder constructs a HubEmbedder from the given config.
func NewHubEmbedder(cfg *HubConfig) *HubEmbedder {
	return &HubEmbedder{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// hubDenseRequest is the JSON body sent to the /embed/dense endpoint.
type hubDenseRequest struct {
	Texts []string `json:"texts"`
}

// hubDenseResponse is the JSON body returned from the /embed/dense endpoint.
type hubDenseResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// hubLateRequest is the JSON body sent to the /embed/colbert endpoint.
type hubLateRequest struct {
	Text string `json:"text"`
}

// hubLateResponse is the JSON body returned from the /embed/colbert endpoint.
type hubLateResponse struct {
	Embedding [][]float32 `json:"embedding"`
	Error     string      `json:"error,omitempty"`
}

// EmbedDense converts a batch of texts into their dense embeddings.
// The returned slice is parallel to the input slice.
func (e *HubEmbedder) EmbedDense(ctx context.Context, texts []string) ([][]float32, error) {
	var result hubDenseResponse
	if err := e.post(ctx, "/embed/dense", hubDenseRequest{Texts: texts}, &result, &result.Error); err != nil {
		return nil, err
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("hub embedder: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	return result.Embeddings, nil
}

// EmbedLate converts a single text into its token-level embedding matrix,
// one row per token.
func (e *HubEmbedder) EmbedLate(ctx context.Context, text string) ([][]float32, error) {
	var result hubLateResponse
	if err := e.post(ctx, "/embed/colbert", hubLateRequest{Text: text}, &result, &result.Error); err != nil {
		return nil, err
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("hub embedder: empty token matrix for text")
	}

	return result.Embedding, nil
}

// Ping checks hub reachability via its /health endpoint.
func (e *HubEmbedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("hub embedder: create request: %w", err)
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("hub embedder: health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hub embedder: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// post sends a JSON request to the hub and decodes the response into out.
// errField points at the decoded error message so non-2xx statuses surface
// the server's own wording when present.
func (e *HubEmbedder) post(ctx context.Context, path string, body, out interface{}, errField *string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("hub embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("hub embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("hub embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("hub embedder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if errField != nil && *errField != "" {
			msg = *errField
		}
		return fmt.Errorf("hub embedder: %s: %s", path, msg)
	}

	return nil
}
