package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Summarizer condenses an item body into the short text stored with the
// record. A nil Summarizer in the worker means bodies are stored verbatim.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// HTTPSummarizer implements Summarizer against a summarization service
// exposing POST /summarize.
type HTTPSummarizer struct {
	// baseURL is the summarizer base URL.
	baseURL string
	// apiKey is the optional Bearer token.
	apiKey string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// HTTPSummarizerConfig holds the settings for constructing an HTTPSummarizer.
type HTTPSummarizerConfig struct {
	// BaseURL is the summarizer base URL.
	BaseURL string
	// APIKey is the optional Bearer token.
	APIKey string
}

// NewHTTPSummarizer constructs an HTTPSummarizer from the given config.
func NewHTTPSummarizer(cfg *HTTPSummarizerConfig) *HTTPSummarizer {
	return &HTTPSummarizer{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// summarizeRequest is the JSON body sent to the /summarize endpoint.
type summarizeRequest struct {
	Text string `json:"text"`
}

// summarizeResponse is the JSON body returned from the /summarize endpoint.
type summarizeResponse struct {
	Summary string `json:"summary"`
	Error   string `json:"error,omitempty"`
}

// Summarize condenses the given text. Failures are returned to the caller;
// the short-term worker treats them as a skipped item rather than storing a
// raw or placeholder body.
func (s *HTTPSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(summarizeRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("feed: marshal summarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/summarize", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("feed: create summarize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("feed: summarize request failed: %w", err)
	}
	defer resp.Body.Close()

	var result summarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("feed: decode summarize response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return "", fmt.Errorf("feed: summarize: %s", msg)
	}

	return result.Summary, nil
}
