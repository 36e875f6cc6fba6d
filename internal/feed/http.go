package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSource implements Source against a mailbox scraper service exposing
// GET /latest, which returns the newest message in the watched mailbox.
type HTTPSource struct {
	// baseURL is the scraper base URL (e.g. "http://localhost:8700").
	baseURL string
	// apiKey is the optional Bearer token.
	apiKey string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// HTTPSourceConfig holds the settings for constructing an HTTPSource.
type HTTPSourceConfig struct {
	// BaseURL is the scraper base URL.
	BaseURL string
	// APIKey is the optional Bearer token.
	APIKey string
}

// NewHTTPSource constructs an HTTPSource from the given config.
func NewHTTPSource(cfg *HTTPSourceConfig) *HTTPSource {
	return &HTTPSource{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// latestResponse is the JSON body returned from the scraper's /latest
// endpoint. An empty id means the mailbox is empty.
type latestResponse struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Timestamp string `json:"timestamp"`
	Body      string `json:"body"`
	Error     string `json:"error,omitempty"`
}

// FetchNext returns the newest message from the scraper, or nil when the
// mailbox is empty. The caller is responsible for replay suppression — the
// scraper returns the same newest message until a newer one arrives.
func (s *HTTPSource) FetchNext(ctx context.Context) (*Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/latest", nil)
	if err != nil {
		return nil, fmt.Errorf("feed: create request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("feed: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("feed: %s", msg)
	}

	if result.ID == "" {
		return nil, nil
	}

	return &Item{
		Key:       result.ID,
		Sender:    result.From,
		Subject:   result.Subject,
		Timestamp: result.Timestamp,
		Body:      result.Body,
	}, nil
}
