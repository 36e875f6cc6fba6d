// Package websearch provides the agent's web fallback: a SerpAPI client
// with Google Custom Search as a secondary backend, formatting the top
// results into a compact text block.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ragd-io/ragd/internal/logging"
)

// maxResults bounds the number of snippets in the formatted block.
const maxResults = 3

// Default API endpoints, overridable for tests.
const (
	defaultSerpAPIURL = "https://serpapi.com/search.json"
	defaultGoogleURL  = "https://www.googleapis.com/customsearch/v1"
)

// Config holds the credentials for the search backends. At least one
// backend must be configured.
type Config struct {
	// SerpAPIKey enables the SerpAPI backend.
	SerpAPIKey string

	// GoogleAPIKey and GoogleCX enable the Google Custom Search backend,
	// used when SerpAPI is unconfigured or fails.
	GoogleAPIKey string
	GoogleCX     string

	// SerpAPIURL and GoogleURL override the default endpoints. Tests only.
	SerpAPIURL string
	GoogleURL  string
}

// Client performs web searches with backend fallback.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient constructs a Client. Returns an error when no backend is
// configured.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.SerpAPIKey == "" && (cfg.GoogleAPIKey == "" || cfg.GoogleCX == "") {
		return nil, fmt.Errorf("websearch: no backend configured: set SERPAPI_API_KEY or GOOGLE_CSE_API_KEY+GOOGLE_CSE_ID")
	}
	resolved := *cfg
	if resolved.SerpAPIURL == "" {
		resolved.SerpAPIURL = defaultSerpAPIURL
	}
	if resolved.GoogleURL == "" {
		resolved.GoogleURL = defaultGoogleURL
	}
	return &Client{
		cfg:    resolved,
		client: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

// result is one search hit, normalized across backends.
type result struct {
	Title   string
	Link    string
	Snippet string
}

// Search runs the query against SerpAPI first, then Google Custom Search,
// and returns the formatted top results. Both backends failing returns the
// last error.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	log := logging.FromContext(ctx)

	var lastErr error
	if c.cfg.SerpAPIKey != "" {
		results, err := c.searchSerpAPI(ctx, query)
		if err == nil {
			return format(query, results), nil
		}
		lastErr = err
		log.Warn("websearch: serpapi failed, trying google", "error", err)
	}

	if c.cfg.GoogleAPIKey != "" && c.cfg.GoogleCX != "" {
		results, err := c.searchGoogle(ctx, query)
		if err == nil {
			return format(query, results), nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("websearch: all backends failed: %w", lastErr)
}

// serpAPIResponse is the subset of the SerpAPI answer we consume.
type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error,omitempty"`
}

func (c *Client) searchSerpAPI(ctx context.Context, query string) ([]result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("api_key", c.cfg.SerpAPIKey)
	q.Set("engine", "google")

	var resp serpAPIResponse
	if err := c.get(ctx, c.cfg.SerpAPIURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", resp.Error)
	}

	out := make([]result, 0, len(resp.OrganicResults))
	for _, r := range resp.OrganicResults {
		out = append(out, result{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

// googleResponse is the subset of the Custom Search answer we consume.
type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) searchGoogle(ctx context.Context, query string) ([]result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("key", c.cfg.GoogleAPIKey)
	q.Set("cx", c.cfg.GoogleCX)

	var resp googleResponse
	if err := c.get(ctx, c.cfg.GoogleURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("google search: %s", resp.Error.Message)
	}

	out := make([]result, 0, len(resp.Items))
	for _, r := range resp.Items {
		out = append(out, result{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

// get performs a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("websearch: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("websearch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("websearch: decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("websearch: HTTP %d", resp.StatusCode)
	}
	return nil
}

// format renders the top results as a compact block the agent can quote.
func format(query string, results []result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No web results found for %q.", query)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Title: %s\nURL: %s\nSnippet: %s", r.Title, r.Link, r.Snippet)
	}
	return b.String()
}
