package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Searcher is the web-search-side contract. Satisfied by websearch.Client.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// WebSearchTool is an Eino tool that queries the public web when the corpus
// has no answer.
type WebSearchTool struct {
	searcher Searcher
}

// webSearchInput is the JSON-serialisable input schema for WebSearchTool.
type webSearchInput struct {
	// Query is the search phrase to send to the web backend.
	Query string `json:"query"`
}

// NewWebSearchTool constructs a WebSearchTool over the given searcher.
func NewWebSearchTool(searcher Searcher) (*WebSearchTool, error) {
	if searcher == nil {
		return nil, fmt.Errorf("tools: searcher must not be nil")
	}
	return &WebSearchTool{searcher: searcher}, nil
}

// Name returns the tool name registered with the agent.
func (t *WebSearchTool) Name() string { return "web_search" }

// Description returns the LLM-facing description of this tool.
func (t *WebSearchTool) Description() string {
	return "Searches the public web and returns the top results with titles, URLs, and snippets. " +
		"Use this only when corpus_retrieval returned no relevant results and the question needs " +
		"current or external information."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *WebSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The search phrase.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun performs the web search and returns the formatted results.
func (t *WebSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input webSearchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("web_search: invalid input: %w", err)
	}
	if input.Query == "" {
		return "", fmt.Errorf("web_search: query is required")
	}

	results, err := t.searcher.Search(ctx, input.Query)
	if err != nil {
		return "", fmt.Errorf("web_search: %w", err)
	}
	return results, nil
}
