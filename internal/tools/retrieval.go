package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Retriever is the orchestrator-side contract. Satisfied by
// retrieval.Orchestrator.
type Retriever interface {
	Retrieve(ctx context.Context, query string) string
}

// RetrievalTool is an Eino tool that answers from the institutional corpus
// via the retrieval orchestrator. It never fails the agent: an empty corpus
// yields the "No results found." block, which the LLM can act on.
type RetrievalTool struct {
	retriever Retriever
}

// retrievalInput is the JSON-serialisable input schema for RetrievalTool.
type retrievalInput struct {
	// Query is the natural-language question to look up in the corpus.
	Query string `json:"query"`
}

// NewRetrievalTool constructs a RetrievalTool over the given retriever.
func NewRetrievalTool(retriever Retriever) (*RetrievalTool, error) {
	if retriever == nil {
		return nil, fmt.Errorf("tools: retriever must not be nil")
	}
	return &RetrievalTool{retriever: retriever}, nil
}

// Name returns the tool name registered with the agent.
func (t *RetrievalTool) Name() string { return "corpus_retrieval" }

// Description returns the LLM-facing description of this tool.
func (t *RetrievalTool) Description() string {
	return "Searches the institutional knowledge base (archived documents and recent messages) " +
		"for passages relevant to a question. Always try this tool before answering questions " +
		"about the institution, its people, events, or documents."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *RetrievalTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The question or keywords to look up in the knowledge base.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun retrieves corpus context for the query.
func (t *RetrievalTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input retrievalInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("corpus_retrieval: invalid input: %w", err)
	}
	if input.Query == "" {
		return "", fmt.Errorf("corpus_retrieval: query is required")
	}

	return t.retriever.Retrieve(ctx, input.Query), nil
}
