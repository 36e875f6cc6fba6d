// Package tools defines the tool implementations the agent can invoke
// during a conversation: corpus retrieval over the two-tier vector store
// and a web search fallback. Each tool satisfies Eino's tool.BaseTool
// interface so it can be registered directly with the ReAct agent.
package tools

// Tool is the interface all agent tools satisfy. It extends the basic Eino
// tool contract with accessors so the agent can log and route tool calls by
// name without type assertions.
type Tool interface {
	// Name returns the unique tool name registered with the agent.
	Name() string

	// Description returns a human-readable description of what the tool
	// does. This text is sent to the LLM as part of the tool schema.
	Description() string
}
