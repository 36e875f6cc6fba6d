package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// LLMPinger probes an LLM backend by sending a minimal single-message
// generate request. It satisfies the Pinger interface and is used by
// GET /api/ready. Each probe consumes a small number of tokens, so /api/ready
// should not be polled aggressively against metered backends.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.ToolCallingChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a one-word prompt and verifies a non-nil response arrives.
func (p *LLMPinger) Ping(ctx context.Context) error {
	msgs := []*schema.Message{
		schema.UserMessage("ping"),
	}
	resp, err := p.model.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// healthChecker is any dependency exposing its own reachability probe.
// *vecstore.Qdrant and *embedder.HubEmbedder satisfy it.
type healthChecker interface {
	Ping(ctx context.Context) error
}

// DependencyPinger adapts a healthChecker into a named Pinger for /api/ready.
type DependencyPinger struct {
	// name is the dependency label used in readiness responses.
	name string
	// dep is the dependency to probe.
	dep healthChecker
}

// NewDependencyPinger wraps dep as a Pinger reporting under name.
func NewDependencyPinger(name string, dep healthChecker) *DependencyPinger {
	return &DependencyPinger{name: name, dep: dep}
}

// Name returns the dependency label used in readiness responses.
func (p *DependencyPinger) Name() string { return p.name }

// Ping delegates to the wrapped dependency's probe.
func (p *DependencyPinger) Ping(ctx context.Context) error {
	if err := p.dep.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
