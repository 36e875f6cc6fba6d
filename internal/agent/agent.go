// Package agent wires the Eino ReAct agent to the corpus retrieval and web
// search tools to form the question-answering shell. The agent handles the
// full ReAct loop: it decides when to query the corpus, when to fall back
// to the web, and when to respond directly. Every answer leaves this
// package as a tagged Result — callers never see raw model output or raw
// errors.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/ragd-io/ragd/internal/budget"
	"github.com/ragd-io/ragd/internal/history"
	"github.com/ragd-io/ragd/internal/logging"
)

// systemPrompt establishes the assistant's role and its tool discipline.
const systemPrompt = `You are an assistant answering questions about an institution on behalf of its
members. You have two tools:

- corpus_retrieval: searches the institution's knowledge base (archived
  documents and recent internal messages). This is your primary source.
- web_search: searches the public web. Use it only when corpus_retrieval
  returned "No results found." or clearly irrelevant passages, and the
  question needs current or external information.

Rules:
- For any question about the institution, its people, events, documents, or
  internal matters, call corpus_retrieval first. Do not answer such
  questions from memory.
- Quote retrieved passages faithfully. If the retrieved context does not
  answer the question, say so rather than inventing an answer.
- Keep answers concise and factual. Do not mention the tools or the
  retrieval process in your answer.
- If neither the corpus nor the web has an answer, say that you could not
  find the information.`

// Config holds the dependencies required to construct an Agent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Tools is the list of tools available to the agent.
	Tools []tool.BaseTool

	// History is the optional conversation store used to persist and
	// replay prior turns. If nil, each query is stateless.
	History history.ConversationStore

	// HistoryDepth is the number of prior turns (user+assistant pairs) to
	// inject per query. Defaults to 10 if zero.
	HistoryDepth int

	// MaxContextTokens is the estimated token budget for the full input
	// context (system prompt + history + user message). History is trimmed
	// oldest-first to fit. Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Agent wraps the Eino ReAct agent with per-user conversation memory and
// result normalization.
type Agent struct {
	// reactAgent is the underlying Eino ReAct loop agent.
	reactAgent *react.Agent

	// history is the optional conversation store for multi-turn context.
	history history.ConversationStore

	// historyDepth is the number of recent messages to inject per query.
	historyDepth int

	// maxContextTokens is the estimated token budget for the input context.
	maxContextTokens int
}

// New constructs an Agent from the provided Config.
func New(ctx context.Context, cfg *Config) (*Agent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}

	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: cfg.Tools,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create ReAct agent: %w", err)
	}

	depth := cfg.HistoryDepth
	if depth <= 0 {
		depth = 10
	}

	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Agent{
		reactAgent:       reactAgent,
		history:          cfg.History,
		historyDepth:     depth,
		maxContextTokens: maxCtx,
	}, nil
}

// Query runs one agent turn for the given user and returns the normalized
// result. Failures are folded into the Result's Error tag — callers render
// them, they do not branch on Go errors. If a conversation store is
// configured, prior turns are injected and the new turn is persisted.
func (a *Agent) Query(ctx context.Context, userID, userMessage string) Result {
	messages := a.buildMessages(ctx, userID, userMessage)

	out, err := a.reactAgent.Generate(ctx, messages)
	if err != nil {
		logging.FromContext(ctx).Error("agent: generate failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return errorResult(fmt.Errorf("agent: query failed: %w", err))
	}

	result := normalize(out.Content)

	// Persist the turn (non-fatal on error).
	if a.history != nil && !result.IsError() {
		if err := a.history.Append(ctx, userID, history.RoleUser, userMessage); err != nil {
			logging.FromContext(ctx).Warn("agent: failed to persist user message", slog.Any("error", err))
		}
		if err := a.history.Append(ctx, userID, history.RoleAssistant, result.Text()); err != nil {
			logging.FromContext(ctx).Warn("agent: failed to persist assistant message", slog.Any("error", err))
		}
	}

	return result
}

// buildMessages constructs the message slice for the agent: system prompt,
// trimmed per-user history, then the current user message.
func (a *Agent) buildMessages(ctx context.Context, userID, userMessage string) []*schema.Message {
	system := schema.SystemMessage(systemPrompt)
	user := schema.UserMessage(userMessage)

	var historyMsgs []*schema.Message
	if a.history != nil {
		prior, err := a.history.Recent(ctx, userID, a.historyDepth*2)
		if err != nil {
			logging.FromContext(ctx).Warn("agent: failed to load prior messages", slog.Any("error", err))
		} else {
			for _, m := range prior {
				switch m.Role {
				case history.RoleUser:
					historyMsgs = append(historyMsgs, schema.UserMessage(m.Content))
				case history.RoleAssistant:
					historyMsgs = append(historyMsgs, schema.AssistantMessage(m.Content, nil))
				}
			}
		}
	}

	fixed := []*schema.Message{system, user}
	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, a.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		logging.FromContext(ctx).Warn("agent: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	result := make([]*schema.Message, 0, 2+len(historyMsgs))
	result = append(result, system)
	result = append(result, historyMsgs...)
	result = append(result, user)
	return result
}
