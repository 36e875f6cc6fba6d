package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragd-io/ragd/internal/agent"
	"github.com/ragd-io/ragd/internal/logging"
	"github.com/ragd-io/ragd/internal/provider"
)

// NewAskCmd constructs the `ragd ask` command, which sends a single natural
// language question through the full retrieval pipeline and prints the answer.
func NewAskCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a one-shot question against the corpus",
		Long: `Ask the ragd agent a natural language question.

The agent retrieves supporting documents from both the long-term and
short-term stores, re-ranks them, and answers with the LLM. Web search is
used as a fallback when the corpus has no answer and a search backend is
configured.

Examples:
  ragd ask "who is the current director?"
  ragd ask "what are the opening hours of the main building?"
  ragd ask --user alice "what did the last newsletter say about parking?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			emb, err := newEmbedder(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			longTerm, ltCol, err := buildLongTerm(ctx, emb)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer ltCol.Close()

			shortTerm, stCol, err := buildShortTerm(ctx, emb, longTerm, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer stCol.Close()

			orch, err := buildOrchestrator(longTerm, shortTerm)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			agentTools, err := buildAgentTools(orch, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx, "")
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			qaAgent, err := agent.New(ctx, &agent.Config{
				ChatModel: chatModel,
				Tools:     agentTools,
			})
			if err != nil {
				return fmt.Errorf("ask: failed to initialise agent: %w", err)
			}

			result := qaAgent.Query(ctx, user, args[0])
			if result.IsError() {
				return fmt.Errorf("ask: %s", result.Error)
			}

			fmt.Println(result.Text())
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "cli", "User ID for the conversation session")

	return cmd
}
