package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/ragd-io/ragd/internal/agent"
	"github.com/ragd-io/ragd/internal/embedder"
	"github.com/ragd-io/ragd/internal/history"
	"github.com/ragd-io/ragd/internal/logging"
	"github.com/ragd-io/ragd/internal/provider"
	"github.com/ragd-io/ragd/internal/server"
	"github.com/ragd-io/ragd/internal/session"
	"github.com/ragd-io/ragd/internal/tracing"
	"github.com/ragd-io/ragd/internal/vecstore"
)

// NewServeCmd constructs the `ragd serve` command, which starts the HTTP
// server fronting the per-user QA agent, both stores, and the feed worker.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragd HTTP server",
		Long: `Start the ragd HTTP server on localhost.

The server exposes POST /api/chat for per-user question answering, admin
endpoints for corpus uploads, worker control, and model switching, plus
health, readiness, and Prometheus metrics endpoints.

Examples:
  ragd serve
  ragd serve --port 9090
  SHORTTERM_AUTOSTART=true ragd serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			emb, err := newEmbedder(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			longTerm, ltCol, err := buildLongTerm(ctx, emb)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer ltCol.Close()

			shortTerm, stCol, err := buildShortTerm(ctx, emb, longTerm, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stCol.Close()

			orch, err := buildOrchestrator(longTerm, shortTerm)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			agentTools, err := buildAgentTools(orch, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Open conversation history store. RAGD_HISTORY_DB overrides the
			// default path (~/.ragd/history.db). Set to "disabled" to disable.
			var historyStore history.ConversationStore
			dbPath := os.Getenv("RAGD_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = history.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := history.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via RAGD_HISTORY_DB=disabled")
			}

			// Each user gets an agent built on demand; the factory captures
			// the shared tools and history so only the model varies.
			factory := func(ctx context.Context, modelName string) (*agent.Agent, error) {
				chatModel, err := provider.NewFromEnv(ctx, modelName)
				if err != nil {
					return nil, fmt.Errorf("serve: failed to initialise model provider: %w", err)
				}
				return agent.New(ctx, &agent.Config{ //nolint:wrapcheck // constructor errors carry package context
					ChatModel: chatModel,
					Tools:     agentTools,
					History:   historyStore,
				})
			}

			sessions, err := session.NewManager(factory, provider.DefaultModel(),
				getEnvDuration("SESSION_IDLE_TIMEOUT", 0))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := buildPingers(ctx, emb, ltCol, log)

			if getEnvBool("SHORTTERM_AUTOSTART", false) {
				if err := shortTerm.RunWorker(ctx); err != nil {
					log.Warn("worker: autostart failed", slog.Any("error", err))
				} else {
					log.Info("worker: autostarted")
				}
			}

			srv, err := server.New(server.Sessions{Manager: sessions}, longTerm, shortTerm, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("RAGD_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// buildPingers assembles the readiness probes: Qdrant always, the embedding
// hub when it exposes a health endpoint, and the LLM backend.
func buildPingers(ctx context.Context, emb vecstore.Embedder, ltCol *vecstore.Qdrant, log *slog.Logger) []server.Pinger {
	pingers := []server.Pinger{
		server.NewDependencyPinger("qdrant", ltCol),
	}

	if hub, ok := emb.(*embedder.HubEmbedder); ok {
		pingers = append(pingers, server.NewDependencyPinger("embedding-hub", hub))
	}

	// The LLM probe uses its own model instance so admin model switches do
	// not invalidate it.
	chatModel, err := provider.NewFromEnv(ctx, "")
	if err != nil {
		log.Warn("readiness: LLM probe disabled", slog.Any("error", err))
		return pingers
	}
	backend := getEnvOrDefault("MODEL_PROVIDER", "ollama")
	return append(pingers, server.NewLLMPinger(chatModel, backend))
}
