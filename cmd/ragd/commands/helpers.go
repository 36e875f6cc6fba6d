package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"

	"github.com/ragd-io/ragd/internal/embedder"
	"github.com/ragd-io/ragd/internal/feed"
	"github.com/ragd-io/ragd/internal/longterm"
	"github.com/ragd-io/ragd/internal/retrieval"
	"github.com/ragd-io/ragd/internal/shortterm"
	"github.com/ragd-io/ragd/internal/tools"
	"github.com/ragd-io/ragd/internal/vecstore"
	"github.com/ragd-io/ragd/internal/websearch"
)

// newEmbedder validates the embedding environment and constructs the
// configured embedder backend.
func newEmbedder(log *slog.Logger) (vecstore.Embedder, error) {
	if err := embedder.ValidateForRetrieval(log); err != nil {
		return nil, err
	}
	return embedder.NewFromEnv() //nolint:wrapcheck // factory errors carry package context
}

// openCollection connects to the named Qdrant collection, sizing its vectors
// for the configured embedding backend.
func openCollection(ctx context.Context, name string) (*vecstore.Qdrant, error) {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "hub")

	return vecstore.NewQdrant(ctx, &vecstore.QdrantConfig{ //nolint:wrapcheck // constructor errors carry package context
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: name,
		DenseSize:  uint64(getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(backend))), //nolint:gosec // dimensions are small positive constants
		LateSize:   uint64(embedder.LateDimensions(backend)),                                       //nolint:gosec // dimensions are small positive constants
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
}

// buildLongTerm opens the archival collection and wraps it in a long-term
// store. The returned collection is also handed back so callers can register
// it as a readiness probe and close it on shutdown.
func buildLongTerm(ctx context.Context, emb vecstore.Embedder) (*longterm.Store, *vecstore.Qdrant, error) {
	col, err := openCollection(ctx, getEnvOrDefault("QDRANT_LONGTERM_COLLECTION", "ragd-longterm"))
	if err != nil {
		return nil, nil, fmt.Errorf("long-term store: %w", err)
	}

	store, err := longterm.NewStore(col, emb, &longterm.Config{
		ChunkSize: getEnvInt("LONGTERM_CHUNK_SIZE", 0),
	})
	if err != nil {
		col.Close()
		return nil, nil, fmt.Errorf("long-term store: %w", err)
	}

	return store, col, nil
}

// buildShortTerm opens the volatile collection and wraps it in a short-term
// store wired to the feed scraper, summarizer, and blocklist from the
// environment. The feed source is optional — without FEED_SCRAPER_URL the
// store is query-only and the worker cannot start.
func buildShortTerm(ctx context.Context, emb vecstore.Embedder, lt shortterm.LongTerm, log *slog.Logger) (*shortterm.Store, *vecstore.Qdrant, error) {
	col, err := openCollection(ctx, getEnvOrDefault("QDRANT_SHORTTERM_COLLECTION", "ragd-shortterm"))
	if err != nil {
		return nil, nil, fmt.Errorf("short-term store: %w", err)
	}

	var source feed.Source
	if url := os.Getenv("FEED_SCRAPER_URL"); url != "" {
		source = feed.NewHTTPSource(&feed.HTTPSourceConfig{
			BaseURL: url,
			APIKey:  os.Getenv("FEED_API_KEY"),
		})
	} else {
		log.Info("feed: FEED_SCRAPER_URL not set — short-term store is query-only")
	}

	var summarizer feed.Summarizer
	if url := os.Getenv("FEED_SUMMARIZER_URL"); url != "" {
		summarizer = feed.NewHTTPSummarizer(&feed.HTTPSummarizerConfig{BaseURL: url})
	}

	var blocklist *feed.Blocklist
	if raw := os.Getenv("FEED_BLOCKLIST"); raw != "" {
		blocklist = feed.NewBlocklist(strings.Split(raw, ","))
	}

	store, err := shortterm.NewStore(col, emb, source, summarizer, blocklist, lt, &shortterm.Config{
		PollInterval: getEnvDuration("SHORTTERM_POLL_INTERVAL", 0),
		MaxAge:       getEnvDuration("SHORTTERM_MAX_AGE", 0),
		MaxCount:     uint64(getEnvInt("SHORTTERM_MAX_COUNT", 0)), //nolint:gosec // threshold is operator-supplied
	})
	if err != nil {
		col.Close()
		return nil, nil, fmt.Errorf("short-term store: %w", err)
	}

	return store, col, nil
}

// buildOrchestrator wires both stores into the retrieval orchestrator with
// the tunables from the environment.
func buildOrchestrator(lt, st retrieval.Querier) (*retrieval.Orchestrator, error) {
	return retrieval.NewOrchestrator(lt, st, &retrieval.Config{ //nolint:wrapcheck // constructor errors carry package context
		TopK:             getEnvInt("RETRIEVAL_TOP_K", 0),
		TopL:             getEnvInt("RETRIEVAL_TOP_L", 0),
		UseLate:          getEnvBool("RETRIEVAL_USE_LATE", true),
		DocSearch:        getEnvBool("RETRIEVAL_DOC_SEARCH", true),
		MaxContextTokens: getEnvInt("RETRIEVAL_MAX_CONTEXT_TOKENS", 0),
	})
}

// buildAgentTools constructs the tool list for the agent: corpus retrieval
// always, web search when a backend is configured.
func buildAgentTools(orch *retrieval.Orchestrator, log *slog.Logger) ([]tool.BaseTool, error) {
	retrievalTool, err := tools.NewRetrievalTool(orch)
	if err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}
	toolList := []tool.BaseTool{retrievalTool}

	ws, err := websearch.NewClient(&websearch.Config{
		SerpAPIKey:   os.Getenv("SERPAPI_API_KEY"),
		GoogleAPIKey: os.Getenv("GOOGLE_CSE_API_KEY"),
		GoogleCX:     os.Getenv("GOOGLE_CSE_ID"),
	})
	if err != nil {
		log.Info("websearch: disabled", slog.String("reason", err.Error()))
		return toolList, nil
	}

	searchTool, err := tools.NewWebSearchTool(ws)
	if err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}
	return append(toolList, searchTool), nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvBool returns the boolean value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration returns the duration value of the named environment
// variable (Go syntax, e.g. "45s"), or fallback if unset or not parseable.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
