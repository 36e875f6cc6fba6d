package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat models
// which are NOT suitable for embedding. If EMBEDDING_MODEL matches any of
// these, a warning is emitted so the operator knows they may have
// misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// ValidateForRetrieval checks that the embedding configuration can serve the
// retrieval pipeline. It returns an error if the configuration is clearly
// broken (e.g. azure with no API key) and logs a warning when the setup will
// silently degrade (dense-only backend while hybrid search is expected, or
// EMBEDDING_MODEL naming a chat model).
//
// This is a pre-flight check — call it before constructing the embedder or
// the vector collections so operators get a clear error at startup rather
// than a cryptic failure during the first embed call.
func ValidateForRetrieval(log *slog.Logger) error {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "hub")

	switch backend {
	case "hub":
		// Late-capable; nothing more to check — endpoint has a default.

	case "ollama":
		log.Warn("embedder: ollama has no late-interaction model — hybrid search degrades to dense-only",
			slog.String("backend", backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=hub for hybrid retrieval"),
		)

	case "openai":
		apiKey := os.Getenv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return fmt.Errorf("embedder: no OpenAI API key found — set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		log.Warn("embedder: openai has no late-interaction model — hybrid search degrades to dense-only",
			slog.String("backend", backend),
		)

	case "azure":
		apiKey := os.Getenv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
		if apiKey == "" {
			return fmt.Errorf("embedder: no Azure API key found — set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := os.Getenv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
		if endpoint == "" {
			return fmt.Errorf("embedder: no Azure endpoint found — set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		log.Warn("embedder: azure has no late-interaction model — hybrid search degrades to dense-only",
			slog.String("backend", backend),
		)

	default:
		return fmt.Errorf("embedder: unknown backend %q — valid values: hub, ollama, openai, azure", backend)
	}

	// Warn if EMBEDDING_MODEL looks like a chat model.
	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
