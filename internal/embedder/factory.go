package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ragd-io/ragd/internal/vecstore"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// defaultHubDimensions is the dense output dimension of the hub's
	// sentence model.
	defaultHubDimensions = 768
	// defaultHubLateDimensions is the per-token output dimension of the
	// hub's ColBERT model.
	defaultHubLateDimensions = 128
)

// DefaultDimensions returns the default dense embedding vector size for the
// given backend name. Callers that pre-configure a vector store (e.g.
// Qdrant collection creation) should use this rather than hardcoding a
// value. EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "openai", "azure":
		return defaultOpenAIDimensions
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultHubDimensions
	}
}

// LateDimensions returns the per-token late embedding size for the given
// backend, or 0 when the backend has no late-interaction model.
// EMBEDDING_LATE_DIMENSIONS always takes precedence when set.
func LateDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_LATE_DIMENSIONS", 0); v > 0 {
		return v
	}
	if backend == "hub" {
		return defaultHubLateDimensions
	}
	return 0
}

// NewFromEnv constructs a vecstore.Embedder from environment configuration.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER — hub (default), ollama, openai, azure
//  2. EMBEDDING_ENDPOINT — overrides the backend's default endpoint
//  3. EMBEDDING_MODEL — overrides the default model (ollama/openai/azure)
//  4. EMBEDDING_API_KEY — overrides the inherited API key
//  5. EMBEDDING_DIMENSIONS — overrides the default dense dimensions
//
// Only the hub backend returns a vecstore.LateEmbedder; the others serve
// dense-only retrieval.
func NewFromEnv() (vecstore.Embedder, error) {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "hub")

	switch backend {
	case "hub":
		endpoint := getEnvOrDefault("EMBEDDING_ENDPOINT", "http://localhost:8800")
		return NewHubEmbedder(&HubConfig{
			BaseURL: endpoint,
			APIKey:  getEnv("EMBEDDING_API_KEY"),
		}), nil

	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		model := getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: model,
		}), nil

	case "openai":
		dims := getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions)
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := getEnv("EMBEDDING_ENDPOINT")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      model,
			Dimensions: dims,
		}), nil

	case "azure":
		dims := getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions)
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := getEnv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		apiVersion := getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview")
		model := getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint + "/openai",
			APIKey:     apiKey,
			Model:      model,
			Dimensions: dims,
			Azure:      true,
			APIVersion: apiVersion,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: hub, ollama, openai, azure", backend)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
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
