package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ragd-io/ragd/internal/logging"
)

// NewIngestCmd constructs the `ragd ingest` command, which loads JSON
// payload files into the long-term archival store.
func NewIngestCmd() *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest JSON payload files into the long-term store",
		Long: `Parse JSON payload files and index their entries into the long-term
Qdrant collection.

A payload is either a JSON object keyed by document ID or a JSON array.
Each entry is chunked, embedded (dense and, when the backend supports it,
token-level), and upserted under deterministic IDs — re-ingesting the same
payload never creates duplicates.

Required environment variables:
  QDRANT_HOST                  Qdrant server hostname (default: localhost)
  QDRANT_PORT                  Qdrant gRPC port (default: 6334)
  QDRANT_LONGTERM_COLLECTION   Collection name (default: ragd-longterm)
  QDRANT_API_KEY               Optional API key for authenticated clusters
  EMBEDDING_PROVIDER           Embedding backend: hub, ollama, openai, azure (default: hub)
  EMBEDDING_*                  Provider-specific overrides (see README)

Examples:
  ragd ingest --file corpus.json
  ragd ingest --file faq.json --file newsletter-archive.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(files) == 0 {
				return fmt.Errorf("ingest: at least one --file is required")
			}

			emb, err := newEmbedder(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			store, col, err := buildLongTerm(ctx, emb)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer col.Close()

			total := 0
			for _, path := range files {
				n, err := store.IngestFile(ctx, path)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				log.Info("file ingested", slog.String("path", path), slog.Int("entries", n))
				total += n
			}

			log.Info("ingestion complete", slog.Int("files", len(files)), slog.Int("entries", total))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "JSON payload file to ingest (repeatable)")

	return cmd
}
