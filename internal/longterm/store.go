// Package longterm implements the archival vector store: bulk JSON
// ingestion with chunking, idempotent receipt of migrated records from the
// short-term store, and ranked retrieval over the accumulated corpus.
package longterm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/ragd-io/ragd/internal/logging"
	"github.com/ragd-io/ragd/internal/vecstore"
)

// defaultChunkSize is the maximum number of characters stored per record.
// Oversized documents are split into consecutive chunks of this size.
const defaultChunkSize = 1500

// Config holds the tunables for a long-term store.
type Config struct {
	// ChunkSize is the maximum characters per stored chunk. Defaults to
	// 1500 if zero.
	ChunkSize int
}

// Store is the long-term archival store.
type Store struct {
	// collection persists and searches the records.
	collection vecstore.Collection

	// embedder produces vectors at ingestion and query time.
	embedder vecstore.Embedder

	// searcher answers SmartQuery over the collection.
	searcher *vecstore.Searcher

	// chunkSize is the resolved maximum characters per chunk.
	chunkSize int
}

// NewStore constructs a long-term store over the given collection and
// embedder.
func NewStore(collection vecstore.Collection, embedder vecstore.Embedder, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	searcher, err := vecstore.NewSearcher(collection, embedder)
	if err != nil {
		return nil, fmt.Errorf("longterm: %w", err)
	}

	return &Store{
		collection: collection,
		embedder:   embedder,
		searcher:   searcher,
		chunkSize:  chunkSize,
	}, nil
}

// IngestFile reads a JSON file from disk and ingests it. Returns the number
// of records stored.
func (s *Store) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("longterm: read %s: %w", path, err)
	}
	return s.Ingest(ctx, data)
}

// Ingest parses a JSON document — either a mapping of source keys to
// objects or a list of objects — and stores each object as one or more
// chunked, embedded records. An object whose embedding fails is logged and
// skipped; the rest of the batch still lands. Returns the number of records
// stored.
func (s *Store) Ingest(ctx context.Context, data []byte) (int, error) {
	entries, err := parseEntries(data)
	if err != nil {
		return 0, err
	}

	log := logging.FromContext(ctx)

	stored := 0
	for _, entry := range entries {
		recs, err := s.buildRecords(ctx, entry)
		if err != nil {
			log.Warn("longterm: skipping object",
				"source_key", entry.key,
				"error", err,
			)
			continue
		}
		if err := s.collection.Upsert(ctx, recs); err != nil {
			return stored, fmt.Errorf("longterm: upsert for %q: %w", entry.key, err)
		}
		stored += len(recs)
	}

	log.Info("longterm: ingest complete",
		"objects", len(entries),
		"records", stored,
	)
	return stored, nil
}

// ReceiveRecords upserts pre-embedded records unchanged. Used by the
// short-term flush; re-delivery of the same record IDs is harmless.
func (s *Store) ReceiveRecords(ctx context.Context, recs []vecstore.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := s.collection.Upsert(ctx, recs); err != nil {
		return fmt.Errorf("longterm: receive records: %w", err)
	}
	return nil
}

// SmartQuery runs a ranked (and optionally substring-fallback) search over
// the archival corpus. See vecstore.Searcher.SmartQuery.
func (s *Store) SmartQuery(ctx context.Context, query string, topK, topL int, useLate, docSearch bool) ([]string, error) {
	return s.searcher.SmartQuery(ctx, query, topK, topL, useLate, docSearch)
}

// Count returns the number of records in the archival collection.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	return s.collection.Count(ctx)
}

// entry is one source object lifted out of the ingested JSON.
type entry struct {
	// key is the stable source key (mapping key, or list position).
	key string

	// document is the object serialized back to compact JSON.
	document string
}

// parseEntries accepts a mapping of objects or a list of objects. Mapping
// keys become source keys; list elements are keyed by position.
func parseEntries(data []byte) ([]entry, error) {
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &asMap); err == nil {
		keys := make([]string, 0, len(asMap))
		for k := range asMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		entries := make([]entry, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, entry{key: k, document: compact(asMap[k])})
		}
		return entries, nil
	}

	var asList []json.RawMessage
	if err := json.Unmarshal(data, &asList); err == nil {
		entries := make([]entry, 0, len(asList))
		for i, raw := range asList {
			entries = append(entries, entry{key: strconv.Itoa(i), document: compact(raw)})
		}
		return entries, nil
	}

	return nil, fmt.Errorf("longterm: payload is neither a JSON mapping nor a JSON list")
}

// compact re-serializes a raw JSON value without insignificant whitespace.
func compact(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// buildRecords chunks one entry and embeds every chunk. Either all chunks
// of the object embed or the object is rejected whole — partial objects
// with fabricated vectors never reach the collection.
func (s *Store) buildRecords(ctx context.Context, e entry) ([]vecstore.Record, error) {
	chunks := chunkText(e.document, s.chunkSize)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	dense, err := s.embedder.EmbedDense(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("dense embedding: %w", err)
	}
	if len(dense) != len(chunks) {
		return nil, fmt.Errorf("dense embedding: expected %d vectors, got %d", len(chunks), len(dense))
	}

	late, _ := s.embedder.(vecstore.LateEmbedder)

	recs := make([]vecstore.Record, 0, len(chunks))
	for i, chunk := range chunks {
		rec := vecstore.Record{
			ID:       vecstore.PointID(vecstore.ChunkKey(e.key, i)),
			Document: chunk,
			Dense:    dense[i],
			Metadata: map[string]string{
				"source_key":  e.key,
				"chunk_index": strconv.Itoa(i),
			},
		}
		if late != nil {
			matrix, err := late.EmbedLate(ctx, chunk)
			if err != nil {
				return nil, fmt.Errorf("late embedding chunk %d: %w", i, err)
			}
			rec.Late = matrix
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// chunkText splits text into consecutive chunks of at most size characters.
// No overlap: chunks are independent records with no reassembly contract.
func chunkText(text string, size int) []string {
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(text); start += size {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}
