// Package vecstore defines the storage contract for embedded records and
// provides the similarity-search backends used by the long-term and
// short-term stores. Two implementations exist: a Qdrant-backed collection
// for production and an in-process memory collection with identical
// semantics for tests and local development.
package vecstore

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a record's dense vector does not
// match the dimensionality the collection was created with. This is a
// configuration error — the embedding provider and collection disagree —
// and must not be retried.
var ErrDimensionMismatch = errors.New("vecstore: vector dimension mismatch")

// Record is the unit of storage: one embedded document plus its metadata.
type Record struct {
	// ID is the unique identifier within a collection. Must be a UUID
	// string — use PointID to derive one from an arbitrary source key.
	ID string

	// Document is the serialized text payload that was embedded.
	Document string

	// Dense is the fixed-dimension embedding of Document, used for
	// approximate nearest-neighbor pre-filtering.
	Dense []float32

	// Late is the optional token-level embedding matrix of Document, used
	// for late-interaction max-similarity re-ranking. Nil when the
	// collection does not carry late vectors.
	Late [][]float32

	// Metadata holds auxiliary fields (sender, subject, timestamp, source
	// key). Informational only — not guaranteed indexed.
	Metadata map[string]string
}

// Scored is a Record annotated with the similarity score assigned during
// retrieval.
type Scored struct {
	Record

	// Score is the similarity score (cosine or MaxSim, depending on the
	// search mode).
	Score float32
}

// Collection is the interface for persisting and searching embedded records.
// Implementations must be safe to call from multiple goroutines — the
// short-term worker and query handlers share a collection without
// application-level locking.
type Collection interface {
	// Upsert inserts or overwrites records by ID. Idempotent: re-upserting
	// the same ID replaces the previous record. Partial batch failure may
	// leave a prefix committed; callers must tolerate retry.
	Upsert(ctx context.Context, recs []Record) error

	// Delete removes records by ID. Deleting a non-existent ID is a no-op.
	Delete(ctx context.Context, ids []string) error

	// Count returns the current number of records in the collection.
	Count(ctx context.Context) (uint64, error)

	// ScrollPage returns up to limit records starting after the given
	// offset token, plus the token for the next page. An empty offset
	// starts from the beginning; an empty next token means the scan is
	// complete. Records include their stored vectors.
	ScrollPage(ctx context.Context, limit int, offset string) ([]Record, string, error)

	// SearchDense returns up to limit records ranked by cosine similarity
	// to the query vector, descending. Ties are broken by ascending ID so
	// top-k boundaries are reproducible.
	SearchDense(ctx context.Context, query []float32, limit int) ([]Scored, error)

	// SearchHybrid retrieves prefetchLimit candidates by dense similarity,
	// re-ranks them by late-interaction max-similarity against the query
	// matrix, and returns the top limit. The result is always a subset of
	// the dense candidate set.
	SearchHybrid(ctx context.Context, dense []float32, late [][]float32, prefetchLimit, limit int) ([]Scored, error)

	// Close releases any resources held by the collection.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// EmbedDense converts a batch of texts into their embeddings.
	// The returned slice is parallel to the input slice.
	EmbedDense(ctx context.Context, texts []string) ([][]float32, error)
}

// LateEmbedder extends Embedder with token-level late-interaction
// embeddings. Only backends with a ColBERT-style model implement it;
// callers should degrade to dense-only search when the assertion fails.
type LateEmbedder interface {
	Embedder

	// EmbedLate converts a single text into its token-level embedding
	// matrix (one row per token).
	EmbedLate(ctx context.Context, text string) ([][]float32, error)
}
