package vecstore

import (
	"context"
	"fmt"
	"strings"
)

// scanPageSize bounds per-page reads during the substring fallback scan.
const scanPageSize = 256

// Searcher combines a Collection with an Embedder to answer text queries.
// Both stores share this implementation.
type Searcher struct {
	// collection performs storage and similarity search.
	collection Collection

	// embedder converts query text to vectors. When it also implements
	// LateEmbedder, hybrid search is available.
	embedder Embedder
}

// NewSearcher constructs a Searcher over the given collection and embedder.
func NewSearcher(collection Collection, embedder Embedder) (*Searcher, error) {
	if collection == nil {
		return nil, fmt.Errorf("vecstore: collection must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("vecstore: embedder must not be nil")
	}
	return &Searcher{collection: collection, embedder: embedder}, nil
}

// SmartQuery runs a ranked similarity search and, optionally, a substring
// document scan, returning the merged document texts.
//
// With useLate set and a late-capable embedder, the ranked search retrieves
// topK dense candidates and re-ranks them to the top topL by
// late-interaction similarity; otherwise it is a plain dense search bounded
// by topL (topK is only the hybrid prefetch width). With docSearch set, records whose document contains the query
// (case-insensitive) are appended after the ranked hits. The merge keeps
// first occurrence by record ID, ranked hits first.
func (s *Searcher) SmartQuery(ctx context.Context, query string, topK, topL int, useLate, docSearch bool) ([]string, error) {
	if topK <= 0 {
		topK = 15
	}
	if topL <= 0 || topL > topK {
		topL = topK
	}

	dense, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	var ranked []Scored
	if late, ok := s.embedder.(LateEmbedder); useLate && ok {
		lateVecs, err := late.EmbedLate(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("vecstore: late embedding query failed: %w", err)
		}
		ranked, err = s.collection.SearchHybrid(ctx, dense, lateVecs, topK, topL)
		if err != nil {
			return nil, err
		}
	} else {
		ranked, err = s.collection.SearchDense(ctx, dense, topL)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, len(ranked))
	docs := make([]string, 0, len(ranked))
	for _, hit := range ranked {
		if _, ok := seen[hit.ID]; ok {
			continue
		}
		seen[hit.ID] = struct{}{}
		docs = append(docs, hit.Document)
	}

	if docSearch {
		matches, err := s.scanSubstring(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, rec := range matches {
			if _, ok := seen[rec.ID]; ok {
				continue
			}
			seen[rec.ID] = struct{}{}
			docs = append(docs, rec.Document)
		}
	}

	return docs, nil
}

// embedQuery embeds a single query string.
func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := s.embedder.EmbedDense(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vecstore: embedding query failed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("vecstore: embedder returned empty result for query")
	}
	return vecs[0], nil
}

// scanSubstring enumerates the whole collection and returns records whose
// document contains the query, case-insensitively. Linear in collection
// size; acceptable for the corpus sizes these stores hold.
func (s *Searcher) scanSubstring(ctx context.Context, query string) ([]Record, error) {
	needle := strings.ToLower(query)

	var matches []Record
	offset := ""
	for {
		recs, next, err := s.collection.ScrollPage(ctx, scanPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("vecstore: document scan failed: %w", err)
		}
		for _, rec := range recs {
			if strings.Contains(strings.ToLower(rec.Document), needle) {
				matches = append(matches, rec)
			}
		}
		if next == "" {
			break
		}
		offset = next
	}

	return matches, nil
}
