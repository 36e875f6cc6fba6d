package vecstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process Collection used by tests and local development.
// It mirrors the Qdrant collection's semantics exactly: idempotent upsert,
// no-op delete of unknown IDs, token-based scroll, cosine dense search and
// MaxSim hybrid re-ranking. Safe for concurrent use.
type Memory struct {
	// mu guards records.
	mu sync.RWMutex

	// records maps record ID to its stored copy.
	records map[string]Record

	// denseSize is the expected dense vector dimensionality. Fixed by the
	// first upserted record; subsequent mismatches are rejected.
	denseSize int
}

// NewMemory constructs an empty in-process collection.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// Upsert inserts or overwrites records by ID.
func (m *Memory) Upsert(_ context.Context, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range recs {
		if m.denseSize == 0 {
			m.denseSize = len(rec.Dense)
		} else if len(rec.Dense) != m.denseSize {
			return fmt.Errorf("%w: collection has %d, record %q has %d",
				ErrDimensionMismatch, m.denseSize, rec.ID, len(rec.Dense))
		}
		m.records[rec.ID] = cloneRecord(rec)
	}
	return nil
}

// Delete removes records by ID. Unknown IDs are ignored.
func (m *Memory) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

// Count returns the current record count.
func (m *Memory) Count(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.records)), nil
}

// ScrollPage returns up to limit records after the offset token in
// ascending ID order. The next token is the ID of the last returned record.
func (m *Memory) ScrollPage(_ context.Context, limit int, offset string) ([]Record, string, error) {
	if limit <= 0 {
		limit = 100
	}

	m.mu.RLock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		if offset == "" || id > offset {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := m.records[id]; ok {
			recs = append(recs, cloneRecord(rec))
		}
	}

	next := ""
	if len(recs) == limit {
		next = recs[len(recs)-1].ID
	}
	return recs, next, nil
}

// SearchDense returns the top-limit records by cosine similarity,
// descending, ties broken by ascending ID.
func (m *Memory) SearchDense(_ context.Context, query []float32, limit int) ([]Scored, error) {
	m.mu.RLock()
	scored := make([]Scored, 0, len(m.records))
	for _, rec := range m.records {
		scored = append(scored, Scored{Record: cloneRecord(rec), Score: cosine(query, rec.Dense)})
	}
	m.mu.RUnlock()

	sortScored(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// SearchHybrid re-ranks the dense prefetch set by MaxSim against the late
// query matrix. Records without a stored late matrix keep their dense score
// so they are never silently dropped from the candidate set.
func (m *Memory) SearchHybrid(ctx context.Context, dense []float32, late [][]float32, prefetchLimit, limit int) ([]Scored, error) {
	candidates, err := m.SearchDense(ctx, dense, prefetchLimit)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		if len(candidates[i].Late) > 0 {
			candidates[i].Score = maxSim(late, candidates[i].Late)
		}
	}

	sortScored(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Close is a no-op for the in-process collection.
func (m *Memory) Close() error { return nil }

// sortScored orders by score descending, then ID ascending. The ID
// tie-break keeps top-k boundaries reproducible across runs.
func sortScored(s []Scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].ID < s[j].ID
	})
}

// cloneRecord deep-copies a record so callers cannot mutate stored state.
func cloneRecord(rec Record) Record {
	out := rec
	out.Dense = append([]float32(nil), rec.Dense...)
	if rec.Late != nil {
		out.Late = make([][]float32, len(rec.Late))
		for i, row := range rec.Late {
			out.Late[i] = append([]float32(nil), row...)
		}
	}
	if rec.Metadata != nil {
		out.Metadata = make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// cosine returns the cosine similarity of a and b. Mismatched or zero
// vectors score 0 rather than erroring — a degenerate record should rank
// last, not fail the query.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// maxSim computes the ColBERT-style late-interaction score: for each query
// token row, take the maximum dot product against all document token rows,
// then sum over query tokens.
func maxSim(query, doc [][]float32) float32 {
	var total float64
	for _, q := range query {
		best := math.Inf(-1)
		for _, d := range doc {
			if s := dot(q, d); s > best {
				best = s
			}
		}
		if !math.IsInf(best, -1) {
			total += best
		}
	}
	return float32(total)
}

// dot returns the dot product of a and b, treating length mismatch as 0.
func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
