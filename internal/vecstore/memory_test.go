package vecstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMemoryUpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	rec := Record{ID: PointID("k1"), Document: "first", Dense: []float32{1, 0}}
	if err := m.Upsert(ctx, []Record{rec}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	rec.Document = "second"
	if err := m.Upsert(ctx, []Record{rec}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	n, err := m.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	recs, _, err := m.ScrollPage(ctx, 10, "")
	if err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if len(recs) != 1 || recs[0].Document != "second" {
		t.Errorf("record not replaced: %+v", recs)
	}
}

func TestMemoryRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	if err := m.Upsert(ctx, []Record{{ID: PointID("a"), Dense: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	err := m.Upsert(ctx, []Record{{ID: PointID("b"), Dense: []float32{1, 0}}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestMemoryDeleteUnknownIDIsNoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	if err := m.Upsert(ctx, []Record{{ID: PointID("a"), Dense: []float32{1}}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.Delete(ctx, []string{PointID("missing")}); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}

	n, _ := m.Count(ctx)
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestMemoryScrollPageVisitsEveryRecordOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	const total = 25
	recs := make([]Record, 0, total)
	for i := 0; i < total; i++ {
		recs = append(recs, Record{
			ID:       PointID(fmt.Sprintf("rec-%02d", i)),
			Document: fmt.Sprintf("doc %d", i),
			Dense:    []float32{float32(i), 1},
		})
	}
	if err := m.Upsert(ctx, recs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	seen := make(map[string]int)
	offset := ""
	for {
		page, next, err := m.ScrollPage(ctx, 7, offset)
		if err != nil {
			t.Fatalf("scroll: %v", err)
		}
		for _, rec := range page {
			seen[rec.ID]++
		}
		if next == "" {
			break
		}
		offset = next
	}

	if len(seen) != total {
		t.Errorf("visited %d distinct records, want %d", len(seen), total)
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("record %s visited %d times", id, count)
		}
	}
}

func TestMemorySearchDenseRanksByCosine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	err := m.Upsert(ctx, []Record{
		{ID: PointID("east"), Document: "east", Dense: []float32{1, 0}},
		{ID: PointID("north"), Document: "north", Dense: []float32{0, 1}},
		{ID: PointID("northeast"), Document: "northeast", Dense: []float32{1, 1}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := m.SearchDense(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Document != "east" {
		t.Errorf("top hit = %q, want east", hits[0].Document)
	}
	if hits[1].Document != "northeast" {
		t.Errorf("second hit = %q, want northeast", hits[1].Document)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("scores not descending: %v then %v", hits[0].Score, hits[1].Score)
	}
}

func TestMemorySearchHybridIsSubsetOfPrefetch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	// "far" is dense-closest but has a weak late matrix; "near" wins on
	// re-rank. "off" never enters the prefetch set of size 2.
	err := m.Upsert(ctx, []Record{
		{ID: PointID("far"), Document: "far", Dense: []float32{1, 0}, Late: [][]float32{{0.1, 0}}},
		{ID: PointID("near"), Document: "near", Dense: []float32{0.9, 0.1}, Late: [][]float32{{1, 0}}},
		{ID: PointID("off"), Document: "off", Dense: []float32{0, 1}, Late: [][]float32{{5, 5}}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := m.SearchHybrid(ctx, []float32{1, 0}, [][]float32{{1, 0}}, 2, 2)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Document != "near" {
		t.Errorf("top hit = %q, want near (late re-rank)", hits[0].Document)
	}
	for _, hit := range hits {
		if hit.Document == "off" {
			t.Errorf("hit %q was outside the dense prefetch set", hit.Document)
		}
	}
}

func TestMaxSim(t *testing.T) {
	t.Parallel()

	query := [][]float32{{1, 0}, {0, 1}}
	doc := [][]float32{{0.5, 0}, {0, 2}}

	// Row 1 best-matches {0.5,0} = 0.5; row 2 best-matches {0,2} = 2.
	got := maxSim(query, doc)
	if want := float32(2.5); got != want {
		t.Errorf("maxSim = %v, want %v", got, want)
	}
}

func TestCosineEdgeCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := cosine(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("cosine = %v, want %v", got, tt.want)
			}
		})
	}
}
