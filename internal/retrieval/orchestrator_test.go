package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fixedQuerier returns the same documents for every query.
type fixedQuerier struct {
	docs []string
	err  error
}

func (f *fixedQuerier) SmartQuery(context.Context, string, int, int, bool, bool) ([]string, error) {
	return f.docs, f.err
}

func TestRetrieveLongTermLeadsShortTerm(t *testing.T) {
	t.Parallel()

	o, err := NewOrchestrator(
		&fixedQuerier{docs: []string{"archive one", "archive two"}},
		&fixedQuerier{docs: []string{"fresh one"}},
		nil,
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	block := o.Retrieve(context.Background(), "anything")
	lines := strings.Split(block, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), block)
	}
	if lines[0] != "archive one" || lines[2] != "fresh one" {
		t.Errorf("merge order wrong: %q", lines)
	}
}

func TestRetrieveDeduplicatesAcrossStores(t *testing.T) {
	t.Parallel()

	o, err := NewOrchestrator(
		&fixedQuerier{docs: []string{"shared doc", "archive only"}},
		&fixedQuerier{docs: []string{"shared doc", "fresh only"}},
		nil,
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	block := o.Retrieve(context.Background(), "q")
	if strings.Count(block, "shared doc") != 1 {
		t.Errorf("duplicate document in block: %q", block)
	}
}

func TestRetrieveBudgetDropsWholeDocuments(t *testing.T) {
	t.Parallel()

	// Three 500-char documents against a 256-token (1024-char) budget:
	// the first two fit (500 + 1 + 500 = 1001), the third would overflow
	// and must be dropped whole.
	doc := func(c byte) string { return strings.Repeat(string(c), 500) }
	o, err := NewOrchestrator(
		&fixedQuerier{docs: []string{doc('a'), doc('b'), doc('c')}},
		nil,
		&Config{MaxContextTokens: 256},
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	block := o.Retrieve(context.Background(), "q")
	if len(block) != 1001 {
		t.Errorf("block length = %d, want 1001", len(block))
	}
	if strings.Contains(block, "c") {
		t.Error("third document should have been dropped whole")
	}
	if !strings.HasSuffix(block, doc('b')) {
		t.Error("second document missing or truncated")
	}
}

func TestRetrieveDegradesWhenOneStoreFails(t *testing.T) {
	t.Parallel()

	o, err := NewOrchestrator(
		&fixedQuerier{err: errors.New("backend down")},
		&fixedQuerier{docs: []string{"fresh result"}},
		nil,
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	block := o.Retrieve(context.Background(), "q")
	if block != "fresh result" {
		t.Errorf("block = %q, want the surviving store's result", block)
	}
}

func TestRetrieveNoResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		long  *fixedQuerier
		short *fixedQuerier
	}{
		{"both empty", &fixedQuerier{}, &fixedQuerier{}},
		{"both failing", &fixedQuerier{err: errors.New("a")}, &fixedQuerier{err: errors.New("b")}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o, err := NewOrchestrator(tt.long, tt.short, nil)
			if err != nil {
				t.Fatalf("NewOrchestrator: %v", err)
			}
			if block := o.Retrieve(context.Background(), "q"); block != "No results found." {
				t.Errorf("block = %q, want the no-results line", block)
			}
		})
	}
}
