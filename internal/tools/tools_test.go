package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRetriever struct {
	lastQuery string
	block     string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) string {
	f.lastQuery = query
	return f.block
}

type fakeSearcher struct {
	block string
	err   error
}

func (f *fakeSearcher) Search(context.Context, string) (string, error) {
	return f.block, f.err
}

func TestRetrievalToolRun(t *testing.T) {
	t.Parallel()

	r := &fakeRetriever{block: "Director: Dr. X, appointed 2019."}
	tl, err := NewRetrievalTool(r)
	if err != nil {
		t.Fatalf("NewRetrievalTool: %v", err)
	}

	out, err := tl.InvokableRun(context.Background(), `{"query": "who is the director"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if out != r.block {
		t.Errorf("output = %q, want retrieval block", out)
	}
	if r.lastQuery != "who is the director" {
		t.Errorf("query = %q", r.lastQuery)
	}
}

func TestRetrievalToolRejectsBadInput(t *testing.T) {
	t.Parallel()

	tl, err := NewRetrievalTool(&fakeRetriever{})
	if err != nil {
		t.Fatalf("NewRetrievalTool: %v", err)
	}

	if _, err := tl.InvokableRun(context.Background(), `not json`); err == nil {
		t.Error("expected error for malformed input")
	}
	if _, err := tl.InvokableRun(context.Background(), `{}`); err == nil {
		t.Error("expected error for missing query")
	}
}

func TestRetrievalToolInfo(t *testing.T) {
	t.Parallel()

	tl, err := NewRetrievalTool(&fakeRetriever{})
	if err != nil {
		t.Fatalf("NewRetrievalTool: %v", err)
	}

	info, err := tl.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Name != "corpus_retrieval" {
		t.Errorf("name = %q", info.Name)
	}
}

func TestWebSearchToolRun(t *testing.T) {
	t.Parallel()

	tl, err := NewWebSearchTool(&fakeSearcher{block: "Title: Example"})
	if err != nil {
		t.Fatalf("NewWebSearchTool: %v", err)
	}

	out, err := tl.InvokableRun(context.Background(), `{"query": "campus news"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if !strings.Contains(out, "Title: Example") {
		t.Errorf("output = %q", out)
	}
}

func TestWebSearchToolPropagatesError(t *testing.T) {
	t.Parallel()

	tl, err := NewWebSearchTool(&fakeSearcher{err: errors.New("quota")})
	if err != nil {
		t.Fatalf("NewWebSearchTool: %v", err)
	}

	if _, err := tl.InvokableRun(context.Background(), `{"query": "q"}`); err == nil {
		t.Error("expected error from failing backend")
	}
}
