package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestItemDocument(t *testing.T) {
	t.Parallel()

	it := &Item{
		Key:       "msg-1",
		Sender:    "dean@university.edu",
		Subject:   "Budget update",
		Timestamp: "2026-02-01T09:00:00Z",
		Body:      "long body",
	}

	doc := it.Document("Budget approved for Q2.")
	want := "From: dean@university.edu\nSubject: Budget update\nTimestamp: 2026-02-01T09:00:00Z\nBudget approved for Q2."
	if doc != want {
		t.Errorf("Document() = %q, want %q", doc, want)
	}
}

func TestBlocklistMatch(t *testing.T) {
	t.Parallel()

	bl := NewBlocklist([]string{"Newsletter", "noreply@", " "})

	tests := []struct {
		name string
		item Item
		want bool
	}{
		{"subject hit", Item{Sender: "a@b.c", Subject: "Weekly Newsletter #12"}, true},
		{"sender hit", Item{Sender: "noreply@spam.example", Subject: "hi"}, true},
		{"sender case differs", Item{Sender: "NoReply@spam.example", Subject: "hi"}, false},
		{"subject case differs", Item{Sender: "a@b.c", Subject: "weekly newsletter #12"}, false},
		{"clean", Item{Sender: "dean@university.edu", Subject: "Budget"}, false},
		{"body is not inspected", Item{Sender: "a@b.c", Subject: "ok", Body: "Newsletter"}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := bl.Match(&tt.item); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBlocklistEmptyMatchesNothing(t *testing.T) {
	t.Parallel()

	var bl *Blocklist
	if bl.Match(&Item{Sender: "anyone", Subject: "anything"}) {
		t.Error("nil blocklist matched")
	}
	if NewBlocklist(nil).Match(&Item{Sender: "anyone"}) {
		t.Error("empty blocklist matched")
	}
}

func TestHTTPSourceFetchNext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			t.Errorf("path = %q, want /latest", r.URL.Path)
		}
		json.NewEncoder(w).Encode(latestResponse{
			ID:        "msg-9",
			From:      "provost@university.edu",
			Subject:   "Town hall",
			Timestamp: "2026-02-02T10:00:00Z",
			Body:      "Please attend.",
		})
	}))
	defer srv.Close()

	src := NewHTTPSource(&HTTPSourceConfig{BaseURL: srv.URL})
	it, err := src.FetchNext(context.Background())
	if err != nil {
		t.Fatalf("FetchNext: %v", err)
	}
	if it == nil || it.Key != "msg-9" || it.Sender != "provost@university.edu" {
		t.Errorf("unexpected item: %+v", it)
	}
}

func TestHTTPSourceEmptyMailbox(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(latestResponse{})
	}))
	defer srv.Close()

	src := NewHTTPSource(&HTTPSourceConfig{BaseURL: srv.URL})
	it, err := src.FetchNext(context.Background())
	if err != nil {
		t.Fatalf("FetchNext: %v", err)
	}
	if it != nil {
		t.Errorf("expected nil item for empty mailbox, got %+v", it)
	}
}

func TestHTTPSummarizer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req summarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(summarizeResponse{Summary: "short"})
	}))
	defer srv.Close()

	sum := NewHTTPSummarizer(&HTTPSummarizerConfig{BaseURL: srv.URL})
	got, err := sum.Summarize(context.Background(), "a very long body")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "short" {
		t.Errorf("summary = %q, want short", got)
	}
}

func TestHTTPSummarizerErrorPropagates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(summarizeResponse{Error: "model offline"})
	}))
	defer srv.Close()

	sum := NewHTTPSummarizer(&HTTPSummarizerConfig{BaseURL: srv.URL})
	_, err := sum.Summarize(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "model offline") {
		t.Errorf("error %q missing server message", err)
	}
}
