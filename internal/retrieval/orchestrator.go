// Package retrieval combines the long-term and short-term stores into a
// single corpus lookup with a bounded output size. This is the layer the
// agent's corpus tool calls.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ragd-io/ragd/internal/budget"
	"github.com/ragd-io/ragd/internal/logging"
)

// noResults is the block returned when no store produced a usable result.
// Callers and prompts rely on this exact line.
const noResults = "No results found."

// Default query shape, matching the stores' retrieval sweet spot.
const (
	defaultTopK = 15
	defaultTopL = 10
)

// Querier is the store-side contract. Satisfied by longterm.Store and
// shortterm.Store.
type Querier interface {
	SmartQuery(ctx context.Context, query string, topK, topL int, useLate, docSearch bool) ([]string, error)
}

// Config holds the orchestrator tunables.
type Config struct {
	// TopK is the dense candidate count per store. Defaults to 15.
	TopK int

	// TopL is the re-ranked result count per store. Defaults to 10.
	TopL int

	// UseLate enables late-interaction re-ranking when the embedder
	// supports it.
	UseLate bool

	// DocSearch enables the substring fallback scan.
	DocSearch bool

	// MaxContextTokens bounds the size of the returned block. Defaults to
	// budget.DefaultRetrievalTokens.
	MaxContextTokens int
}

// Orchestrator fans a query out to both stores and assembles the bounded
// context block.
type Orchestrator struct {
	// longTerm is the archival store. Its results lead the block.
	longTerm Querier

	// shortTerm is the volatile store. Optional.
	shortTerm Querier

	// cfg holds the resolved tunables.
	cfg Config
}

// NewOrchestrator constructs an Orchestrator. shortTerm may be nil for
// archive-only deployments.
func NewOrchestrator(longTerm, shortTerm Querier, cfg *Config) (*Orchestrator, error) {
	if longTerm == nil {
		return nil, fmt.Errorf("retrieval: long-term store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{UseLate: true, DocSearch: true}
	}
	resolved := *cfg
	if resolved.TopK <= 0 {
		resolved.TopK = defaultTopK
	}
	if resolved.TopL <= 0 {
		resolved.TopL = defaultTopL
	}
	if resolved.MaxContextTokens <= 0 {
		resolved.MaxContextTokens = budget.DefaultRetrievalTokens
	}

	return &Orchestrator{
		longTerm:  longTerm,
		shortTerm: shortTerm,
		cfg:       resolved,
	}, nil
}

// Retrieve queries both stores concurrently and returns a newline-joined
// block of result documents that fits the character budget. Long-term
// results come first, then short-term, deduplicated by document text. A
// result that would overflow the remaining budget ends the block. Store
// failures degrade to whatever the other store returned; with nothing
// usable the block is "No results found." — retrieval never fails the
// caller.
func (o *Orchestrator) Retrieve(ctx context.Context, query string) string {
	log := logging.FromContext(ctx)

	var longDocs, shortDocs []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := o.longTerm.SmartQuery(gctx, query, o.cfg.TopK, o.cfg.TopL, o.cfg.UseLate, o.cfg.DocSearch)
		if err != nil {
			log.Warn("retrieval: long-term query failed", "error", err)
			return nil
		}
		longDocs = docs
		return nil
	})
	if o.shortTerm != nil {
		g.Go(func() error {
			docs, err := o.shortTerm.SmartQuery(gctx, query, o.cfg.TopK, o.cfg.TopL, o.cfg.UseLate, o.cfg.DocSearch)
			if err != nil {
				log.Warn("retrieval: short-term query failed", "error", err)
				return nil
			}
			shortDocs = docs
			return nil
		})
	}
	// Store errors are swallowed above; Wait only propagates ctx errors.
	if err := g.Wait(); err != nil {
		log.Warn("retrieval: aborted", "error", err)
		return noResults
	}

	merged := mergeDocs(longDocs, shortDocs)
	block := assemble(merged, budget.Chars(o.cfg.MaxContextTokens))
	if block == "" {
		return noResults
	}
	return block
}

// mergeDocs concatenates long-term results before short-term results,
// keeping the first occurrence of each document text.
func mergeDocs(longDocs, shortDocs []string) []string {
	seen := make(map[string]struct{}, len(longDocs)+len(shortDocs))
	out := make([]string, 0, len(longDocs)+len(shortDocs))
	for _, doc := range append(append([]string{}, longDocs...), shortDocs...) {
		if doc == "" {
			continue
		}
		if _, ok := seen[doc]; ok {
			continue
		}
		seen[doc] = struct{}{}
		out = append(out, doc)
	}
	return out
}

// assemble joins documents with newlines until one would overflow the
// character budget. The first overflowing document ends the block — results
// are never truncated mid-document.
func assemble(docs []string, maxChars int) string {
	var b strings.Builder
	for _, doc := range docs {
		need := len(doc)
		if b.Len() > 0 {
			need++
		}
		if b.Len()+need > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(doc)
	}
	return b.String()
}
