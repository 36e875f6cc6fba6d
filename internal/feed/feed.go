// Package feed defines the ingestion feed contract for the short-term
// store: a Source yields new items one at a time, a Blocklist filters
// unwanted items before they are embedded, and a Summarizer condenses item
// bodies into the text that gets stored.
package feed

import (
	"context"
	"fmt"
	"strings"
)

// Source yields new feed items. FetchNext returns the most recent item, or
// nil when the source has nothing newer than the last call. Implementations
// must be safe for concurrent use.
type Source interface {
	FetchNext(ctx context.Context) (*Item, error)
}

// Item is one unit fetched from a feed, shaped like an email message.
type Item struct {
	// Key identifies the item at its source (e.g. a Message-ID). Used to
	// derive the record ID and to suppress replays of the same item.
	Key string

	// Sender is the originating address.
	Sender string

	// Subject is the item's subject line.
	Subject string

	// Timestamp is the item's origin time, as reported by the source.
	Timestamp string

	// Body is the raw item body, summarized before storage.
	Body string
}

// Document renders the item into the text that is embedded and stored,
// with the given summary in place of the raw body.
func (it *Item) Document(summary string) string {
	return fmt.Sprintf("From: %s\nSubject: %s\nTimestamp: %s\n%s",
		it.Sender, it.Subject, it.Timestamp, summary)
}

// Blocklist filters items whose sender or subject contains any of the
// configured terms. Terms match case-sensitively, exactly as configured.
type Blocklist struct {
	terms []string
}

// NewBlocklist builds a Blocklist from the given terms. Empty terms are
// dropped; a nil or empty list matches nothing.
func NewBlocklist(terms []string) *Blocklist {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return &Blocklist{terms: out}
}

// Match reports whether the item should be filtered out.
func (b *Blocklist) Match(it *Item) bool {
	if b == nil || it == nil {
		return false
	}
	for _, term := range b.terms {
		if strings.Contains(it.Sender, term) || strings.Contains(it.Subject, term) {
			return true
		}
	}
	return false
}
