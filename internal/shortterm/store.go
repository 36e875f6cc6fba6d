// Package shortterm implements the volatile ingestion store: a background
// worker polls a feed for new items, filters and embeds them, and
// periodically migrates the accumulated records into the long-term store.
package shortterm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ragd-io/ragd/internal/feed"
	"github.com/ragd-io/ragd/internal/logging"
	"github.com/ragd-io/ragd/internal/vecstore"
)

// Default worker tunables.
const (
	defaultPollInterval = 30 * time.Second
	defaultMaxAge       = time.Hour
	defaultMaxCount     = 50
)

// LongTerm is the migration target. Satisfied by longterm.Store.
type LongTerm interface {
	ReceiveRecords(ctx context.Context, recs []vecstore.Record) error
}

// Config holds the tunables for the short-term store and its worker.
type Config struct {
	// PollInterval is the delay between feed polls. Defaults to 30s.
	PollInterval time.Duration

	// MaxAge is the flush age threshold: once this much time has passed
	// since the last flush, the next cycle migrates everything. Defaults
	// to 1h.
	MaxAge time.Duration

	// MaxCount is the flush size threshold: once the store holds this many
	// records, the next cycle migrates everything. Defaults to 50.
	MaxCount uint64
}

// Store is the short-term volatile store plus its ingestion worker.
type Store struct {
	// collection holds the not-yet-migrated records.
	collection vecstore.Collection

	// embedder produces vectors for incoming items and queries.
	embedder vecstore.Embedder

	// searcher answers SmartQuery over the collection.
	searcher *vecstore.Searcher

	// source yields new feed items. Required to run the worker.
	source feed.Source

	// summarizer condenses item bodies. Nil stores bodies verbatim.
	summarizer feed.Summarizer

	// blocklist filters unwanted items before embedding.
	blocklist *feed.Blocklist

	// longTerm receives migrated records on flush.
	longTerm LongTerm

	// cfg holds the resolved tunables.
	cfg Config

	// mu guards the worker state below.
	mu sync.Mutex

	// running reports whether the worker goroutine is alive.
	running bool

	// stop asks the worker to exit; done closes when it has.
	stop chan struct{}
	done chan struct{}

	// lastKey is the replay guard: the key of the last item that was
	// embedded and stored. The feed returns the newest item repeatedly
	// until a newer one arrives.
	lastKey string

	// lastFlush anchors the age-based flush trigger.
	lastFlush time.Time
}

// NewStore constructs a short-term store. source may be nil when the worker
// will never run (query-only deployments); longTerm may be nil to disable
// migration.
func NewStore(collection vecstore.Collection, embedder vecstore.Embedder, source feed.Source,
	summarizer feed.Summarizer, blocklist *feed.Blocklist, longTerm LongTerm, cfg *Config) (*Store, error) {

	if cfg == nil {
		cfg = &Config{}
	}
	resolved := *cfg
	if resolved.PollInterval <= 0 {
		resolved.PollInterval = defaultPollInterval
	}
	if resolved.MaxAge <= 0 {
		resolved.MaxAge = defaultMaxAge
	}
	if resolved.MaxCount == 0 {
		resolved.MaxCount = defaultMaxCount
	}

	searcher, err := vecstore.NewSearcher(collection, embedder)
	if err != nil {
		return nil, fmt.Errorf("shortterm: %w", err)
	}

	return &Store{
		collection: collection,
		embedder:   embedder,
		searcher:   searcher,
		source:     source,
		summarizer: summarizer,
		blocklist:  blocklist,
		longTerm:   longTerm,
		cfg:        resolved,
		lastFlush:  time.Now(),
	}, nil
}

// RunWorker starts the background poll loop. Starting an already-running
// worker is a no-op. Returns an error when no feed source is configured.
func (s *Store) RunWorker(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.source == nil {
		return fmt.Errorf("shortterm: no feed source configured")
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(ctx, s.stop, s.done)
	return nil
}

// StopWorker asks the worker to exit and waits for it. Stopping a stopped
// worker is a no-op.
func (s *Store) StopWorker() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Running reports whether the worker goroutine is alive.
func (s *Store) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// loop is the worker body: one cycle per poll interval until stopped.
func (s *Store) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	log := logging.FromContext(ctx)
	log.Info("shortterm: worker started",
		"poll_interval", s.cfg.PollInterval.String(),
		"max_age", s.cfg.MaxAge.String(),
		"max_count", s.cfg.MaxCount,
	)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.cycle(ctx)

		select {
		case <-stop:
			log.Info("shortterm: worker stopped")
			return
		case <-ctx.Done():
			log.Info("shortterm: worker context cancelled")
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-ticker.C:
		}
	}
}

// cycle runs one poll: fetch, filter, store, flush check. Transient errors
// are logged and the cycle is abandoned; the next tick retries.
func (s *Store) cycle(ctx context.Context) {
	log := logging.FromContext(ctx)

	item, err := s.source.FetchNext(ctx)
	if err != nil {
		log.Warn("shortterm: feed fetch failed", "error", err)
		return
	}

	if item != nil {
		if s.blocklist.Match(item) {
			log.Debug("shortterm: item blocklisted",
				"key", item.Key,
				"sender", item.Sender,
			)
		} else if s.seen(item.Key) {
			log.Debug("shortterm: item already processed", "key", item.Key)
		} else if err := s.ingestItem(ctx, item); err != nil {
			log.Warn("shortterm: item ingestion failed",
				"key", item.Key,
				"error", err,
			)
		} else {
			s.markSeen(item.Key)
			log.Info("shortterm: item stored", "key", item.Key)
		}
	}

	if err := s.maybeFlush(ctx); err != nil {
		log.Warn("shortterm: flush failed", "error", err)
	}
}

// seen reports whether key matches the last stored item.
func (s *Store) seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return key != "" && key == s.lastKey
}

// markSeen records the last stored item key.
func (s *Store) markSeen(key string) {
	s.mu.Lock()
	s.lastKey = key
	s.mu.Unlock()
}

// ingestItem summarizes, embeds, and stores one feed item.
func (s *Store) ingestItem(ctx context.Context, item *feed.Item) error {
	body := item.Body
	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(ctx, item.Body)
		if err != nil {
			return fmt.Errorf("summarize: %w", err)
		}
		body = summary
	}

	doc := item.Document(body)

	dense, err := s.embedder.EmbedDense(ctx, []string{doc})
	if err != nil {
		return fmt.Errorf("dense embedding: %w", err)
	}
	if len(dense) != 1 {
		return fmt.Errorf("dense embedding: expected 1 vector, got %d", len(dense))
	}

	rec := vecstore.Record{
		ID:       vecstore.PointID(item.Key),
		Document: doc,
		Dense:    dense[0],
		Metadata: map[string]string{
			"source_key": item.Key,
			"sender":     item.Sender,
			"subject":    item.Subject,
			"timestamp":  item.Timestamp,
		},
	}
	if late, ok := s.embedder.(vecstore.LateEmbedder); ok {
		matrix, err := late.EmbedLate(ctx, doc)
		if err != nil {
			return fmt.Errorf("late embedding: %w", err)
		}
		rec.Late = matrix
	}

	if err := s.collection.Upsert(ctx, []vecstore.Record{rec}); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// maybeFlush migrates everything to long-term when either threshold is
// crossed: the store is old enough or full enough.
func (s *Store) maybeFlush(ctx context.Context) error {
	if s.longTerm == nil {
		return nil
	}

	count, err := s.collection.Count(ctx)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}

	s.mu.Lock()
	age := time.Since(s.lastFlush)
	s.mu.Unlock()

	if age < s.cfg.MaxAge && count < s.cfg.MaxCount {
		return nil
	}
	return s.FlushToLongTerm(ctx)
}

// FlushToLongTerm migrates every record, vectors included, into the
// long-term store and removes the migrated records. A failed removal is
// logged but not fatal: re-delivery on the next flush is absorbed by the
// long-term store's id-keyed upsert.
func (s *Store) FlushToLongTerm(ctx context.Context) error {
	if s.longTerm == nil {
		return fmt.Errorf("shortterm: no long-term store configured")
	}

	log := logging.FromContext(ctx)

	migrated := 0
	offset := ""
	for {
		recs, next, err := s.collection.ScrollPage(ctx, 100, offset)
		if err != nil {
			return fmt.Errorf("shortterm: flush scroll: %w", err)
		}
		if len(recs) > 0 {
			if err := s.longTerm.ReceiveRecords(ctx, recs); err != nil {
				return fmt.Errorf("shortterm: flush handoff: %w", err)
			}
			ids := make([]string, 0, len(recs))
			for _, rec := range recs {
				ids = append(ids, rec.ID)
			}
			if err := s.collection.Delete(ctx, ids); err != nil {
				log.Warn("shortterm: flush cleanup failed, duplicates possible until next flush",
					"records", len(ids),
					"error", err,
				)
			}
			migrated += len(recs)
		}
		if next == "" {
			break
		}
		offset = next
	}

	s.mu.Lock()
	s.lastFlush = time.Now()
	s.mu.Unlock()

	log.Info("shortterm: flushed to long-term", "records", migrated)
	return nil
}

// SmartQuery runs a ranked (and optionally substring-fallback) search over
// the volatile records. See vecstore.Searcher.SmartQuery.
func (s *Store) SmartQuery(ctx context.Context, query string, topK, topL int, useLate, docSearch bool) ([]string, error) {
	return s.searcher.SmartQuery(ctx, query, topK, topL, useLate, docSearch)
}

// Count returns the number of not-yet-migrated records.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	return s.collection.Count(ctx)
}
