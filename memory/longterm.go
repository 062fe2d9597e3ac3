package memory

import (
	"context"
	"log"
	"sort"
	"time"
)

// MetadataTimeKey is the metadata key under which every record's
// persistence timestamp is stored, RFC 3339 formatted.
const MetadataTimeKey = "time"

// LongTermMemory is the append-only collection of persisted memories,
// queryable by semantic similarity and optional metadata predicate.
type LongTermMemory struct {
	store    Store
	embedder Embedder
	gate     Gate
	now      func() time.Time
}

// Option configures a LongTermMemory.
type Option func(*LongTermMemory)

// WithClock overrides the timestamp source. Used by tests to make
// tie-breaking deterministic.
func WithClock(now func() time.Time) Option {
	return func(m *LongTermMemory) {
		m.now = now
	}
}

// NewLongTermMemory wires a store, an embedder, and an importance gate
// into a long-term memory. All three collaborators are explicitly owned
// by the caller; there is no ambient global state.
func NewLongTermMemory(store Store, embedder Embedder, gate Gate, opts ...Option) *LongTermMemory {
	m := &LongTermMemory{
		store:    store,
		embedder: embedder,
		gate:     gate,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add offers a candidate memory for persistence. The importance gate runs
// first: a rejected candidate is a "not stored" outcome (id empty, stored
// false, nil error), not a failure. An accepted candidate is embedded and
// appended as a new record.
//
// A non-nil error is always a *StorageError; gate failures never surface.
func (m *LongTermMemory) Add(ctx context.Context, text string) (string, bool, error) {
	return m.AddWithMetadata(ctx, text, nil)
}

// AddWithMetadata is Add with caller-supplied metadata attached to the
// record, usable later as a Query filter. The persistence timestamp is
// always recorded under MetadataTimeKey.
func (m *LongTermMemory) AddWithMetadata(ctx context.Context, text string, metadata map[string]string) (string, bool, error) {
	if !m.gate.Admit(ctx, text) {
		log.Printf("[MEMORY] Not important enough to store: %q", truncateLog(text, 60))
		return "", false, nil
	}

	createdAt := m.now()
	rec := newRecord(text, createdAt, metadata)
	rec.metadata[MetadataTimeKey] = createdAt.UTC().Format(time.RFC3339Nano)

	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return "", false, &StorageError{Op: "embed", Err: err}
	}
	rec.SetEmbedding(embedding)

	if err := m.store.Insert(ctx, rec); err != nil {
		return "", false, &StorageError{Op: "insert", Err: err}
	}

	log.Printf("[MEMORY] Stored record %s: %q", rec.ID(), truncateLog(text, 60))
	return rec.ID(), true, nil
}

// Query returns up to k records relevant to text, ranked by descending
// similarity with ties broken by most recent creation time. The optional
// filter restricts results to records whose metadata matches every given
// key/value pair. An empty store, or a filter matching nothing, yields an
// empty result with a nil error; a failure reaching the store yields a
// *StorageError so callers can tell the two apart.
//
// Ranking is deterministic: identical queries against an unchanged store
// return identical results.
func (m *LongTermMemory) Query(ctx context.Context, text string, k int, filter map[string]string) ([]*Record, error) {
	if k <= 0 {
		return nil, nil
	}

	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &StorageError{Op: "embed", Err: err}
	}

	scored, err := m.store.Search(ctx, embedding, k, filter)
	if err != nil {
		return nil, &StorageError{Op: "search", Err: err}
	}
	if len(scored) == 0 {
		return nil, nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Record.CreatedAt().After(scored[j].Record.CreatedAt())
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	records := make([]*Record, len(scored))
	for i, s := range scored {
		records[i] = s.Record
	}

	log.Printf("[MEMORY] Retrieved %d records for query: %q", len(records), truncateLog(text, 60))
	return records, nil
}

// Count returns the number of persisted records.
func (m *LongTermMemory) Count() int {
	return m.store.Count()
}

// truncateLog shortens text for log lines.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
