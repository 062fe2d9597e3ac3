// Package chromem backs the memory store with chromem-go, a pure Go
// embedded vector database. With a path configured the collection is
// persisted on disk and may be shared across sessions; without one it
// lives in process memory, which is what the tests use.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/voxmind/aria/memory"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "memories"

// Config configures the store.
type Config struct {
	// Path is the on-disk location of the database. Empty means
	// in-memory only (no persistence across restarts).
	Path string

	// Collection names the record collection. Default: DefaultCollection.
	Collection string

	// Compress enables gzip compression of persisted documents.
	Compress bool
}

// Store implements memory.Store on a chromem-go collection.
type Store struct {
	db  *chromem.DB
	col *chromem.Collection
}

// New opens or creates the configured collection.
func New(cfg Config) (*Store, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	var db *chromem.DB
	var err error
	if cfg.Path != "" {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	// Embeddings are computed upstream, so no embedding func is wired.
	col, err := db.GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}

	return &Store{db: db, col: col}, nil
}

// Insert appends a record. chromem's AddDocument is atomic per document
// and safe under concurrent callers; record IDs are unique by
// construction, so writers never collide.
func (s *Store) Insert(ctx context.Context, rec *memory.Record) error {
	if len(rec.Embedding()) == 0 {
		return fmt.Errorf("record %s has no embedding", rec.ID())
	}

	// The persistence timestamp travels in the metadata so it survives
	// the round trip through chromem. Stamp it from the record itself
	// when the caller hasn't already.
	metadata := make(map[string]string, len(rec.Metadata())+1)
	for k, v := range rec.Metadata() {
		metadata[k] = v
	}
	if metadata[memory.MetadataTimeKey] == "" {
		metadata[memory.MetadataTimeKey] = rec.CreatedAt().UTC().Format(time.RFC3339Nano)
	}

	doc := chromem.Document{
		ID:        rec.ID(),
		Content:   rec.Text(),
		Embedding: rec.Embedding(),
		Metadata:  metadata,
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	log.Printf("[CHROMEM] Stored record %s (%d total)", rec.ID(), s.col.Count())
	return nil
}

// Search returns up to k records by similarity to the embedding,
// restricted to records matching every filter entry.
func (s *Store) Search(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]memory.ScoredRecord, error) {
	count := s.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	// chromem rejects nResults larger than the matching document count,
	// which we cannot know up front once a filter is involved. Shrink
	// until it accepts or the result set is provably empty.
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		var err error
		results, err = s.col.QueryEmbedding(ctx, embedding, limit, filter, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	scored := make([]memory.ScoredRecord, 0, len(results))
	for _, result := range results {
		scored = append(scored, memory.ScoredRecord{Record: recordFromResult(result), Similarity: result.Similarity})
	}
	return scored, nil
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	return s.col.Count()
}

// Close releases resources. chromem keeps its working set in memory and
// flushes writes as they happen, so there is nothing to do here.
func (s *Store) Close() error {
	return nil
}

// recordFromResult rebuilds a memory.Record from a chromem result. A
// missing or unparsable timestamp yields the zero time rather than
// dropping the record: a record that matched the query must surface.
func recordFromResult(result chromem.Result) *memory.Record {
	createdAt, err := time.Parse(time.RFC3339Nano, result.Metadata[memory.MetadataTimeKey])
	if err != nil {
		log.Printf("[CHROMEM] Record %s has no usable %q metadata: %v", result.ID, memory.MetadataTimeKey, err)
		createdAt = time.Time{}
	}
	return memory.NewRecordFromStorage(result.ID, result.Content, createdAt, result.Embedding, result.Metadata)
}

func isInsufficientDocsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
