package memory

import "context"

// Gate is the importance classifier that decides whether a candidate
// utterance is persisted. Implementations must never surface errors:
// a failing remote judge falls back to a local heuristic internally.
//
// Implementation: importance.Gate.
type Gate interface {
	// Admit reports whether the candidate is worth remembering.
	Admit(ctx context.Context, candidate string) bool
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), onnx (local SDK), cache (decorator).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// ScoredRecord pairs a record with its similarity to a query embedding,
// as reported by the store. Higher is closer.
type ScoredRecord struct {
	Record     *Record
	Similarity float32
}

// Store is the vector storage backend. The collection behind a Store may
// be shared across sessions and processes: Insert must be safe under
// concurrent callers (records are created once and never updated, so
// unique IDs are the only coordination needed), and Search reads a
// consistent snapshot as of its start.
//
// Implementations: chromem (embedded, persistent).
type Store interface {
	// Insert appends a record with its embedding already set.
	// The write is atomic: a failed Insert leaves no partial record.
	Insert(ctx context.Context, rec *Record) error

	// Search returns up to k records ranked by similarity to the given
	// embedding, optionally restricted to records whose metadata matches
	// every key/value pair in filter. An empty collection yields an empty
	// result, not an error.
	Search(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]ScoredRecord, error)

	// Count returns the number of records currently stored.
	Count() int

	// Close releases resources.
	Close() error
}
