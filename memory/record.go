package memory

import (
	"time"

	"github.com/google/uuid"
)

// Record is a persisted unit of long-term memory: the verbatim text, its
// embedding, and the time it was stored. Once persisted a record is never
// mutated or deleted.
type Record struct {
	id        string
	text      string
	createdAt time.Time
	embedding []float32
	metadata  map[string]string
}

// newRecord creates a record for a freshly admitted memory.
// The ID is generated here and is immutable afterwards.
func newRecord(text string, createdAt time.Time, metadata map[string]string) *Record {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &Record{
		id:        uuid.New().String(),
		text:      text,
		createdAt: createdAt,
		metadata:  md,
	}
}

// NewRecordFromStorage rebuilds a record from stored data.
// This is used by Store implementations when deserializing.
func NewRecordFromStorage(id, text string, createdAt time.Time, embedding []float32, metadata map[string]string) *Record {
	return &Record{
		id:        id,
		text:      text,
		createdAt: createdAt,
		embedding: embedding,
		metadata:  metadata,
	}
}

// ID returns the record's opaque unique identifier.
func (r *Record) ID() string {
	return r.id
}

// Text returns the verbatim memory content.
func (r *Record) Text() string {
	return r.text
}

// CreatedAt returns the persistence timestamp.
func (r *Record) CreatedAt() time.Time {
	return r.createdAt
}

// Embedding returns the vector used for similarity search.
func (r *Record) Embedding() []float32 {
	return r.embedding
}

// SetEmbedding sets the embedding vector. It is called once, before the
// record reaches the store.
func (r *Record) SetEmbedding(embedding []float32) {
	r.embedding = embedding
}

// Metadata returns the record's metadata. Callers must not mutate it.
func (r *Record) Metadata() map[string]string {
	return r.metadata
}
