package chromem

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/voxmind/aria/memory"
)

func mustStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// axis returns a unit vector along dimension i so similarity between
// records is fully under the test's control.
func axis(i, dims int) []float32 {
	v := make([]float32, dims)
	v[i] = 1
	return v
}

func insert(t *testing.T, s *Store, id, text string, createdAt time.Time, embedding []float32, meta map[string]string) {
	t.Helper()
	rec := memory.NewRecordFromStorage(id, text, createdAt, embedding, meta)
	if err := s.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert %s: %v", id, err)
	}
}

func TestInsertAndSearch(t *testing.T) {
	s := mustStore(t)
	insert(t, s, "a", "likes hiking", time.Now(), axis(0, 4), nil)
	insert(t, s, "b", "afraid of spiders", time.Now(), axis(1, 4), nil)

	got, err := s.Search(context.Background(), axis(0, 4), 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if got[0].Record.ID() != "a" {
		t.Errorf("top record = %s, want a", got[0].Record.ID())
	}
	if got[0].Record.Text() != "likes hiking" {
		t.Errorf("text = %q", got[0].Record.Text())
	}
	if got[0].Similarity < 0.99 {
		t.Errorf("similarity = %f, want ~1", got[0].Similarity)
	}
}

func TestSearch_EmptyStoreReturnsNothing(t *testing.T) {
	s := mustStore(t)
	got, err := s.Search(context.Background(), axis(0, 4), 3, nil)
	if err != nil {
		t.Fatalf("Search on empty store: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(got) = %d, want 0", len(got))
	}
}

func TestSearch_KLargerThanCount(t *testing.T) {
	s := mustStore(t)
	insert(t, s, "only", "single record", time.Now(), axis(0, 4), nil)

	got, err := s.Search(context.Background(), axis(0, 4), 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len(got) = %d, want 1", len(got))
	}
}

func TestSearch_MetadataFilter(t *testing.T) {
	s := mustStore(t)
	insert(t, s, "k1", "kai plays guitar", time.Now(), axis(0, 4), map[string]string{"speaker": "kai"})
	insert(t, s, "n1", "noa plays piano", time.Now(), axis(0, 4), map[string]string{"speaker": "noa"})

	got, err := s.Search(context.Background(), axis(0, 4), 5, map[string]string{"speaker": "noa"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Record.ID() != "n1" {
		t.Fatalf("got %d records, want only n1", len(got))
	}

	none, err := s.Search(context.Background(), axis(0, 4), 5, map[string]string{"speaker": "rio"})
	if err != nil {
		t.Fatalf("Search with unmatched filter: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unmatched filter returned %d records, want 0", len(none))
	}
}

func TestSearch_RoundTripsCreatedAt(t *testing.T) {
	s := mustStore(t)
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	rec := memory.NewRecordFromStorage("dated", "pi day", created, axis(0, 4), nil)
	if err := s.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Search(context.Background(), axis(0, 4), 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if !got[0].Record.CreatedAt().Equal(created) {
		t.Errorf("CreatedAt = %s, want %s", got[0].Record.CreatedAt(), created)
	}
}

func TestSearch_SurfacesRecordsWithoutTimeMetadata(t *testing.T) {
	s := mustStore(t)
	created := time.Date(2026, 5, 2, 18, 0, 1, 0, time.UTC)
	insert(t, s, "bare", "no metadata at all", created, axis(0, 4), nil)

	got, err := s.Search(context.Background(), axis(0, 4), 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if !got[0].Record.CreatedAt().Equal(created) {
		t.Errorf("CreatedAt = %s, want %s stamped at insert", got[0].Record.CreatedAt(), created)
	}
}

func TestSearch_KeepsRecordWithUnparsableTime(t *testing.T) {
	s := mustStore(t)
	insert(t, s, "odd", "clock went sideways", time.Now(), axis(0, 4),
		map[string]string{memory.MetadataTimeKey: "not a timestamp"})

	got, err := s.Search(context.Background(), axis(0, 4), 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if !got[0].Record.CreatedAt().IsZero() {
		t.Errorf("CreatedAt = %s, want zero time", got[0].Record.CreatedAt())
	}
}

func TestInsert_DoesNotOverrideCallerTime(t *testing.T) {
	s := mustStore(t)
	stamped := time.Date(2025, 11, 9, 7, 30, 0, 0, time.UTC)
	insert(t, s, "stamped", "caller owns the clock", time.Now(), axis(0, 4),
		map[string]string{memory.MetadataTimeKey: stamped.Format(time.RFC3339Nano)})

	got, err := s.Search(context.Background(), axis(0, 4), 1, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if !got[0].Record.CreatedAt().Equal(stamped) {
		t.Errorf("CreatedAt = %s, want caller's %s", got[0].Record.CreatedAt(), stamped)
	}
}

func TestInsert_RejectsEmptyEmbedding(t *testing.T) {
	s := mustStore(t)
	rec := memory.NewRecordFromStorage("bad", "no vector", time.Now(), nil, nil)
	if err := s.Insert(context.Background(), rec); err == nil {
		t.Fatal("expected error for record without embedding")
	}
}

func TestCount(t *testing.T) {
	s := mustStore(t)
	if s.Count() != 0 {
		t.Fatalf("Count = %d, want 0", s.Count())
	}
	for i := 0; i < 3; i++ {
		insert(t, s, fmt.Sprintf("r%d", i), fmt.Sprintf("record %d", i), time.Now(), axis(i, 4), nil)
	}
	if s.Count() != 3 {
		t.Errorf("Count = %d, want 3", s.Count())
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	s, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	insert(t, s, "durable", "survives restarts", time.Now(), axis(0, 4), nil)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Count() != 1 {
		t.Fatalf("Count after reopen = %d, want 1", reopened.Count())
	}
	got, err := reopened.Search(context.Background(), axis(0, 4), 1, nil)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(got) != 1 || got[0].Record.ID() != "durable" {
		t.Fatalf("reopen search returned %d records", len(got))
	}
}
