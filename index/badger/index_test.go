package badger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/docreview/core"
	"github.com/poiesic/docreview/index"
	storagebadger "github.com/poiesic/docreview/storage/badger"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	backend, err := storagebadger.OpenBackend("", true)
	if err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return New(backend)
}

func makePoint(id, chatID, docID string, vector []float32) core.ChunkPoint {
	return core.ChunkPoint{
		ID:     id,
		Vector: vector,
		Payload: core.ChunkPayload{
			Text:       "chunk " + id,
			DocumentID: docID,
			ChatID:     chatID,
			BlobKey:    "uploads/" + docID,
			FileName:   docID + ".pdf",
			PageNumber: 1,
			ChunkIndex: 0,
		},
	}
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("Failed to ensure collection: %v", err)
	}
	if err := idx.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("Expected idempotent ensure, got %v", err)
	}
	err := idx.EnsureCollection(ctx, 4)
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Fatalf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEnsureCollectionConcurrent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- idx.EnsureCollection(ctx, 3)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Expected all concurrent ensures to succeed, got %v", err)
		}
	}
	if err := idx.EnsureCollection(ctx, 4); !errors.Is(err, index.ErrDimensionMismatch) {
		t.Fatalf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestUpsertBeforeEnsure(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Upsert(context.Background(), []core.ChunkPoint{
		makePoint("p1", "chat-1", "doc-1", []float32{1, 0, 0}),
	})
	if !errors.Is(err, index.ErrCollectionMissing) {
		t.Fatalf("Expected ErrCollectionMissing, got %v", err)
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("Failed to ensure collection: %v", err)
	}
	err := idx.Upsert(ctx, []core.ChunkPoint{
		makePoint("p1", "chat-1", "doc-1", []float32{1, 0}),
	})
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Fatalf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSearchCosineOrdering(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("Failed to ensure collection: %v", err)
	}
	err := idx.Upsert(ctx, []core.ChunkPoint{
		makePoint("exact", "chat-1", "doc-1", []float32{1, 0, 0}),
		makePoint("close", "chat-1", "doc-1", []float32{0.9, 0.1, 0}),
		makePoint("orthogonal", "chat-1", "doc-1", []float32{0, 1, 0}),
	})
	if err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, index.Filter{ChatID: "chat-1"}, 2)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
	if hits[0].Point.ID != "exact" || hits[1].Point.ID != "close" {
		t.Fatalf("Unexpected ranking: %s, %s", hits[0].Point.ID, hits[1].Point.ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Fatal("Expected scores in descending order")
	}
	// Cosine similarity is scale-invariant; the exact match scores 1.
	if hits[0].Score < 0.999 {
		t.Fatalf("Expected score ~1 for exact match, got %f", hits[0].Score)
	}
}

func TestSearchFilterIsolation(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("Failed to ensure collection: %v", err)
	}
	err := idx.Upsert(ctx, []core.ChunkPoint{
		makePoint("a1", "chat-a", "doc-1", []float32{1, 0, 0}),
		makePoint("a2", "chat-a", "doc-2", []float32{1, 0, 0}),
		makePoint("b1", "chat-b", "doc-3", []float32{1, 0, 0}),
	})
	if err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, index.Filter{ChatID: "chat-a"}, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits for chat-a, got %d", len(hits))
	}
	for _, hit := range hits {
		if hit.Point.Payload.ChatID != "chat-a" {
			t.Fatalf("Filter leak: got chat %s", hit.Point.Payload.ChatID)
		}
	}

	hits, err = idx.Search(ctx, []float32{1, 0, 0}, index.Filter{ChatID: "chat-a", DocumentID: "doc-2"}, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 1 || hits[0].Point.ID != "a2" {
		t.Fatal("Expected combined filter to match doc-2 only")
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("Failed to ensure collection: %v", err)
	}
	first := makePoint("p1", "chat-1", "doc-1", []float32{1, 0, 0})
	if err := idx.Upsert(ctx, []core.ChunkPoint{first}); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	second := makePoint("p1", "chat-1", "doc-1", []float32{0, 1, 0})
	if err := idx.Upsert(ctx, []core.ChunkPoint{second}); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	hits, err := idx.Search(ctx, []float32{0, 1, 0}, index.Filter{ChatID: "chat-1"}, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("Expected 1 point after replacement, got %d", len(hits))
	}
	if hits[0].Score < 0.999 {
		t.Fatalf("Expected replaced vector, score %f", hits[0].Score)
	}
}

func TestIterateBatches(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("Failed to ensure collection: %v", err)
	}
	var points []core.ChunkPoint
	for i := 0; i < 5; i++ {
		points = append(points, makePoint(string(rune('a'+i)), "chat-1", "doc-1", []float32{1, 0, 0}))
	}
	if err := idx.Upsert(ctx, points); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	var (
		total   int
		batches int
	)
	err := idx.Iterate(ctx, 2, func(batch []core.ChunkPoint) error {
		if len(batch) > 2 {
			t.Fatalf("Batch exceeds size: %d", len(batch))
		}
		total += len(batch)
		batches++
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to iterate: %v", err)
	}
	if total != 5 {
		t.Fatalf("Expected 5 points, got %d", total)
	}
	if batches != 3 {
		t.Fatalf("Expected 3 batches, got %d", batches)
	}
}

func TestDeleteByFilter(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, 3); err != nil {
		t.Fatalf("Failed to ensure collection: %v", err)
	}
	err := idx.Upsert(ctx, []core.ChunkPoint{
		makePoint("a1", "chat-a", "doc-1", []float32{1, 0, 0}),
		makePoint("a2", "chat-a", "doc-2", []float32{1, 0, 0}),
		makePoint("b1", "chat-b", "doc-3", []float32{1, 0, 0}),
	})
	if err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	if err := idx.Delete(ctx, index.Filter{ChatID: "chat-a", DocumentID: "doc-1"}); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, index.Filter{}, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 remaining points, got %d", len(hits))
	}
	for _, hit := range hits {
		if hit.Point.Payload.DocumentID == "doc-1" {
			t.Fatal("Expected doc-1 points gone")
		}
	}
}
