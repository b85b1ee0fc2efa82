package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func unitVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func TestMemoryIndexSearchOrdering(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	ctx := context.Background()
	entries := []Entry{
		{ChunkID: "doc1_0000", DocumentID: "doc1", Vector: []float32{1, 0, 0}},
		{ChunkID: "doc1_0001", DocumentID: "doc1", Vector: []float32{0.8, 0.6, 0}},
		{ChunkID: "doc2_0000", DocumentID: "doc2", Vector: []float32{0, 1, 0}},
	}
	if err := idx.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 3, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ChunkID != "doc1_0000" {
		t.Errorf("expected doc1_0000 first, got %s", results[0].ChunkID)
	}
	if results[0].Distance > 1e-6 {
		t.Errorf("exact match should have near-zero distance, got %f", results[0].Distance)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("results not in ascending distance order at %d", i)
		}
	}
}

func TestMemoryIndexUpsertReplaces(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if err := idx.Upsert(ctx, []Entry{{ChunkID: "d_0000", DocumentID: "d", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := idx.Upsert(ctx, []Entry{{ChunkID: "d_0000", DocumentID: "d", Vector: []float32{0, 1}}}); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}
	if idx.Size() != 1 {
		t.Fatalf("expected size 1 after replacing upsert, got %d", idx.Size())
	}
	results, err := idx.Search(ctx, []float32{0, 1}, 1, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Distance > 1e-6 {
		t.Errorf("replaced vector should match new direction, distance %f", results[0].Distance)
	}
}

func TestMemoryIndexDocumentFilter(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	idx.Upsert(ctx, []Entry{
		{ChunkID: "a_0000", DocumentID: "a", Vector: []float32{1, 0}},
		{ChunkID: "b_0000", DocumentID: "b", Vector: []float32{1, 0}},
	})
	results, err := idx.Search(ctx, []float32{1, 0}, 10, "b")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "b_0000" {
		t.Fatalf("expected only b_0000, got %v", results)
	}
}

func TestMemoryIndexDeleteByDocument(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	idx.Upsert(ctx, []Entry{
		{ChunkID: "a_0000", DocumentID: "a", Vector: []float32{1, 0}},
		{ChunkID: "a_0001", DocumentID: "a", Vector: []float32{0, 1}},
		{ChunkID: "b_0000", DocumentID: "b", Vector: []float32{1, 0}},
	})
	if err := idx.DeleteByDocument(ctx, "a"); err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}
	if idx.Size() != 1 {
		t.Fatalf("expected 1 entry after delete, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{1, 0}, 10, "")
	if len(results) != 1 || results[0].ChunkID != "b_0000" {
		t.Fatalf("expected only b_0000 to survive, got %v", results)
	}
	// Upsert after delete must not collide with stale positions.
	if err := idx.Upsert(ctx, []Entry{{ChunkID: "a_0000", DocumentID: "a", Vector: []float32{0, 1}}}); err != nil {
		t.Fatalf("Upsert after delete: %v", err)
	}
	if idx.Size() != 2 {
		t.Fatalf("expected 2 entries, got %d", idx.Size())
	}
}

func TestMemoryIndexSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	idx.Upsert(ctx, []Entry{
		{ChunkID: "a_0000", DocumentID: "a", Vector: []float32{1, 0, 0}},
		{ChunkID: "b_0000", DocumentID: "b", Vector: []float32{0, 1, 0}},
	})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _ := NewMemoryIndex(3)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("expected 2 entries after load, got %d", loaded.Size())
	}
	results, err := loaded.Search(ctx, []float32{0, 1, 0}, 1, "b")
	if err != nil {
		t.Fatalf("Search after load: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "b_0000" {
		t.Fatalf("document scoping lost on load: %v", results)
	}
}

func TestMemoryIndexLoadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	if err := idx.Load(filepath.Join(t.TempDir(), "absent.bin")); err != nil {
		t.Fatalf("Load of missing file should be a no-op, got %v", err)
	}
}

func TestMemoryIndexDimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Upsert(ctx, []Entry{{ChunkID: "x", DocumentID: "x", Vector: []float32{1, 0}}}); err == nil {
		t.Error("expected error for wrong upsert dimension")
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 1, ""); err == nil {
		t.Error("expected error for wrong query dimension")
	}
}
