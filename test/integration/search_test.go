// Package integration exercises retrieval against real storage and indices.
package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/keiyakuhq/keiyaku/internal/chunker"
	"github.com/keiyakuhq/keiyaku/internal/config"
	"github.com/keiyakuhq/keiyaku/internal/embedding"
	"github.com/keiyakuhq/keiyaku/internal/extract"
	"github.com/keiyakuhq/keiyaku/internal/ingest"
	"github.com/keiyakuhq/keiyaku/internal/keyword"
	"github.com/keiyakuhq/keiyaku/internal/models"
	"github.com/keiyakuhq/keiyaku/internal/search"
	"github.com/keiyakuhq/keiyaku/internal/storage"
	"github.com/keiyakuhq/keiyaku/internal/vector"
)

func TestIngestThenSearch(t *testing.T) {
	dir := t.TempDir()

	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Embedding.Dimensions = 8
	cfg.Search.ChunkSize = 150
	cfg.Search.ChunkOverlap = 30

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	blobs, err := storage.NewBlobStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	vectors, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		t.Fatal(err)
	}
	lexical, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	defer lexical.Close()

	embedder := embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	orch := ingest.NewOrchestrator(
		store, blobs,
		extract.NewExtractor(cfg.Extract.MinCharDensity),
		chunker.NewChunker(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap),
		embedder, vectors, lexical, &cfg.Ingest,
	)
	orch.Start()
	defer orch.Stop()

	ctx := context.Background()
	docs := map[string]string{
		"nda.txt": "1. Confidentiality. The receiving party shall keep disclosed information secret for five years.",
		"msa.txt": "1. Payment. All invoices are payable within forty five days. 2. Termination. Thirty days written notice.",
	}
	for fn, content := range docs {
		id, err := orch.Ingest(ctx, "", fn, []byte(content), "")
		if err != nil {
			t.Fatalf("ingest %s: %v", fn, err)
		}
		deadline := time.Now().Add(10 * time.Second)
		for {
			doc, err := orch.GetStatus(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if doc.Status == models.StatusIndexed {
				break
			}
			if doc.Status == models.StatusFailed {
				t.Fatalf("%s failed: %s", fn, doc.StatusReason)
			}
			if time.Now().After(deadline) {
				t.Fatalf("%s stuck in %s", fn, doc.Status)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	engine := search.NewEngine(store, embedder, vectors, lexical, &cfg.Search)
	candidates, err := engine.Retrieve(ctx, &models.SearchQuery{Query: "invoices payable", Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected candidates")
	}
	doc, err := store.GetDocument(ctx, candidates[0].Chunk.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Filename != "msa.txt" {
		t.Errorf("top result from %s, want msa.txt", doc.Filename)
	}
}
