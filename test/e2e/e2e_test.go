package e2e

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keiyakuhq/keiyaku/internal/answer"
	"github.com/keiyakuhq/keiyaku/internal/chunker"
	"github.com/keiyakuhq/keiyaku/internal/config"
	"github.com/keiyakuhq/keiyaku/internal/embedding"
	"github.com/keiyakuhq/keiyaku/internal/extract"
	"github.com/keiyakuhq/keiyaku/internal/ingest"
	"github.com/keiyakuhq/keiyaku/internal/keyword"
	"github.com/keiyakuhq/keiyaku/internal/llm"
	"github.com/keiyakuhq/keiyaku/internal/models"
	"github.com/keiyakuhq/keiyaku/internal/search"
	"github.com/keiyakuhq/keiyaku/internal/storage"
	"github.com/keiyakuhq/keiyaku/internal/vector"
)

const (
	e2eDimensions = 16
	e2eLimit      = 10
)

type stack struct {
	store   storage.Storage
	vectors *vector.MemoryIndex
	lexical keyword.Index
	orch    *ingest.Orchestrator
	engine  *search.Engine
	cfg     *config.Config
}

func newStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()

	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Embedding.Dimensions = e2eDimensions
	cfg.Search.ChunkSize = 200
	cfg.Search.ChunkOverlap = 40
	cfg.Storage.VectorIndexPath = filepath.Join(dir, "vectors.bin")

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	blobs, err := storage.NewBlobStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	vectors, err := vector.NewMemoryIndex(e2eDimensions)
	if err != nil {
		t.Fatal(err)
	}
	lexical, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lexical.Close() })

	embedder := embedding.NewMockEmbedder(e2eDimensions)
	orch := ingest.NewOrchestrator(
		store, blobs,
		extract.NewExtractor(cfg.Extract.MinCharDensity),
		chunker.NewChunker(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap),
		embedder, vectors, lexical, &cfg.Ingest,
	)
	orch.Start()
	t.Cleanup(orch.Stop)

	engine := search.NewEngine(store, embedder, vectors, lexical, &cfg.Search)
	return &stack{store: store, vectors: vectors, lexical: lexical, orch: orch, engine: engine, cfg: &cfg}
}

// ingestCorpus uploads every corpus document and waits for all of them to
// reach a terminal state. Returns document ID keyed by filename.
func ingestCorpus(t *testing.T, s *stack, corpus *Corpus) map[string]string {
	t.Helper()
	ctx := context.Background()
	ids := make(map[string]string, len(corpus.Documents))
	for _, d := range corpus.Documents {
		id, err := s.orch.Ingest(ctx, "", d.Filename, []byte(d.Content), "")
		if err != nil {
			t.Fatalf("ingest %s: %v", d.Filename, err)
		}
		ids[d.Filename] = id
	}
	deadline := time.Now().Add(30 * time.Second)
	for fn, id := range ids {
		for {
			doc, err := s.orch.GetStatus(ctx, id)
			if err != nil {
				t.Fatalf("status %s: %v", fn, err)
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
			time.Sleep(10 * time.Millisecond)
		}
	}
	return ids
}

func TestPipelineRetrievalQuality(t *testing.T) {
	s := newStack(t)
	corpus := BuildCorpus(24)
	ids := ingestCorpus(t, s, corpus)

	idToFilename := make(map[string]string, len(ids))
	for fn, id := range ids {
		idToFilename[id] = fn
	}

	ctx := context.Background()
	for _, tc := range corpus.Cases {
		t.Run(tc.Description, func(t *testing.T) {
			candidates, err := s.engine.Retrieve(ctx, &models.SearchQuery{Query: tc.Query, Limit: e2eLimit})
			if err != nil {
				t.Fatal(err)
			}
			if len(candidates) == 0 {
				t.Fatalf("no candidates for %q", tc.Query)
			}
			expected := make(map[string]bool, len(tc.ExpectedFilenames))
			for _, fn := range tc.ExpectedFilenames {
				expected[fn] = true
			}
			for _, c := range candidates {
				if expected[idToFilename[c.Chunk.DocumentID]] {
					return
				}
			}
			t.Errorf("none of %v in top %d for %q", tc.ExpectedFilenames, e2eLimit, tc.Query)
		})
	}
}

func TestPipelineDocumentScopedRetrieval(t *testing.T) {
	s := newStack(t)
	corpus := BuildCorpus(6)
	ids := ingestCorpus(t, s, corpus)

	target := ids[corpus.Documents[0].Filename]
	candidates, err := s.engine.Retrieve(context.Background(), &models.SearchQuery{
		Query:      "termination and payment obligations",
		Limit:      e2eLimit,
		DocumentID: target,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected scoped candidates")
	}
	for _, c := range candidates {
		if c.Chunk.DocumentID != target {
			t.Errorf("scoped retrieval leaked document %s", c.Chunk.DocumentID)
		}
	}
}

func TestPipelineAnswerWithCitations(t *testing.T) {
	s := newStack(t)
	corpus := BuildCorpus(6)
	ingestCorpus(t, s, corpus)

	completer := &llm.MockCompleter{
		Response: "Invoices must be paid within forty five days: <<invoices are payable within forty five days of receipt>>.",
	}
	svc := answer.NewService(s.engine, completer, &s.cfg.Answer)

	ans, err := svc.Answer(context.Background(), &models.SearchQuery{Query: "payment deadline for invoices"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.NoEvidence {
		t.Fatal("expected evidence for payment query")
	}
	if len(ans.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(ans.Citations))
	}
	cit := ans.Citations[0]
	if cit.SpanEnd <= cit.SpanStart {
		t.Errorf("invalid citation span: %d-%d", cit.SpanStart, cit.SpanEnd)
	}
	chunks, err := s.store.GetChunksByDocumentID(context.Background(), cit.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, chunk := range chunks {
		if strings.Contains(strings.ToLower(chunk.Text), strings.ToLower(cit.Excerpt)) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("excerpt %q not present in cited document %s", cit.Excerpt, cit.DocumentID)
	}
}

func TestPipelineVectorIndexPersistence(t *testing.T) {
	s := newStack(t)
	corpus := BuildCorpus(6)
	ingestCorpus(t, s, corpus)

	path := s.cfg.Storage.VectorIndexPath
	if err := s.vectors.Save(path); err != nil {
		t.Fatal(err)
	}

	reloaded, err := vector.NewMemoryIndex(e2eDimensions)
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if reloaded.Size() != s.vectors.Size() {
		t.Fatalf("reloaded size %d, want %d", reloaded.Size(), s.vectors.Size())
	}

	engine := search.NewEngine(s.store, embedding.NewMockEmbedder(e2eDimensions), reloaded, s.lexical, &s.cfg.Search)
	candidates, err := engine.Retrieve(context.Background(), &models.SearchQuery{
		Query: "security deposit equal to two months of base rent",
		Limit: e2eLimit,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) == 0 {
		t.Fatal("no candidates after index reload")
	}
}
