package search

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/keiyakuhq/keiyaku/internal/config"
	"github.com/keiyakuhq/keiyaku/internal/keyword"
	"github.com/keiyakuhq/keiyaku/internal/models"
	"github.com/keiyakuhq/keiyaku/internal/storage"
	"github.com/keiyakuhq/keiyaku/internal/vector"
)

// stubEmbedder returns a fixed query vector so tests control distances
// exactly by planting chunk vectors in the index directly.
type stubEmbedder struct {
	vec []float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vec) }
func (s *stubEmbedder) Close() error    { return nil }

func testSearchConfig() *config.SearchConfig {
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	return &cfg.Search
}

type engineFixture struct {
	store   *storage.SQLiteStorage
	vectors *vector.MemoryIndex
	lexical *keyword.BleveIndex
	engine  *Engine
}

func newEngineFixture(t *testing.T, queryVec []float32) *engineFixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	vectors, err := vector.NewMemoryIndex(len(queryVec))
	if err != nil {
		t.Fatalf("vector index: %v", err)
	}
	lexical, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword.bleve"))
	if err != nil {
		t.Fatalf("keyword index: %v", err)
	}
	t.Cleanup(func() { lexical.Close() })

	engine := NewEngine(store, &stubEmbedder{vec: queryVec}, vectors, lexical, testSearchConfig())
	return &engineFixture{store: store, vectors: vectors, lexical: lexical, engine: engine}
}

// addChunk stores, indexes, and embeds one chunk in all three backends.
func (f *engineFixture) addChunk(t *testing.T, c *models.Chunk, vec []float32) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.store.GetDocument(ctx, c.DocumentID); err != nil {
		doc := &models.Document{
			ID: c.DocumentID, Filename: c.DocumentID + ".pdf", FileType: "pdf",
			ContentHash: "h-" + c.DocumentID, Status: models.StatusIndexed,
		}
		if err := f.store.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("CreateDocument: %v", err)
		}
	}
	existing, err := f.store.GetChunksByDocumentID(ctx, c.DocumentID)
	if err != nil {
		t.Fatalf("GetChunksByDocumentID: %v", err)
	}
	if err := f.store.ReplaceChunks(ctx, c.DocumentID, append(existing, c)); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	if err := f.lexical.IndexChunks(ctx, []*models.Chunk{c}); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	if vec != nil {
		entry := vector.Entry{ChunkID: c.ID, DocumentID: c.DocumentID, Vector: vec}
		if err := f.vectors.Upsert(ctx, []vector.Entry{entry}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
}

func unit3(x, y, z float64) []float32 {
	n := math.Sqrt(x*x + y*y + z*z)
	return []float32{float32(x / n), float32(y / n), float32(z / n)}
}

// A chunk whose dominant topic is far from the query but which contains the
// exact keyword must come back near the top, even though its raw vector
// distance alone would fall past the relevance cutoff.
func TestRetrieveKeywordMatchSurvivesSemanticDilution(t *testing.T) {
	query := unit3(1, 0, 0)
	f := newEngineFixture(t, query)

	// Orthogonal to the query: distance 1.0, far beyond the 0.75 cutoff.
	weeding := &models.Chunk{
		ID: models.ChunkID("landscaping", 7), DocumentID: "landscaping", Ordinal: 7,
		PageNum: 3, SpanStart: 700, SpanEnd: 800,
		Text: "Contractor shall maintain all planting beds. Weeding services are billed at $55.00 per man, per man hour.",
	}
	f.addChunk(t, weeding, unit3(0, 1, 0))

	// On-topic chunks close to the query, none of which mention weeding.
	for i := 0; i < 6; i++ {
		c := &models.Chunk{
			ID: models.ChunkID("maintenance", i), DocumentID: "maintenance", Ordinal: i,
			PageNum: 1, SpanStart: i * 100, SpanEnd: i*100 + 100,
			Text: fmt.Sprintf("General maintenance obligations section %d covering repairs and upkeep.", i),
		}
		f.addChunk(t, c, unit3(1, 0.1*float64(i+1), 0))
	}

	candidates, err := f.engine.Retrieve(context.Background(), &models.SearchQuery{
		Query: "What do we pay for weeding?",
		Limit: 5,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	found := false
	for _, c := range candidates {
		if c.Chunk.ID == weeding.ID {
			found = true
			if c.LexicalScore == 0 {
				t.Error("weeding chunk should carry its lexical score")
			}
		}
	}
	if !found {
		t.Fatalf("diluted keyword match missing from top %d candidates", len(candidates))
	}
}

func TestRetrieveDropsDistantUnmatchedChunks(t *testing.T) {
	query := unit3(1, 0, 0)
	f := newEngineFixture(t, query)

	near := &models.Chunk{
		ID: models.ChunkID("doc", 0), DocumentID: "doc", Ordinal: 0,
		PageNum: 1, SpanStart: 0, SpanEnd: 100,
		Text: "Termination requires thirty days notice.",
	}
	f.addChunk(t, near, unit3(1, 0.05, 0))

	far := &models.Chunk{
		ID: models.ChunkID("doc", 1), DocumentID: "doc", Ordinal: 1,
		PageNum: 1, SpanStart: 100, SpanEnd: 200,
		Text: "Exhibit C site map and legal description of premises.",
	}
	f.addChunk(t, far, unit3(0, 0, 1))

	candidates, err := f.engine.Retrieve(context.Background(), &models.SearchQuery{
		Query: "termination notice period",
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, c := range candidates {
		if c.Chunk.ID == far.ID && c.LexicalScore == 0 {
			t.Error("distant chunk without lexical match should be pruned")
		}
	}
}

func TestRetrieveDocumentFilter(t *testing.T) {
	query := unit3(1, 0, 0)
	f := newEngineFixture(t, query)

	a := &models.Chunk{
		ID: models.ChunkID("a", 0), DocumentID: "a", Ordinal: 0,
		PageNum: 1, SpanStart: 0, SpanEnd: 100,
		Text: "Payment is due in thirty days.",
	}
	b := &models.Chunk{
		ID: models.ChunkID("b", 0), DocumentID: "b", Ordinal: 0,
		PageNum: 1, SpanStart: 0, SpanEnd: 100,
		Text: "Payment is due in sixty days.",
	}
	f.addChunk(t, a, unit3(1, 0.1, 0))
	f.addChunk(t, b, unit3(1, 0.2, 0))

	candidates, err := f.engine.Retrieve(context.Background(), &models.SearchQuery{
		Query:      "payment due",
		Limit:      10,
		DocumentID: "b",
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Chunk.DocumentID != "b" {
		t.Fatalf("expected only document b candidates, got %v", candidates)
	}
}

func TestRetrieveSkipsDeletedChunks(t *testing.T) {
	query := unit3(1, 0, 0)
	f := newEngineFixture(t, query)

	kept := &models.Chunk{
		ID: models.ChunkID("kept", 0), DocumentID: "kept", Ordinal: 0,
		PageNum: 1, SpanStart: 0, SpanEnd: 100,
		Text: "Confidentiality obligations survive termination.",
	}
	f.addChunk(t, kept, unit3(1, 0.1, 0))

	// Index entry with no backing row, as if the document was deleted while
	// this query was in flight.
	ghost := vector.Entry{ChunkID: "ghost_0000", DocumentID: "ghost", Vector: unit3(1, 0, 0)}
	if err := f.vectors.Upsert(context.Background(), []vector.Entry{ghost}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	candidates, err := f.engine.Retrieve(context.Background(), &models.SearchQuery{
		Query: "confidentiality",
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for i, c := range candidates {
		if c.Chunk.DocumentID == "ghost" {
			t.Error("deleted document surfaced in results")
		}
		if c.Rank != i+1 {
			t.Errorf("ranks must be contiguous after dropouts: got %d at position %d", c.Rank, i)
		}
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	f := newEngineFixture(t, unit3(1, 0, 0))
	if _, err := f.engine.Retrieve(context.Background(), &models.SearchQuery{Query: ""}); err == nil {
		t.Error("expected error for empty query")
	}
}
