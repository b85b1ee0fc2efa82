package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/keiyakuhq/keiyaku/internal/models"
)

// chunkDoc is the shape Bleve indexes. Clause titles are indexed alongside
// the body text so a query like "termination" hits the clause heading even
// when the word is rare in the body.
type chunkDoc struct {
	Text        string `json:"text"`
	ClauseTitle string `json:"clause_title"`
	SectionType string `json:"section_type"`
	DocumentID  string `json:"document_id"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index
// is opened and reused so unchanged documents are not re-indexed. If the
// mapping changes in code, remove the index directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so legal terms
	// like "indemnification" match exactly as typed.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("clause_title", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("section_type", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("document_id", keywordFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks adds or replaces chunks using a single batch.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.Chunk) error {
	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := chunkDoc{
			Text:        c.Text,
			ClauseTitle: c.ClauseTitle,
			SectionType: c.SectionType,
			DocumentID:  c.DocumentID,
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("batch index chunk %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search runs a match query over text and clause titles, optionally scoped
// to one document.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, documentID string) ([]*Result, error) {
	mq := bleve.NewMatchQuery(query)
	var q blevequery.Query = mq
	if documentID != "" {
		tq := bleve.NewTermQuery(documentID)
		tq.SetField("document_id")
		q = bleve.NewConjunctionQuery(mq, tq)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ChunkID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DeleteByDocument removes every chunk belonging to the document. Chunk IDs
// are looked up with a term query on the document_id keyword field and
// deleted in one batch.
func (b *BleveIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	tq := bleve.NewTermQuery(documentID)
	tq.SetField("document_id")
	req := bleve.NewSearchRequest(tq)
	req.Size = 10000
	results, err := b.index.Search(req)
	if err != nil {
		return fmt.Errorf("Bleve lookup for delete failed: %w", err)
	}
	if len(results.Hits) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, hit := range results.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve delete batch failed: %w", err)
	}
	return nil
}

// ChunkCount returns the total number of chunks in the index.
func (b *BleveIndex) ChunkCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
