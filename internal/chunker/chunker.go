// Package chunker splits extracted page text into overlapping, page-anchored
// chunks and tags them with detected clause markers.
package chunker

import (
	"github.com/keiyakuhq/keiyaku/internal/models"
	"go.uber.org/zap"
)

// Chunker slides a fixed-size character window across the concatenated page
// text of a document. The overlap exists so a clause boundary at a window
// edge is fully captured in at least one chunk.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLogger sets a logger for clause-tagging warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Chunker) { c.logger = l }
}

// NewChunker creates a chunker with the given window size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int, opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk produces the ordered chunks of a document. Spans are half-open rune
// offsets into the concatenation of page texts (pages joined with a single
// newline); they are monotonically increasing in ordinal order, and each
// chunk's page number is the page containing its span start. A document
// shorter than one window produces exactly one chunk.
func (c *Chunker) Chunk(docID string, pages []models.Page) []*models.Chunk {
	text, pageStarts := concatPages(pages)
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}

	var chunks []*models.Chunk
	ordinal := 0
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, &models.Chunk{
			ID:         models.ChunkID(docID, ordinal),
			DocumentID: docID,
			Ordinal:    ordinal,
			PageNum:    pageAt(pages, pageStarts, start),
			SpanStart:  start,
			SpanEnd:    end,
			Text:       string(runes[start:end]),
		})
		ordinal++
		if end >= len(runes) {
			break
		}
	}

	c.tagClauses(docID, chunks)
	return chunks
}

// concatPages joins page texts with single newlines and records the rune
// offset at which each page starts.
func concatPages(pages []models.Page) (string, []int) {
	starts := make([]int, len(pages))
	var text []rune
	for i, p := range pages {
		if i > 0 {
			text = append(text, '\n')
		}
		starts[i] = len(text)
		text = append(text, []rune(p.Text)...)
	}
	return string(text), starts
}

// pageAt returns the page number containing the given rune offset.
func pageAt(pages []models.Page, pageStarts []int, offset int) int {
	page := 1
	for i, start := range pageStarts {
		if offset >= start {
			page = pages[i].Num
		} else {
			break
		}
	}
	return page
}
