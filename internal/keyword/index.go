// Package keyword provides the lexical (BM25) side of the dual index.
package keyword

import (
	"context"

	"github.com/keiyakuhq/keiyaku/internal/models"
)

// Index defines lexical search operations over chunks.
type Index interface {
	// IndexChunks adds or replaces chunks in the index. Chunk IDs are
	// stable across re-ingestion, so indexing the same chunk twice
	// replaces the previous entry.
	IndexChunks(ctx context.Context, chunks []*models.Chunk) error
	// Search runs a match query and returns up to limit hits ordered by
	// descending score. If documentID is non-empty only chunks from that
	// document match.
	Search(ctx context.Context, query string, limit int, documentID string) ([]*Result, error)
	// DeleteByDocument removes every chunk belonging to the document.
	DeleteByDocument(ctx context.Context, documentID string) error
	// ChunkCount returns the total number of indexed chunks.
	ChunkCount() (uint64, error)
	Close() error
}

// Result is a single lexical search hit.
type Result struct {
	ChunkID string
	Score   float64
}
