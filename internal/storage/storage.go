// Package storage defines the persistence interface for documents and chunks.
package storage

import (
	"context"

	"github.com/keiyakuhq/keiyaku/internal/models"
)

// Storage defines document and chunk persistence operations.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetDocumentByHash(ctx context.Context, contentHash string) (*models.Document, error)
	// UpdateDocumentStatus persists a status transition. Reason is stored
	// only for failed; for other statuses it is cleared. Status reads go
	// through GetDocument so they always reflect the last committed write.
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, reason string) error
	UpdateDocumentPageCount(ctx context.Context, id string, pageCount int) error
	// UpdateDocumentContent refreshes filename, file type, and content hash
	// after a re-upload replaces the stored bytes.
	UpdateDocumentContent(ctx context.Context, id, filename, fileType, contentHash string) error
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	ListDocumentIDs(ctx context.Context) ([]string, error)

	// Chunk operations
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*models.Chunk, error)
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error)
	ReplaceChunks(ctx context.Context, docID string, chunks []*models.Chunk) error
	DeleteChunksByDocumentID(ctx context.Context, docID string) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}

// ErrNotFound reports a missing document or chunk.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return e.Kind + " not found: " + e.ID
}
