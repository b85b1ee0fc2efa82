// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/keiyakuhq/keiyaku/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		file_type TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		status_reason TEXT NOT NULL DEFAULT '',
		page_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
	CREATE INDEX IF NOT EXISTS idx_documents_content_hash ON documents(content_hash);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		page_num INTEGER NOT NULL,
		span_start INTEGER NOT NULL,
		span_end INTEGER NOT NULL,
		text TEXT NOT NULL,
		clause_number TEXT NOT NULL DEFAULT '',
		clause_title TEXT NOT NULL DEFAULT '',
		section_type TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document_ordinal ON chunks(document_id, ordinal);
	`
	_, err := db.Exec(schema)
	return err
}

const documentColumns = `id, filename, file_type, content_hash, status, status_reason, page_count, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var doc models.Document
	var status string
	err := row.Scan(&doc.ID, &doc.Filename, &doc.FileType, &doc.ContentHash,
		&status, &doc.StatusReason, &doc.PageCount, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Status = models.DocumentStatus(status)
	return &doc, nil
}

// CreateDocument inserts a document.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, file_type, content_hash, status, status_reason, page_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.FileType, doc.ContentHash,
		string(doc.Status), doc.StatusReason, doc.PageCount, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, &ErrNotFound{Kind: "document", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocumentByHash returns the most recently created document with the given
// content hash, or a not-found error.
func (s *SQLiteStorage) GetDocumentByHash(ctx context.Context, contentHash string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE content_hash = ?
		 ORDER BY created_at DESC LIMIT 1`, contentHash)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, &ErrNotFound{Kind: "document", ID: contentHash}
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocumentStatus persists a status transition. The reason is kept only
// for failed documents.
func (s *SQLiteStorage) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus, reason string) error {
	if status != models.StatusFailed {
		reason = ""
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, status_reason = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return &ErrNotFound{Kind: "document", ID: id}
	}
	return nil
}

// UpdateDocumentContent refreshes filename, file type, and content hash after
// a re-upload.
func (s *SQLiteStorage) UpdateDocumentContent(ctx context.Context, id, filename, fileType, contentHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET filename = ?, file_type = ?, content_hash = ?, updated_at = ? WHERE id = ?`,
		filename, fileType, contentHash, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return &ErrNotFound{Kind: "document", ID: id}
	}
	return nil
}

// UpdateDocumentPageCount records the page count discovered during extraction.
func (s *SQLiteStorage) UpdateDocumentPageCount(ctx context.Context, id string, pageCount int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET page_count = ?, updated_at = ? WHERE id = ?`,
		pageCount, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return &ErrNotFound{Kind: "document", ID: id}
	}
	return nil
}

// DeleteDocument removes a document by ID. Chunks cascade.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// ListDocuments returns documents with offset and limit, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListDocumentIDs returns every document ID, oldest first.
func (s *SQLiteStorage) ListDocumentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const chunkColumns = `id, document_id, ordinal, page_num, span_start, span_end, text, clause_number, clause_title, section_type, created_at`

func scanChunk(row interface{ Scan(...any) error }) (*models.Chunk, error) {
	var c models.Chunk
	err := row.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.PageNum, &c.SpanStart, &c.SpanEnd,
		&c.Text, &c.ClauseNumber, &c.ClauseTitle, &c.SectionType, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, &ErrNotFound{Kind: "chunk", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// GetChunks returns the chunks for the given IDs. Missing IDs are skipped,
// so chunks of a document deleted mid-query silently drop out of results.
func (s *SQLiteStorage) GetChunks(ctx context.Context, ids []string) ([]*models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*models.Chunk)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[chunk.ID] = chunk
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve caller ordering.
	out := make([]*models.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetChunksByDocumentID returns all chunks for a document ordered by ordinal.
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE document_id = ? ORDER BY ordinal`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// ReplaceChunks atomically swaps the stored chunks of a document. Used on
// ingestion and reprocessing so a reader never sees a half-written set.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, docID string, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, ordinal, page_num, span_start, span_end, text, clause_number, clause_title, section_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range chunks {
		c.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Ordinal, c.PageNum, c.SpanStart, c.SpanEnd,
			c.Text, c.ClauseNumber, c.ClauseTitle, c.SectionType, c.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteChunksByDocumentID removes all chunks for a document.
func (s *SQLiteStorage) DeleteChunksByDocumentID(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID)
	return err
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
