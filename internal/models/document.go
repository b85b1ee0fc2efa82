// Package models defines core data structures for documents, chunks, queries, and answers.
package models

import (
	"fmt"
	"time"
)

// DocumentStatus is the ingestion stage of a document.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusExtracting DocumentStatus = "extracting"
	StatusChunking   DocumentStatus = "chunking"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
)

// Terminal reports whether the status is an end state of the pipeline.
func (s DocumentStatus) Terminal() bool {
	return s == StatusIndexed || s == StatusFailed
}

// Document represents an ingested contract file with its processing state.
type Document struct {
	ID          string         `json:"id" db:"id"`
	Filename    string         `json:"filename" db:"filename"`
	FileType    string         `json:"file_type" db:"file_type"`
	ContentHash string         `json:"content_hash" db:"content_hash"`
	Status      DocumentStatus `json:"status" db:"status"`
	// StatusReason is a human-readable cause, set when Status is failed.
	StatusReason string    `json:"status_reason,omitempty" db:"status_reason"`
	PageCount    int       `json:"page_count" db:"page_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Chunk is the atomic retrieval unit: a page-anchored span of document text.
// Spans are half-open [SpanStart, SpanEnd) character offsets into the
// concatenated page text of the owning document, monotonically increasing
// in ordinal order.
type Chunk struct {
	ID         string `json:"id" db:"id"`
	DocumentID string `json:"document_id" db:"document_id"`
	Ordinal    int    `json:"ordinal" db:"ordinal"`
	PageNum    int    `json:"page_num" db:"page_num"`
	SpanStart  int    `json:"span_start" db:"span_start"`
	SpanEnd    int    `json:"span_end" db:"span_end"`
	Text       string `json:"text" db:"text"`
	// Clause tag, set when a structural clause marker falls inside the chunk.
	ClauseNumber string `json:"clause_number,omitempty" db:"clause_number"`
	ClauseTitle  string `json:"clause_title,omitempty" db:"clause_title"`
	SectionType  string `json:"section_type,omitempty" db:"section_type"`
	// Embedding is populated during ingestion and not persisted in SQLite;
	// the vector index owns the durable copy.
	Embedding []float32 `json:"-" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChunkID builds the deterministic ID of a chunk from its document and
// ordinal. Reprocessing a document therefore reproduces the same IDs, which
// is what lets index writes replace rather than duplicate.
func ChunkID(docID string, ordinal int) string {
	return fmt.Sprintf("%s_%04d", docID, ordinal)
}

// Page is one page of extracted text.
type Page struct {
	Num  int    `json:"num"`
	Text string `json:"text"`
}
