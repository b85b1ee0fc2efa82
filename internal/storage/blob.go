// Package storage also keeps the raw uploaded bytes on disk so documents
// can be reprocessed without a re-upload.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// BlobStore persists the original file content of each document, one file
// per document ID.
type BlobStore struct {
	dir string
}

// NewBlobStore creates the blob directory if needed.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

func (b *BlobStore) path(docID string) string {
	return filepath.Join(b.dir, docID)
}

// Put writes the raw content for a document, replacing any previous blob.
// The write goes through a temp file and rename so a crash never leaves a
// truncated blob behind.
func (b *BlobStore) Put(docID string, content []byte) error {
	tmp, err := os.CreateTemp(b.dir, docID+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp blob: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path(docID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize blob: %w", err)
	}
	return nil
}

// Get reads the raw content for a document.
func (b *BlobStore) Get(docID string) ([]byte, error) {
	content, err := os.ReadFile(b.path(docID))
	if os.IsNotExist(err) {
		return nil, &ErrNotFound{Kind: "blob", ID: docID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return content, nil
}

// Delete removes the blob for a document. Deleting a missing blob is a no-op.
func (b *BlobStore) Delete(docID string) error {
	err := os.Remove(b.path(docID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
