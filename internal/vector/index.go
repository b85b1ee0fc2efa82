// Package vector provides the vector side of the dual index: nearest
// neighbour search over chunk embeddings by cosine distance.
package vector

import "context"

// Entry is a stored embedding keyed by chunk ID. DocumentID is carried so
// the index can be scoped to a single document and purged when a document
// is deleted.
type Entry struct {
	ChunkID    string
	DocumentID string
	Vector     []float32
}

// Result is a single search hit. Distance is cosine distance (1 - inner
// product on unit-normalized vectors), so lower is better.
type Result struct {
	ChunkID  string
	Distance float64
}

// Index stores chunk embeddings and answers k-nearest-neighbour queries.
// Implementations must be safe for concurrent use.
type Index interface {
	// Upsert inserts or replaces entries. An entry with a chunk ID that is
	// already present replaces the stored vector, so re-ingesting a
	// document never produces duplicates.
	Upsert(ctx context.Context, entries []Entry) error

	// Search returns up to k results ordered by ascending distance.
	// If documentID is non-empty only entries from that document are
	// considered.
	Search(ctx context.Context, query []float32, k int, documentID string) ([]Result, error)

	// DeleteByDocument removes every entry belonging to the document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Save persists the index to path; Load replaces the contents from
	// path. Load of a missing file is a no-op.
	Save(path string) error
	Load(path string) error

	// Size returns the number of stored entries.
	Size() int

	Close() error
}
