package models

import "fmt"

// SearchQuery represents a retrieval request.
type SearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	// DocumentID scopes retrieval to a single document when non-empty
	// (used for document-specific verification questions).
	DocumentID string `json:"document_id,omitempty"`
}

// Validate normalizes the query and rejects empty input.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// RetrievalCandidate is an ephemeral per-query result: a chunk with its raw
// signals and the fused score. Not persisted.
type RetrievalCandidate struct {
	Chunk *Chunk `json:"chunk"`
	// VectorDistance is the raw semantic distance (lower = more similar);
	// meaningful only when InVectorList is true.
	VectorDistance float64 `json:"vector_distance"`
	InVectorList   bool    `json:"in_vector_list"`
	// LexicalScore is the raw keyword relevance score; zero when the chunk
	// did not appear in the lexical list.
	LexicalScore float64 `json:"lexical_score"`
	FusedScore   float64 `json:"fused_score"`
	Rank         int     `json:"rank"`
}
