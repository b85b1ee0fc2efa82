package embedding

import "fmt"

// EmbeddingError classifies an embedding provider failure. Transient errors
// (timeout, 5xx, rate limit) are retried by the remote provider; an error
// surfaced from EmbedBatch is already past retry exhaustion and terminal for
// the document being processed.
type EmbeddingError struct {
	Transient bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("embedding failed (%s): %v", kind, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func transientErr(err error) *EmbeddingError {
	return &EmbeddingError{Transient: true, Err: err}
}

func permanentErr(err error) *EmbeddingError {
	return &EmbeddingError{Err: err}
}
