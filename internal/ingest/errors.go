package ingest

import "fmt"

// IndexWriteError reports a failed write to one of the two indexes. It is
// terminal for the document: the orchestrator rolls back every partial
// write so the document can be safely reprocessed from pending.
type IndexWriteError struct {
	Index string
	Err   error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("%s index write failed: %v", e.Index, e.Err)
}

func (e *IndexWriteError) Unwrap() error {
	return e.Err
}
