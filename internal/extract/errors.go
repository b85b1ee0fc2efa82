package extract

import "fmt"

// ExtractionError is a terminal per-document failure: the file is unreadable,
// corrupt, or of an unsupported type. The Reason is recorded on the document
// so the failure is never silent.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func extractionErr(reason string, err error) *ExtractionError {
	return &ExtractionError{Reason: reason, Err: err}
}
