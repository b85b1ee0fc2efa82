package models

// ProcessingError records a per-document ingestion failure in a progress snapshot.
type ProcessingError struct {
	DocumentID string `json:"document_id"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
}

// Progress is a point-in-time snapshot of ingestion progress, safe to return
// to concurrent pollers. Completed counts terminal outcomes (indexed or
// failed) and is monotonically non-decreasing within one run.
type Progress struct {
	Total     int               `json:"total"`
	Completed int               `json:"completed"`
	Current   string            `json:"current,omitempty"`
	Errors    []ProcessingError `json:"errors,omitempty"`
	IsRunning bool              `json:"is_running"`
}
