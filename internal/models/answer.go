package models

// Citation points from an answer back to the exact source span that supports it.
type Citation struct {
	DocumentID   string `json:"document_id"`
	Filename     string `json:"filename,omitempty"`
	PageNum      int    `json:"page_num"`
	ClauseNumber string `json:"clause_number,omitempty"`
	SpanStart    int    `json:"span_start"`
	SpanEnd      int    `json:"span_end"`
	Excerpt      string `json:"excerpt"`
}

// Answer is the result of grounded answer synthesis.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
	// NoEvidence is set when retrieval produced zero relevant candidates;
	// Text then explains that no supporting content was found. This is a
	// valid outcome, distinct from synthesis failure.
	NoEvidence bool `json:"no_evidence,omitempty"`
}
