// Package cli renders retrieval and answer output for the Keiyaku CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/keiyakuhq/keiyaku/internal/models"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// WriteCandidates writes retrieval candidates to w in the given format.
func WriteCandidates(w io.Writer, query string, candidates []*models.RetrievalCandidate, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"query": query, "candidates": candidates})
	}
	fmt.Fprintf(w, "\n%d result(s) for %q\n\n", len(candidates), query)
	for _, c := range candidates {
		writeOneCandidate(w, c)
	}
	return nil
}

func writeOneCandidate(w io.Writer, c *models.RetrievalCandidate) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Fused: %.4f | Lexical: %.4f", c.Rank, c.FusedScore, c.LexicalScore)
	if c.InVectorList {
		fmt.Fprintf(w, " | Distance: %.4f", c.VectorDistance)
	}
	fmt.Fprintln(w)
	if c.Chunk != nil {
		fmt.Fprintf(w, "Document: %s | Page: %d", c.Chunk.DocumentID, c.Chunk.PageNum)
		if c.Chunk.ClauseNumber != "" {
			fmt.Fprintf(w, " | Clause: %s", c.Chunk.ClauseNumber)
		}
		if c.Chunk.ClauseTitle != "" {
			fmt.Fprintf(w, " (%s)", c.Chunk.ClauseTitle)
		}
		fmt.Fprintf(w, "\n\n%s\n", Truncate(c.Chunk.Text, 300))
	}
	fmt.Fprintln(w)
}

// WriteAnswer writes a synthesized answer with its citations to w.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ans)
	}
	fmt.Fprintf(w, "\n%s\n", ans.Text)
	if len(ans.Citations) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, c := range ans.Citations {
			name := c.Filename
			if name == "" {
				name = c.DocumentID
			}
			fmt.Fprintf(w, "  [%d] %s p.%d", i+1, name, c.PageNum)
			if c.ClauseNumber != "" {
				fmt.Fprintf(w, " clause %s", c.ClauseNumber)
			}
			fmt.Fprintf(w, " (chars %d-%d)\n", c.SpanStart, c.SpanEnd)
			fmt.Fprintf(w, "      %q\n", Truncate(c.Excerpt, 160))
		}
	}
	return nil
}

// WriteProgress writes an ingestion progress snapshot to w.
func WriteProgress(w io.Writer, p *models.Progress, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	if !p.IsRunning && p.Total == 0 {
		fmt.Fprintln(w, "idle")
		return nil
	}
	state := "done"
	if p.IsRunning {
		state = "running"
	}
	fmt.Fprintf(w, "%s: %d/%d documents\n", state, p.Completed, p.Total)
	if p.Current != "" {
		fmt.Fprintf(w, "current: %s\n", p.Current)
	}
	for _, e := range p.Errors {
		fmt.Fprintf(w, "error: %s: %s\n", e.DocumentID, e.Message)
	}
	return nil
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
