package chunker

import (
	"regexp"
	"strings"

	"github.com/keiyakuhq/keiyaku/internal/models"
	"go.uber.org/zap"
)

// Clause heading patterns, matched at line starts within a chunk:
//
//	"5. Termination"        numbered heading with title
//	"5.2 Payment Terms"     nested numbering
//	"Section 5 - Term"      worded section
//	"ARTICLE IV"            article with roman numeral
var (
	numberedHeading = regexp.MustCompile(`(?m)^\s*(\d+(?:\.\d+)*)[.)]?\s+([A-Z][^\n.]{2,80})`)
	wordedHeading   = regexp.MustCompile(`(?mi)^\s*(?:section|article|clause)\s+(\d+|[IVXLC]+)\b[\s.:\-]*([^\n]{0,80})`)
)

// sectionKeywords classifies a clause title into a section type.
var sectionKeywords = []struct {
	sectionType string
	keywords    []string
}{
	{"termination", []string{"terminat", "cancellation", "expiration"}},
	{"payment", []string{"payment", "fee", "price", "pricing", "compensation", "invoice"}},
	{"confidentiality", []string{"confidential", "non-disclosure", "nondisclosure", "proprietary information"}},
	{"liability", []string{"liability", "limitation of liab", "damages"}},
	{"indemnification", []string{"indemnif", "hold harmless"}},
	{"governing_law", []string{"governing law", "jurisdiction", "venue", "applicable law"}},
	{"term", []string{"term of", "duration", "renewal"}},
	{"assignment", []string{"assignment", "transfer of rights"}},
	{"warranty", []string{"warrant", "representation"}},
}

// clauseMarker is one detected structural heading inside a chunk.
type clauseMarker struct {
	number string
	title  string
}

// tagClauses applies clause-detection heuristics to each chunk. A chunk gets
// at most one tag; multiple clause starts inside one chunk is a sign the
// window is too large for the document's structure, so it is logged, not
// silently collapsed.
func (c *Chunker) tagClauses(docID string, chunks []*models.Chunk) {
	for _, ch := range chunks {
		markers := detectClauses(ch.Text)
		if len(markers) == 0 {
			continue
		}
		if len(markers) > 1 {
			c.logger.Warn("multiple clause starts in one chunk, tagging the first",
				zap.String("document_id", docID),
				zap.Int("ordinal", ch.Ordinal),
				zap.Int("markers", len(markers)))
		}
		m := markers[0]
		ch.ClauseNumber = m.number
		ch.ClauseTitle = m.title
		ch.SectionType = classifySection(m.title)
	}
}

// detectClauses returns the clause headings found in text, in order of appearance.
func detectClauses(text string) []clauseMarker {
	type hit struct {
		pos    int
		marker clauseMarker
	}
	var hits []hit
	for _, m := range numberedHeading.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, hit{pos: m[0], marker: clauseMarker{
			number: text[m[2]:m[3]],
			title:  strings.TrimSpace(text[m[4]:m[5]]),
		}})
	}
	for _, m := range wordedHeading.FindAllStringSubmatchIndex(text, -1) {
		title := ""
		if m[4] >= 0 {
			title = strings.TrimSpace(text[m[4]:m[5]])
		}
		hits = append(hits, hit{pos: m[0], marker: clauseMarker{
			number: text[m[2]:m[3]],
			title:  title,
		}})
	}
	// Keep appearance order; both regex passes scan left to right, so a
	// single insertion-sort-style merge by position suffices.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	markers := make([]clauseMarker, len(hits))
	for i, h := range hits {
		markers[i] = h.marker
	}
	return markers
}

// classifySection maps a clause title to a section type, or "misc".
func classifySection(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range sectionKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.sectionType
			}
		}
	}
	return "misc"
}
