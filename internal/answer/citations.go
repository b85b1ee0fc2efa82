package answer

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/keiyakuhq/keiyaku/internal/models"
)

var excerptMarker = regexp.MustCompile(`(?s)<<(.+?)>>`)

// resolveCitations maps the model's quoted excerpts back to the chunks they
// came from. Exact substring match is tried first, then a match over
// case-folded, whitespace-collapsed text. An excerpt that matches nothing
// is dropped with a log line; a fabricated span is worse than a missing one.
func resolveCitations(answerText string, candidates []*models.RetrievalCandidate, logger *zap.Logger) []models.Citation {
	matches := excerptMarker.FindAllStringSubmatch(answerText, -1)
	if len(matches) == 0 {
		return nil
	}

	var citations []models.Citation
	seen := make(map[string]bool)
	for _, m := range matches {
		excerpt := strings.TrimSpace(m[1])
		if excerpt == "" || seen[excerpt] {
			continue
		}
		seen[excerpt] = true

		cit, ok := locateExcerpt(excerpt, candidates)
		if !ok {
			logger.Warn("answer excerpt not found in any supplied chunk",
				zap.String("excerpt", excerpt))
			continue
		}
		citations = append(citations, cit)
	}
	return citations
}

// locateExcerpt finds the first candidate (in fused-rank order) containing
// the excerpt and builds a citation with document-level span offsets.
func locateExcerpt(excerpt string, candidates []*models.RetrievalCandidate) (models.Citation, bool) {
	for _, c := range candidates {
		start, end, ok := findSpan(c.Chunk.Text, excerpt)
		if !ok {
			continue
		}
		return models.Citation{
			DocumentID:   c.Chunk.DocumentID,
			PageNum:      c.Chunk.PageNum,
			ClauseNumber: c.Chunk.ClauseNumber,
			SpanStart:    c.Chunk.SpanStart + start,
			SpanEnd:      c.Chunk.SpanStart + end,
			Excerpt:      excerpt,
		}, true
	}
	return models.Citation{}, false
}

// findSpan returns the rune span of excerpt within text. Exact match first;
// the fallback folds case and collapses whitespace runs on both sides, then
// maps the match back to original rune offsets.
func findSpan(text, excerpt string) (start, end int, ok bool) {
	if i := strings.Index(text, excerpt); i >= 0 {
		start = len([]rune(text[:i]))
		return start, start + len([]rune(excerpt)), true
	}

	normText, offsets := normalizeRunes(text)
	normExcerpt, _ := normalizeRunes(excerpt)
	if len(normExcerpt) == 0 {
		return 0, 0, false
	}
	i := indexRunes(normText, normExcerpt)
	if i < 0 {
		return 0, 0, false
	}
	start = offsets[i]
	end = offsets[i+len(normExcerpt)-1] + 1
	return start, end, true
}

// normalizeRunes lowercases and collapses whitespace runs to single spaces,
// recording for each normalized rune the index of the original rune it came
// from.
func normalizeRunes(s string) ([]rune, []int) {
	var norm []rune
	var offsets []int
	inSpace := false
	for i, r := range []rune(s) {
		if unicode.IsSpace(r) {
			if inSpace || len(norm) == 0 {
				continue
			}
			inSpace = true
			norm = append(norm, ' ')
			offsets = append(offsets, i)
			continue
		}
		inSpace = false
		norm = append(norm, unicode.ToLower(r))
		offsets = append(offsets, i)
	}
	// Trim a trailing collapsed space.
	if n := len(norm); n > 0 && norm[n-1] == ' ' {
		norm = norm[:n-1]
		offsets = offsets[:n-1]
	}
	return norm, offsets
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
