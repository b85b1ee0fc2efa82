// Package search provides hybrid retrieval over the dual index with
// reciprocal rank fusion.
package search

import (
	"sort"

	"github.com/keiyakuhq/keiyaku/internal/keyword"
	"github.com/keiyakuhq/keiyaku/internal/vector"
)

// Fused is a chunk's combined standing across the two ranked lists, before
// hydration from storage.
type Fused struct {
	ChunkID        string
	Score          float64
	VectorDistance float64
	InVectorList   bool
	LexicalScore   float64
}

// FuseRRF merges the vector list (ascending distance) and the lexical list
// (descending score) with reciprocal rank fusion: each appearance at 1-based
// rank r contributes 1/(k+r). A chunk in both lists accumulates both
// contributions, which is what lets a mediocre-distance chunk with an exact
// keyword hit climb back to a competitive rank. Ties break on chunk ID so
// the ordering is deterministic.
func FuseRRF(vectorResults []vector.Result, lexicalResults []*keyword.Result, k int) []*Fused {
	byChunk := make(map[string]*Fused)

	for i, r := range vectorResults {
		f := &Fused{
			ChunkID:        r.ChunkID,
			Score:          1.0 / float64(k+i+1),
			VectorDistance: r.Distance,
			InVectorList:   true,
		}
		byChunk[r.ChunkID] = f
	}
	for i, r := range lexicalResults {
		contribution := 1.0 / float64(k+i+1)
		if f, ok := byChunk[r.ChunkID]; ok {
			f.Score += contribution
			f.LexicalScore = r.Score
			continue
		}
		byChunk[r.ChunkID] = &Fused{
			ChunkID:      r.ChunkID,
			Score:        contribution,
			LexicalScore: r.Score,
		}
	}

	fused := make([]*Fused, 0, len(byChunk))
	for _, f := range byChunk {
		fused = append(fused, f)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ChunkID < fused[j].ChunkID
	})
	return fused
}

// ApplyRelevanceFloor drops candidates that are both semantically distant
// and lexically absent. A chunk is removed only when its lexical score is
// zero and its vector distance reaches the threshold; any lexical match
// keeps a chunk alive regardless of distance, so an exact keyword hit inside
// an off-topic chunk is never pruned away.
func ApplyRelevanceFloor(fused []*Fused, threshold float64) []*Fused {
	kept := fused[:0]
	for _, f := range fused {
		if f.LexicalScore == 0 && (!f.InVectorList || f.VectorDistance >= threshold) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
