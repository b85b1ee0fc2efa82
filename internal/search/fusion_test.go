package search

import (
	"testing"

	"github.com/keiyakuhq/keiyaku/internal/keyword"
	"github.com/keiyakuhq/keiyaku/internal/vector"
)

func TestFuseRRFDoubleTopOneWins(t *testing.T) {
	vectorList := []vector.Result{
		{ChunkID: "both", Distance: 0.1},
		{ChunkID: "vec-only", Distance: 0.2},
		{ChunkID: "vec-only-2", Distance: 0.3},
	}
	lexicalList := []*keyword.Result{
		{ChunkID: "both", Score: 5.0},
		{ChunkID: "lex-only", Score: 4.0},
	}

	fused := FuseRRF(vectorList, lexicalList, 60)
	if fused[0].ChunkID != "both" {
		t.Fatalf("rank 1 in both lists must fuse to rank 1, got %s", fused[0].ChunkID)
	}
	// Two rank-1 contributions, one from each list.
	want := 2.0 / 61.0
	if diff := fused[0].Score - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("expected fused score %f, got %f", want, fused[0].Score)
	}
	for _, f := range fused[1:] {
		if f.Score >= fused[0].Score {
			t.Errorf("single-list candidate %s outscores double top-1", f.ChunkID)
		}
	}
}

func TestFuseRRFCarriesRawSignals(t *testing.T) {
	fused := FuseRRF(
		[]vector.Result{{ChunkID: "a", Distance: 0.42}},
		[]*keyword.Result{{ChunkID: "a", Score: 3.5}, {ChunkID: "b", Score: 1.0}},
		60,
	)
	byID := make(map[string]*Fused)
	for _, f := range fused {
		byID[f.ChunkID] = f
	}
	a := byID["a"]
	if !a.InVectorList || a.VectorDistance != 0.42 || a.LexicalScore != 3.5 {
		t.Errorf("raw signals lost in fusion: %+v", a)
	}
	b := byID["b"]
	if b.InVectorList || b.LexicalScore != 1.0 {
		t.Errorf("lexical-only candidate mislabeled: %+v", b)
	}
}

func TestFuseRRFDeterministicTieBreak(t *testing.T) {
	// Two vector-only candidates at equal fused score can only differ by ID.
	fused := FuseRRF(
		[]vector.Result{{ChunkID: "z", Distance: 0.1}},
		[]*keyword.Result{{ChunkID: "a", Score: 2.0}},
		60,
	)
	if fused[0].ChunkID != "a" {
		t.Errorf("equal scores must order by chunk ID, got %s first", fused[0].ChunkID)
	}
}

func TestRelevanceFloorThresholdBoundary(t *testing.T) {
	threshold := 0.75
	fused := []*Fused{
		{ChunkID: "at-cutoff", InVectorList: true, VectorDistance: 0.75, LexicalScore: 0},
		{ChunkID: "below-cutoff", InVectorList: true, VectorDistance: 0.7499, LexicalScore: 0},
	}
	kept := ApplyRelevanceFloor(fused, threshold)
	if len(kept) != 1 || kept[0].ChunkID != "below-cutoff" {
		t.Fatalf("distance exactly at cutoff must be excluded, one unit below included; kept %v", kept)
	}
}

func TestRelevanceFloorLexicalMatchSurvivesAnyDistance(t *testing.T) {
	fused := []*Fused{
		{ChunkID: "distant-but-matched", InVectorList: true, VectorDistance: 0.99, LexicalScore: 2.5},
		{ChunkID: "lex-only", InVectorList: false, LexicalScore: 0.3},
		{ChunkID: "distant-unmatched", InVectorList: true, VectorDistance: 0.99, LexicalScore: 0},
	}
	kept := ApplyRelevanceFloor(fused, 0.75)
	if len(kept) != 2 {
		t.Fatalf("expected 2 survivors, got %v", kept)
	}
	for _, f := range kept {
		if f.ChunkID == "distant-unmatched" {
			t.Error("semantically distant candidate without lexical match must be dropped")
		}
	}
}
