package segment

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func block(text string, startY, endY float64) OCRBlock {
	return OCRBlock{Text: text, StartY: startY, EndY: endY}
}

func TestSegment_Empty(t *testing.T) {
	if segs := New().Segment(nil); len(segs) != 0 {
		t.Errorf("expected 0 segments for no blocks, got %d", len(segs))
	}
}

func TestSegment_SingleBlockSpansPage(t *testing.T) {
	segs := New().Segment([]OCRBlock{block("5 + 3 = ?", 0.4, 0.45)})
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].StartY != 0 || segs[0].EndY != 1 {
		t.Errorf("single segment must span the page, got [%.2f, %.2f]",
			segs[0].StartY, segs[0].EndY)
	}
}

func TestSegment_AllBlocksCloserThanThreshold(t *testing.T) {
	blocks := []OCRBlock{
		block("a", 0.10, 0.12),
		block("b", 0.14, 0.16),
		block("c", 0.18, 0.20),
	}
	segs := New().Segment(blocks)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if len(segs[0].Blocks) != 3 {
		t.Errorf("expected all 3 blocks in the segment, got %d", len(segs[0].Blocks))
	}
}

func TestSegment_TwoGroupsWithMidpointBoundary(t *testing.T) {
	blocks := []OCRBlock{
		block("Exercise 1", 0.05, 0.05),
		block("5 + 3", 0.07, 0.07),
		block("Exercise 2", 0.30, 0.30),
		block("7 - 2", 0.32, 0.32),
	}
	segs := New().Segment(blocks)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}

	mid := (0.07 + 0.30) / 2
	if segs[0].StartY != 0 {
		t.Errorf("first segment must start at 0, got %.3f", segs[0].StartY)
	}
	if math.Abs(segs[0].EndY-mid) > 1e-9 || math.Abs(segs[1].StartY-mid) > 1e-9 {
		t.Errorf("boundary must sit at the midpoint %.3f, got %.3f / %.3f",
			mid, segs[0].EndY, segs[1].StartY)
	}
	if segs[1].EndY != 1 {
		t.Errorf("last segment must end at 1, got %.3f", segs[1].EndY)
	}
	if len(segs[0].Blocks) != 2 || len(segs[1].Blocks) != 2 {
		t.Errorf("expected 2 blocks per segment, got %d and %d",
			len(segs[0].Blocks), len(segs[1].Blocks))
	}
}

func TestSegment_ContiguousNonOverlappingCoverage(t *testing.T) {
	cases := [][]OCRBlock{
		{block("a", 0.02, 0.04), block("b", 0.2, 0.22), block("c", 0.5, 0.6), block("d", 0.9, 0.95)},
		{block("a", 0.5, 0.5)},
		{block("a", 0.1, 0.3), block("b", 0.15, 0.2), block("c", 0.8, 0.85)},
		{block("a", 0.0, 0.1), block("b", 0.5, 0.55), block("c", 0.56, 0.6), block("d", 1.0, 1.0)},
	}
	for ci, blocks := range cases {
		segs := New().Segment(blocks)
		if len(segs) == 0 {
			t.Fatalf("case %d: no segments", ci)
		}
		if segs[0].StartY != 0 || segs[len(segs)-1].EndY != 1 {
			t.Errorf("case %d: segments do not cover the page: [%.2f, %.2f]",
				ci, segs[0].StartY, segs[len(segs)-1].EndY)
		}
		for i := 1; i < len(segs); i++ {
			if segs[i].StartY != segs[i-1].EndY {
				t.Errorf("case %d: gap/overlap between segment %d and %d: %.3f vs %.3f",
					ci, i-1, i, segs[i-1].EndY, segs[i].StartY)
			}
		}
		total := 0
		for _, s := range segs {
			if s.StartY >= s.EndY {
				t.Errorf("case %d: degenerate segment [%.3f, %.3f]", ci, s.StartY, s.EndY)
			}
			total += len(s.Blocks)
		}
		if total != len(blocks) {
			t.Errorf("case %d: blocks lost in segmentation: %d != %d", ci, total, len(blocks))
		}
	}
}

func TestSegment_UndersizedMergedIntoTallerNeighbor(t *testing.T) {
	cfg := Config{GapThreshold: 0.05, MinSegmentHeight: 0.2}
	// Three raw groups; the middle one ends up shorter than 20% and must be
	// merged into the taller neighbor (the bottom one).
	blocks := []OCRBlock{
		block("top", 0.05, 0.25),
		block("tiny", 0.40, 0.42),
		block("bottom", 0.55, 0.95),
	}
	segs := NewWithConfig(cfg).Segment(blocks)

	for _, s := range segs {
		if len(segs) > 1 && s.Height() < cfg.MinSegmentHeight {
			t.Errorf("undersized segment survived: [%.3f, %.3f]", s.StartY, s.EndY)
		}
	}
	// The tiny block must travel with the segment that absorbed it.
	found := false
	for _, s := range segs {
		for _, b := range s.Blocks {
			if b.Text == "tiny" {
				found = true
				for _, other := range s.Blocks {
					if other.Text == "top" {
						t.Errorf("tiny merged upward; taller neighbor was below")
					}
				}
			}
		}
	}
	if !found {
		t.Fatal("tiny block lost during merge")
	}
}

func TestSegment_Deterministic(t *testing.T) {
	blocks := []OCRBlock{
		block("c", 0.5, 0.6), block("a", 0.02, 0.04), block("b", 0.2, 0.22),
	}
	first := New().Segment(blocks)
	for i := 0; i < 5; i++ {
		if got := New().Segment(blocks); !reflect.DeepEqual(got, first) {
			t.Fatalf("segmentation not deterministic on run %d", i)
		}
	}
}

func TestSegment_InputNotMutated(t *testing.T) {
	blocks := []OCRBlock{block("b", 0.5, 0.6), block("a", 0.1, 0.2)}
	orig := append([]OCRBlock{}, blocks...)
	New().Segment(blocks)
	if !reflect.DeepEqual(blocks, orig) {
		t.Error("Segment must not reorder the caller's slice")
	}
}

func TestOCRBlock_UnmarshalCompactForm(t *testing.T) {
	var b OCRBlock
	if err := json.Unmarshal([]byte(`{"text":"hi","y":0.4}`), &b); err != nil {
		t.Fatal(err)
	}
	if b.StartY != 0.4 || b.EndY != 0.4 {
		t.Errorf("y form must map to a zero-height span, got [%.2f, %.2f]", b.StartY, b.EndY)
	}

	if err := json.Unmarshal([]byte(`{"text":"hi","startY":0.6,"endY":0.2}`), &b); err != nil {
		t.Fatal(err)
	}
	if b.StartY != 0.2 || b.EndY != 0.6 {
		t.Errorf("inverted span must normalize, got [%.2f, %.2f]", b.StartY, b.EndY)
	}
}

func TestSegmentText(t *testing.T) {
	s := ImageSegment{Blocks: []OCRBlock{block(" 1. Solve ", 0, 0), block("", 0, 0), block("x+1=2", 0, 0)}}
	if got := s.Text(); got != "1. Solve\nx+1=2" {
		t.Errorf("unexpected text: %q", got)
	}
}
