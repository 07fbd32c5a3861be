// Package segment partitions one page's OCR blocks into contiguous vertical
// segments using gap detection, then merges undersized segments into their
// neighbors. Output is deterministic for identical input and config.
package segment

import (
	"encoding/json"
	"sort"
	"strings"
)

// OCRBlock is one recognized text block with its normalized vertical span
// (0.0 = top of page, 1.0 = bottom). Produced once by the OCR collaborator;
// never mutated downstream.
type OCRBlock struct {
	Text   string  `json:"text"`
	StartY float64 `json:"startY"`
	EndY   float64 `json:"endY"`
}

// UnmarshalJSON also accepts the compact {"text":..., "y":...} form some
// OCR sources emit, treating y as a zero-height span.
func (b *OCRBlock) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text   string   `json:"text"`
		Y      *float64 `json:"y"`
		StartY *float64 `json:"startY"`
		EndY   *float64 `json:"endY"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Text = raw.Text
	switch {
	case raw.StartY != nil:
		b.StartY = *raw.StartY
		if raw.EndY != nil {
			b.EndY = *raw.EndY
		} else {
			b.EndY = *raw.StartY
		}
	case raw.Y != nil:
		b.StartY = *raw.Y
		b.EndY = *raw.Y
	}
	if b.EndY < b.StartY {
		b.StartY, b.EndY = b.EndY, b.StartY
	}
	return nil
}

// ImageSegment is a contiguous vertical slice of the page with the blocks
// that fall inside it. Segments from one Segment call are non-overlapping,
// ordered top to bottom, and cover the page with no internal gaps.
type ImageSegment struct {
	StartY float64    `json:"startY"`
	EndY   float64    `json:"endY"`
	Blocks []OCRBlock `json:"ocrBlocks"`
}

// Height returns the normalized vertical extent of the segment.
func (s ImageSegment) Height() float64 { return s.EndY - s.StartY }

// Text joins the segment's block texts in vertical order.
func (s ImageSegment) Text() string {
	parts := make([]string, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Config holds the segmentation thresholds. The defaults are tuned against
// example homework pages; expose them as configuration, not constants.
type Config struct {
	// GapThreshold is the minimum vertical gap between consecutive blocks
	// that starts a new segment, as a fraction of page height.
	GapThreshold float64

	// MinSegmentHeight is the smallest allowed segment height; anything
	// shorter is merged into a neighbor, unless it is the only segment.
	MinSegmentHeight float64
}

// DefaultConfig returns the tuned defaults (5% gap, 3% minimum height).
func DefaultConfig() Config {
	return Config{
		GapThreshold:     0.05,
		MinSegmentHeight: 0.03,
	}
}

// Segmenter splits pages according to its Config. Stateless; safe for
// concurrent use across analysis runs.
type Segmenter struct {
	cfg Config
}

// New creates a segmenter with default thresholds.
func New() *Segmenter { return &Segmenter{cfg: DefaultConfig()} }

// NewWithConfig creates a segmenter with custom thresholds. Non-positive
// fields fall back to their defaults.
func NewWithConfig(cfg Config) *Segmenter {
	def := DefaultConfig()
	if cfg.GapThreshold <= 0 {
		cfg.GapThreshold = def.GapThreshold
	}
	if cfg.MinSegmentHeight <= 0 {
		cfg.MinSegmentHeight = def.MinSegmentHeight
	}
	return &Segmenter{cfg: cfg}
}

// Config returns the thresholds in effect.
func (s *Segmenter) Config() Config { return s.cfg }

// Segment partitions blocks into ordered segments. Zero blocks yield zero
// segments ("nothing to analyze", not an error). A single block, or blocks
// all closer than the gap threshold, yield one segment spanning the page.
func (s *Segmenter) Segment(blocks []OCRBlock) []ImageSegment {
	if len(blocks) == 0 {
		return nil
	}

	sorted := make([]OCRBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartY != sorted[j].StartY {
			return sorted[i].StartY < sorted[j].StartY
		}
		return sorted[i].EndY < sorted[j].EndY
	})

	segs := s.cut(sorted)
	s.addBoundarySlack(segs)
	segs = s.mergeUndersized(segs)
	return segs
}

// cut walks consecutive blocks and starts a new segment whenever the gap
// between one block's end and the next block's start exceeds the threshold.
func (s *Segmenter) cut(sorted []OCRBlock) []ImageSegment {
	var segs []ImageSegment
	cur := ImageSegment{
		StartY: sorted[0].StartY,
		EndY:   sorted[0].EndY,
		Blocks: []OCRBlock{sorted[0]},
	}
	for _, b := range sorted[1:] {
		if b.StartY-cur.EndY > s.cfg.GapThreshold {
			segs = append(segs, cur)
			cur = ImageSegment{StartY: b.StartY, EndY: b.EndY, Blocks: []OCRBlock{b}}
			continue
		}
		cur.Blocks = append(cur.Blocks, b)
		if b.EndY > cur.EndY {
			cur.EndY = b.EndY
		}
	}
	return append(segs, cur)
}

// addBoundarySlack extends segments so they are contiguous and cover the
// whole page: the first reaches 0.0, the last reaches 1.0, and interior
// boundaries sit at the midpoint between neighboring segments' nearest
// blocks.
func (s *Segmenter) addBoundarySlack(segs []ImageSegment) {
	for i := range segs {
		if i == 0 {
			segs[i].StartY = 0
		}
		if i == len(segs)-1 {
			segs[i].EndY = 1
			continue
		}
		mid := (segs[i].EndY + segs[i+1].StartY) / 2
		segs[i].EndY = mid
		segs[i+1].StartY = mid
	}
}

// mergeUndersized folds segments shorter than MinSegmentHeight into the
// taller of their neighbors (ties merge downward), repeating until every
// segment is tall enough or only one remains.
func (s *Segmenter) mergeUndersized(segs []ImageSegment) []ImageSegment {
	for len(segs) > 1 {
		idx := -1
		for i, seg := range segs {
			if seg.Height() < s.cfg.MinSegmentHeight {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		into := idx + 1
		switch {
		case idx == 0:
			into = 1
		case idx == len(segs)-1:
			into = idx - 1
		case segs[idx-1].Height() > segs[idx+1].Height():
			into = idx - 1
		}
		segs = mergePair(segs, idx, into)
	}
	return segs
}

// mergePair unions segment i into segment j (adjacent) and removes i.
func mergePair(segs []ImageSegment, i, j int) []ImageSegment {
	lo, hi := i, j
	if hi < lo {
		lo, hi = hi, lo
	}
	merged := ImageSegment{
		StartY: segs[lo].StartY,
		EndY:   segs[hi].EndY,
		Blocks: append(append([]OCRBlock{}, segs[lo].Blocks...), segs[hi].Blocks...),
	}
	out := append([]ImageSegment{}, segs[:lo]...)
	out = append(out, merged)
	return append(out, segs[hi+1:]...)
}
