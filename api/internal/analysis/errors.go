package analysis

import "errors"

// Run-level error taxonomy. Segment-level failures are absorbed by the
// orchestrator and only surface as ErrAllSegmentsFailed when nothing
// succeeded.
var (
	// ErrInvalidSource means the page cannot be analyzed at all: no image
	// and no OCR blocks.
	ErrInvalidSource = errors.New("invalid source: no blocks to analyze")

	// ErrAllSegmentsFailed is terminal for a run: every segment's
	// extraction call failed or produced unusable output.
	ErrAllSegmentsFailed = errors.New("all segments failed")

	// ErrRoutingFailed marks a failed subject classification. Recoverable:
	// the orchestrator falls back to the generic agent.
	ErrRoutingFailed = errors.New("subject routing failed")
)
