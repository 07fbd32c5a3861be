// Package ocr defines the text-recognition collaborator contract. A
// Recognizer returns the page's full text plus blocks carrying normalized
// vertical positions in the canonical top-origin convention. Conversion
// from a backend's native coordinates (including any axis flip) happens
// inside the Recognizer, never downstream.
package ocr

import (
	"context"

	"homework-analyzer/api/internal/segment"
)

// Options tune a recognition call.
type Options struct {
	Langs []string // e.g. ["ru","en"]
	Model string   // backend recognition model, e.g. "handwritten", "page"
}

// Result is one recognized page.
type Result struct {
	FullText string             `json:"fullText"`
	Blocks   []segment.OCRBlock `json:"blocks"`
}

// Recognizer is the OCR collaborator.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, image []byte, opt Options) (Result, error)
}
