// Package geometry is the single source of truth for the page coordinate
// convention: normalized Y runs from 0.0 at the top of the page to 1.0 at
// the bottom (image origin). Every package downstream of the OCR boundary
// assumes this convention; conversions from other conventions happen once,
// at the boundary, via FlipY/NormalizeY.
package geometry

import "math"

// DefaultCropPadding expands crop rectangles by 2% of page height per side.
const DefaultCropPadding = 0.02

// Rect is a pixel rectangle inside an image. Y grows downward.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// FlipY converts a bottom-origin normalized coordinate to top-origin.
// Call it exactly once, where an inverted OCR source is first consumed.
func FlipY(y float64) float64 { return 1 - y }

// NormalizeY maps a pixel row to [0,1] of page height. Out-of-range rows
// clamp rather than escape the unit interval.
func NormalizeY(pixelRow, imageHeight float64) float64 {
	if imageHeight <= 0 {
		return 0
	}
	y := pixelRow / imageHeight
	if y < 0 {
		return 0
	}
	if y > 1 {
		return 1
	}
	return y
}

// CropRect derives the pixel rectangle for the normalized span
// [startY, endY], expanded by padding×imageHeight on each side and clamped
// to the image. The result always spans the full image width and has
// non-negative height, for any startY/endY in [0,1] and padding >= 0.
func CropRect(startY, endY float64, imageWidth, imageHeight int, padding float64) Rect {
	top := math.Min(startY, endY)
	bottom := math.Max(startY, endY)

	h := float64(imageHeight)
	pad := padding * h
	topPx := top*h - pad
	bottomPx := bottom*h + pad

	if topPx < 0 {
		topPx = 0
	}
	if bottomPx > h {
		bottomPx = h
	}
	if bottomPx < topPx {
		bottomPx = topPx
	}

	y := int(math.Floor(topPx))
	height := int(math.Ceil(bottomPx)) - y
	if y+height > imageHeight {
		height = imageHeight - y
	}
	if height < 0 {
		height = 0
	}
	return Rect{X: 0, Y: y, Width: imageWidth, Height: height}
}
