package util

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"homework-analyzer/api/internal/geometry"
)

var errNoSubImage = errors.New("image type does not support cropping")

// CropSegment cuts the horizontal band [startY, endY] (normalized,
// top-origin, expanded by padding per side) out of an encoded page image
// and re-encodes it as JPEG. Returns the cropped bytes and their MIME
// type. Callers fall back to the full image on error.
func CropSegment(img []byte, startY, endY, padding float64) ([]byte, string, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	b := src.Bounds()

	r := geometry.CropRect(startY, endY, b.Dx(), b.Dy(), padding)
	if r.Height == 0 {
		return nil, "", errors.New("empty crop region")
	}

	si, ok := src.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, "", errNoSubImage
	}
	sub := si.SubImage(image.Rect(
		b.Min.X+r.X,
		b.Min.Y+r.Y,
		b.Min.X+r.X+r.Width,
		b.Min.Y+r.Y+r.Height,
	))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sub, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
