package geometry

import (
	"math"
	"testing"
)

func TestCropRect_Basic(t *testing.T) {
	r := CropRect(0.25, 0.5, 800, 1000, 0)

	if r.X != 0 || r.Width != 800 {
		t.Errorf("expected full-width rect, got X=%d W=%d", r.X, r.Width)
	}
	if r.Y != 250 {
		t.Errorf("expected Y=250, got %d", r.Y)
	}
	if r.Height != 250 {
		t.Errorf("expected Height=250, got %d", r.Height)
	}
}

func TestCropRect_SwappedInputs(t *testing.T) {
	a := CropRect(0.5, 0.25, 800, 1000, 0)
	b := CropRect(0.25, 0.5, 800, 1000, 0)
	if a != b {
		t.Errorf("swapped startY/endY should normalize: %+v vs %+v", a, b)
	}
}

func TestCropRect_PaddingExpandsAndClamps(t *testing.T) {
	r := CropRect(0.0, 0.1, 800, 1000, 0.02)
	if r.Y != 0 {
		t.Errorf("top padding must clamp at 0, got Y=%d", r.Y)
	}
	if r.Height != 120 {
		t.Errorf("expected Height=120 (100 + 20 bottom pad), got %d", r.Height)
	}

	r = CropRect(0.95, 1.0, 800, 1000, 0.1)
	if r.Y+r.Height > 1000 {
		t.Errorf("rect escapes image: Y=%d Height=%d", r.Y, r.Height)
	}
}

func TestCropRect_AlwaysInsideImage(t *testing.T) {
	// Sweep the input space; the rect must never leave the image and never
	// have negative height.
	for startY := 0.0; startY <= 1.0; startY += 0.05 {
		for endY := 0.0; endY <= 1.0; endY += 0.05 {
			for _, pad := range []float64{0, 0.02, 0.03, 0.5, 2} {
				r := CropRect(startY, endY, 640, 913, pad)
				if r.Y < 0 || r.Height < 0 || r.Y+r.Height > 913 {
					t.Fatalf("CropRect(%.2f, %.2f, pad=%.2f) out of bounds: %+v",
						startY, endY, pad, r)
				}
				if r.X != 0 || r.Width != 640 {
					t.Fatalf("rect must span full width: %+v", r)
				}
			}
		}
	}
}

func TestCropRect_ZeroHeightSpan(t *testing.T) {
	r := CropRect(0.4, 0.4, 800, 1000, 0)
	if r.Height != 0 {
		t.Errorf("zero span without padding should give zero height, got %d", r.Height)
	}
}

func TestFlipY(t *testing.T) {
	if got := FlipY(0); got != 1 {
		t.Errorf("FlipY(0) = %v", got)
	}
	if got := FlipY(0.25); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("FlipY(0.25) = %v", got)
	}
	// Flipping twice is the identity.
	if got := FlipY(FlipY(0.3)); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("double flip drifted: %v", got)
	}
}

func TestNormalizeY(t *testing.T) {
	if got := NormalizeY(250, 1000); got != 0.25 {
		t.Errorf("NormalizeY(250,1000) = %v", got)
	}
	if got := NormalizeY(-5, 1000); got != 0 {
		t.Errorf("negative row must clamp to 0, got %v", got)
	}
	if got := NormalizeY(2000, 1000); got != 1 {
		t.Errorf("overshooting row must clamp to 1, got %v", got)
	}
	if got := NormalizeY(10, 0); got != 0 {
		t.Errorf("zero-height image must not divide, got %v", got)
	}
}
