package render

import (
	"image/color"
	"testing"
)

func TestBlendTowardWhiteEndpoints(t *testing.T) {
	c := color.RGBA{R: 77, G: 115, B: 67, A: 255}

	if got := BlendTowardWhite(c, 0); got != c {
		t.Errorf("blend(c, 0) = %v, want %v", got, c)
	}

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	if got := BlendTowardWhite(c, 1); got != white {
		t.Errorf("blend(c, 1) = %v, want white", got)
	}
}

func TestBlendTowardWhiteMonotonic(t *testing.T) {
	c := color.RGBA{R: 54, G: 89, B: 62, A: 255}

	prev := BlendTowardWhite(c, 0)
	for i := 1; i <= 10; i++ {
		cur := BlendTowardWhite(c, float64(i)/10.0)
		if cur.R < prev.R || cur.G < prev.G || cur.B < prev.B {
			t.Fatalf("blend not monotonic at step %d: %v -> %v", i, prev, cur)
		}
		prev = cur
	}
}

func TestBlendTowardWhiteKeepsAlpha(t *testing.T) {
	c := color.RGBA{R: 0, G: 0, B: 0, A: 153}
	if got := BlendTowardWhite(c, 0.5); got.A != 153 {
		t.Errorf("alpha = %d, want 153", got.A)
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.37, 0.37},
		{1, 1},
		{1.7, 1},
	}

	for _, tt := range tests {
		if got := clamp01(tt.in); got != tt.want {
			t.Errorf("clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
