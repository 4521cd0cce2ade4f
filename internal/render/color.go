package render

import (
	"image/color"
	"math"
)

// BlendTowardWhite interpolates each channel linearly from c to white:
// result = c + (white - c) * percent. The percent is not clamped here; it is
// pure linear algebra and out-of-range input is a caller bug. Alpha is kept.
func BlendTowardWhite(c color.RGBA, percent float64) color.RGBA {
	return color.RGBA{
		R: blendChannel(c.R, percent),
		G: blendChannel(c.G, percent),
		B: blendChannel(c.B, percent),
		A: c.A,
	}
}

func blendChannel(v uint8, percent float64) uint8 {
	f := float64(v) + (255.0-float64(v))*percent
	return uint8(math.Round(f))
}

// clamp01 restricts a blend or emphasis factor to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
