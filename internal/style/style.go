// Package style holds the static visual encoding of the map: fill and stroke
// styles per base feature type and the canopy palette.
package style

import (
	"image/color"

	"github.com/MeKo-Tech/boskaart/internal/feature"
)

// Canopy palette. Fill intensity is blended toward white per tree; the
// outline color stays constant.
var (
	CanopyFill    = color.RGBA{R: 77, G: 115, B: 67, A: 255}
	CanopyOutline = color.RGBA{R: 54, G: 89, B: 62, A: 255}
	DeadFill      = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	DeadOutline   = color.RGBA{R: 110, G: 110, B: 110, A: 255}
	LabelInk      = color.RGBA{R: 20, G: 24, B: 20, A: 255}
	DecorationInk = color.RGBA{R: 60, G: 60, B: 60, A: 255}
)

// Style describes how a base polygon is painted. A type with neither fill
// nor stroke never occurs: unknown types are not looked up successfully in
// the first place.
type Style struct {
	Fill        color.RGBA
	Stroke      color.RGBA
	StrokeWidth float64 // meters; scaled by the scene transform at draw time
	HasFill     bool
	HasStroke   bool
}

var table = map[feature.BaseType]Style{
	feature.BaseTypeWater: {
		Fill:    color.RGBA{R: 170, G: 200, B: 220, A: 255},
		HasFill: true,
	},
	feature.BaseTypeWaterway: {
		Fill:        color.RGBA{R: 170, G: 200, B: 220, A: 255},
		Stroke:      color.RGBA{R: 120, G: 160, B: 190, A: 255},
		StrokeWidth: 0.4,
		HasFill:     true,
		HasStroke:   true,
	},
	feature.BaseTypeGrass: {
		Fill:    color.RGBA{R: 214, G: 228, B: 204, A: 255},
		HasFill: true,
	},
	feature.BaseTypeMeadow: {
		Fill:    color.RGBA{R: 228, G: 234, B: 208, A: 255},
		HasFill: true,
	},
	feature.BaseTypePath: {
		Fill:        color.RGBA{R: 235, G: 224, B: 205, A: 255},
		Stroke:      color.RGBA{R: 200, G: 186, B: 160, A: 255},
		StrokeWidth: 0.3,
		HasFill:     true,
		HasStroke:   true,
	},
	feature.BaseTypeBuilding: {
		Fill:        color.RGBA{R: 210, G: 200, B: 195, A: 255},
		Stroke:      color.RGBA{R: 140, G: 130, B: 125, A: 255},
		StrokeWidth: 0.25,
		HasFill:     true,
		HasStroke:   true,
	},
}

// Lookup returns the style for a base feature type. Unknown types return
// false; the caller skips the polygon and logs a diagnostic.
func Lookup(t feature.BaseType) (Style, bool) {
	s, ok := table[t]
	return s, ok
}
