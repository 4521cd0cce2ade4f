// Package scene turns projected survey features into normalized canvas-space
// geometry: tree records, the species draw order, and the shared transform.
package scene

import (
	"errors"

	"github.com/MeKo-Tech/boskaart/internal/feature"
	"github.com/paulmach/orb"
)

// DefaultDiameter is the crown diameter in meters substituted for trees
// whose width is unknown.
const DefaultDiameter = 3.4

// DefaultHeight is the species height in meters substituted for trees whose
// height is unknown. Height only drives draw order and label emphasis.
const DefaultHeight = 2.0

// ErrEmptyInput indicates extraction over zero point features. The bounding
// box would have zero extent, so the render is aborted before any surface
// exists.
var ErrEmptyInput = errors.New("no point features to extract")

// Projector converts WGS84 points into the planar target system. The pair of
// reference systems is fixed per deployment.
type Projector interface {
	Project(orb.Point) (orb.Point, error)
}

// FallbackPolicy decides when a tree's width/height falls back to the
// defaults.
type FallbackPolicy int

const (
	// FallbackZeroOrMissing substitutes the default when the property is
	// absent or exactly zero. This matches the behaviour of the original
	// exporter scripts.
	FallbackZeroOrMissing FallbackPolicy = iota
	// FallbackMissingOnly substitutes the default only when the property is
	// absent; an explicit zero is kept as-is.
	FallbackMissingOnly
)

// Margins expand the projected bounding box, in meters. The four sides are
// independent so map decorations get room on specific edges.
type Margins struct {
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
}

// Uniform returns equal margins on all four sides.
func Uniform(m float64) Margins {
	return Margins{Left: m, Right: m, Top: m, Bottom: m}
}

// Config parameterizes extraction.
type Config struct {
	Projector Projector
	Margins   Margins
	Policy    FallbackPolicy
}

// Transform is the shared mapping from projected meters to the unit canvas
// square. It is computed once per render from the full point-feature set and
// immutable afterward.
type Transform struct {
	MinEasting  float64
	MaxEasting  float64
	MinNorthing float64
	MaxNorthing float64
	// ScaleFactor is 1 / max(easting range, northing range) post margin: one
	// isotropic scale, so shapes are never stretched.
	ScaleFactor float64
}

// Point is a position in canvas units.
type Point struct {
	X float64
	Y float64
}

// Tree is a normalized survey tree. Position, radius, and height are in
// canvas units.
type Tree struct {
	Species string
	Label   string
	Pos     Point
	Radius  float64
	Height  float64
	Dead    bool
}

// Species summarizes one distinct species: the first-seen crown radius in
// canvas units and the height in meters used as the draw-order sort key.
type Species struct {
	Name   string
	Radius float64
	Height float64
}

// BasePolygon is a normalized base-map polygon with its ring in canvas units.
type BasePolygon struct {
	Type   feature.BaseType
	ZIndex float64
	Ring   []Point
}

// Scene is the complete canvas-space geometry ready for rendering. Species
// are sorted ascending by height: shortest drawn first, beneath taller
// canopies.
type Scene struct {
	Trees        []Tree
	Species      []Species
	Base         []BasePolygon
	Transform    Transform
	SkippedTrees int
	SkippedBase  int
}
