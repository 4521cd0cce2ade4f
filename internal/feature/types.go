package feature

import "github.com/paulmach/orb"

// UnknownSpecies is the sentinel the inventory service assigns to trees
// surveyed without an identified species.
const UnknownSpecies = "onbekend"

// BaseType categorizes base-map polygons. The vocabulary is closed; anything
// else parses to BaseTypeUnknown and is skipped by the style table.
type BaseType string

const (
	BaseTypeWater    BaseType = "water"
	BaseTypeWaterway BaseType = "waterway"
	BaseTypeGrass    BaseType = "grass"
	BaseTypeMeadow   BaseType = "meadow"
	BaseTypePath     BaseType = "path"
	BaseTypeBuilding BaseType = "building"
	BaseTypeUnknown  BaseType = "unknown"
)

// ParseBaseType maps a base-map type property onto the closed vocabulary.
func ParseBaseType(s string) BaseType {
	switch BaseType(s) {
	case BaseTypeWater, BaseTypeWaterway, BaseTypeGrass, BaseTypeMeadow, BaseTypePath, BaseTypeBuilding:
		return BaseType(s)
	default:
		return BaseTypeUnknown
	}
}

// Tree is a raw survey point feature in WGS84, prior to scene extraction.
// Width and Height are crown diameter and tree height in meters; the Has*
// flags distinguish an explicit zero from an absent property.
type Tree struct {
	Species     string
	DisplayName string
	Point       orb.Point // lon, lat
	Width       float64
	Height      float64
	HasWidth    bool
	HasHeight   bool
	Dead        bool
}

// Label returns the display name, falling back to the species key.
func (t Tree) Label() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Species
}

// BasePolygon is a raw base-map feature in WGS84. Only the outer ring is
// kept; holes are unsupported.
type BasePolygon struct {
	Type   BaseType
	ZIndex float64
	Ring   orb.Ring // lon, lat pairs
}
