// Package feature loads the GeoJSON exports of the tree inventory service
// into typed records: point features become trees, polygon features the base
// map. Unknown property keys are ignored rather than rejected.
package feature

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrMalformedInput indicates a payload that is not a structurally valid
// feature collection. It is fatal; nothing is drawn.
var ErrMalformedInput = errors.New("malformed feature collection")

// LoadTrees parses a FeatureCollection of point features into raw tree
// records. A feature without geometry or properties is malformed; a feature
// without a species is kept with an empty species key so the extractor can
// skip and count it.
func LoadTrees(data []byte) ([]Tree, error) {
	fc, err := unmarshal(data)
	if err != nil {
		return nil, err
	}

	trees := make([]Tree, 0, len(fc.Features))
	for i, f := range fc.Features {
		if err := checkShape(i, f); err != nil {
			return nil, err
		}

		point, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: expected Point geometry, got %s: %w", i, f.Geometry.GeoJSONType(), ErrMalformedInput)
		}

		tree := Tree{
			Species: propString(f.Properties, "species"),
			Point:   point,
			Dead:    propBool(f.Properties, "dead"),
		}
		tree.Width, tree.HasWidth = propFloat(f.Properties, "width")
		tree.Height, tree.HasHeight = propFloat(f.Properties, "height")

		if name := propString(f.Properties, "name_nl"); name != "" {
			tree.DisplayName = name
		} else if name := propString(f.Properties, "name_en"); name != "" {
			tree.DisplayName = name
		}

		trees = append(trees, tree)
	}

	return trees, nil
}

// LoadBasemap parses a FeatureCollection of polygon features. Only the outer
// ring of each polygon is used. Features with non-polygon geometry are
// dropped and reported through the returned count; the base-map vocabulary
// evolves independently of the renderer and must not abort a render.
func LoadBasemap(data []byte) ([]BasePolygon, int, error) {
	fc, err := unmarshal(data)
	if err != nil {
		return nil, 0, err
	}

	polygons := make([]BasePolygon, 0, len(fc.Features))
	dropped := 0
	for i, f := range fc.Features {
		if err := checkShape(i, f); err != nil {
			return nil, 0, err
		}

		ring, ok := outerRing(f.Geometry)
		if !ok {
			dropped++
			continue
		}

		zIndex, _ := propFloat(f.Properties, "z_index")
		polygons = append(polygons, BasePolygon{
			Type:   ParseBaseType(propString(f.Properties, "type")),
			ZIndex: zIndex,
			Ring:   ring,
		})
	}

	return polygons, dropped, nil
}

func unmarshal(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return fc, nil
}

func checkShape(i int, f *geojson.Feature) error {
	if f == nil || f.Geometry == nil {
		return fmt.Errorf("feature %d has no geometry: %w", i, ErrMalformedInput)
	}
	if f.Properties == nil {
		return fmt.Errorf("feature %d has no properties: %w", i, ErrMalformedInput)
	}
	return nil
}

func outerRing(g orb.Geometry) (orb.Ring, bool) {
	switch geom := g.(type) {
	case orb.Polygon:
		if len(geom) == 0 {
			return nil, false
		}
		return geom[0], true
	case orb.MultiPolygon:
		if len(geom) == 0 || len(geom[0]) == 0 {
			return nil, false
		}
		return geom[0][0], true
	default:
		return nil, false
	}
}

func propString(props geojson.Properties, key string) string {
	s, _ := props[key].(string)
	return s
}

func propBool(props geojson.Properties, key string) bool {
	b, _ := props[key].(bool)
	return b
}

func propFloat(props geojson.Properties, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
