// Package geo converts survey coordinates from WGS84 (EPSG:4326) into the
// planar Web Mercator system (EPSG:3857) used by the scene transform.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// MaxLatitude is the latitude limit of the Web Mercator projection.
// Beyond it the projection diverges.
const MaxLatitude = 85.05112877980659

// ErrOutOfDomain indicates a coordinate outside the valid projection domain.
var ErrOutOfDomain = errors.New("coordinate outside projection domain")

// WebMercator projects WGS84 longitude/latitude pairs to EPSG:3857 meters.
// The source/target pair is fixed per deployment; the projector itself is
// stateless and safe for concurrent use.
type WebMercator struct{}

// NewWebMercator returns the WGS84 -> EPSG:3857 projector.
func NewWebMercator() WebMercator {
	return WebMercator{}
}

// Project converts a WGS84 point (lon, lat) to Web Mercator meters (x, y).
// Coordinates outside the projection domain fail with ErrOutOfDomain; callers
// must propagate the error rather than substitute a value.
func (WebMercator) Project(p orb.Point) (orb.Point, error) {
	if err := validate(p); err != nil {
		return orb.Point{}, err
	}
	return project.WGS84.ToMercator(p), nil
}

// Unproject converts a Web Mercator point back to WGS84.
func (WebMercator) Unproject(p orb.Point) (orb.Point, error) {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return orb.Point{}, fmt.Errorf("non-finite mercator coordinate (%v, %v): %w", p[0], p[1], ErrOutOfDomain)
	}
	return project.Mercator.ToWGS84(p), nil
}

func validate(p orb.Point) error {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return fmt.Errorf("non-finite coordinate (%v, %v): %w", lon, lat, ErrOutOfDomain)
	}
	if lon < -180.0 || 180.0 < lon {
		return fmt.Errorf("longitude %.6f outside [-180, 180]: %w", lon, ErrOutOfDomain)
	}
	if lat < -MaxLatitude || MaxLatitude < lat {
		return fmt.Errorf("latitude %.6f outside [-%.4f, %.4f]: %w", lat, MaxLatitude, MaxLatitude, ErrOutOfDomain)
	}
	return nil
}
