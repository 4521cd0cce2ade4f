package scene

import (
	"fmt"
	"sort"

	"github.com/MeKo-Tech/boskaart/internal/feature"
	"github.com/MeKo-Tech/boskaart/internal/geo"
	"github.com/paulmach/orb"
)

// Extract projects the survey into the target system, derives the shared
// transform, and normalizes trees, species, and base polygons into canvas
// units. Trees without a species are skipped and counted, never fatal; a
// projection failure aborts the whole extraction.
func Extract(trees []feature.Tree, base []feature.BasePolygon, cfg Config) (*Scene, error) {
	if len(trees) == 0 {
		return nil, ErrEmptyInput
	}

	projected := make([]orb.Point, len(trees))
	for i, tr := range trees {
		p, err := cfg.Projector.Project(tr.Point)
		if err != nil {
			return nil, fmt.Errorf("tree %d (%s): %w", i, tr.Species, err)
		}
		projected[i] = p
	}

	transform, err := deriveTransform(projected, cfg.Margins)
	if err != nil {
		return nil, err
	}

	sc := &Scene{Transform: transform}
	seen := make(map[string]bool, 8)

	for i, tr := range trees {
		if tr.Species == "" {
			sc.SkippedTrees++
			continue
		}

		diameter := fallback(tr.Width, tr.HasWidth, DefaultDiameter, cfg.Policy)
		radius := diameter / 2.0 * transform.ScaleFactor
		height := fallback(tr.Height, tr.HasHeight, DefaultHeight, cfg.Policy)

		sc.Trees = append(sc.Trees, Tree{
			Species: tr.Species,
			Label:   tr.Label(),
			Pos:     transform.ToCanvas(projected[i]),
			Radius:  radius,
			Height:  height * transform.ScaleFactor,
			Dead:    tr.Dead,
		})

		if !seen[tr.Species] {
			seen[tr.Species] = true
			sc.Species = append(sc.Species, Species{
				Name:   tr.Species,
				Radius: radius,
				Height: height,
			})
		}
	}

	if len(sc.Trees) == 0 {
		return nil, fmt.Errorf("all %d features skipped: %w", len(trees), ErrEmptyInput)
	}

	// Stable: species of equal height keep first-seen order, which keeps the
	// rendered output byte-identical across runs.
	sort.SliceStable(sc.Species, func(i, j int) bool {
		return sc.Species[i].Height < sc.Species[j].Height
	})

	for i, poly := range base {
		ring, err := projectRing(poly.Ring, cfg.Projector, transform)
		if err != nil {
			return nil, fmt.Errorf("base polygon %d (%s): %w", i, poly.Type, err)
		}
		if len(ring) < 3 {
			sc.SkippedBase++
			continue
		}
		sc.Base = append(sc.Base, BasePolygon{
			Type:   poly.Type,
			ZIndex: poly.ZIndex,
			Ring:   ring,
		})
	}

	// Lower z-index drawn first (further back); ties keep input order.
	sort.SliceStable(sc.Base, func(i, j int) bool {
		return sc.Base[i].ZIndex < sc.Base[j].ZIndex
	})

	return sc, nil
}

// ToCanvas maps a projected point into canvas units. Northing drives the
// x-axis and easting the y-axis: the canvas is built rotated a quarter turn
// relative to the projection so the global rotation at draw time leaves it
// north-aligned. Do not swap these back.
func (t Transform) ToCanvas(p orb.Point) Point {
	return Point{
		X: (p[1] - t.MinNorthing) * t.ScaleFactor,
		Y: (p[0] - t.MinEasting) * t.ScaleFactor,
	}
}

func deriveTransform(points []orb.Point, m Margins) (Transform, error) {
	minE, maxE := points[0][0], points[0][0]
	minN, maxN := points[0][1], points[0][1]
	for _, p := range points[1:] {
		if p[0] < minE {
			minE = p[0]
		}
		if p[0] > maxE {
			maxE = p[0]
		}
		if p[1] < minN {
			minN = p[1]
		}
		if p[1] > maxN {
			maxN = p[1]
		}
	}

	minE -= m.Left
	maxE += m.Right
	minN -= m.Bottom
	maxN += m.Top

	eastingRange := maxE - minE
	northingRange := maxN - minN

	// A single tree (or coincident trees) with zero margins would divide by
	// zero here and poison every downstream coordinate.
	if eastingRange <= 0 && northingRange <= 0 {
		return Transform{}, fmt.Errorf("bounding box has zero extent after margins: %w", geo.ErrOutOfDomain)
	}

	scale := 1.0 / eastingRange
	if northingRange > eastingRange {
		scale = 1.0 / northingRange
	}

	return Transform{
		MinEasting:  minE,
		MaxEasting:  maxE,
		MinNorthing: minN,
		MaxNorthing: maxN,
		ScaleFactor: scale,
	}, nil
}

func projectRing(ring orb.Ring, proj Projector, t Transform) ([]Point, error) {
	out := make([]Point, 0, len(ring))
	for _, p := range ring {
		projected, err := proj.Project(p)
		if err != nil {
			return nil, err
		}
		out = append(out, t.ToCanvas(projected))
	}
	// Drop an explicit closing point; rings are closed at draw time.
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out, nil
}

func fallback(value float64, present bool, def float64, policy FallbackPolicy) float64 {
	switch policy {
	case FallbackMissingOnly:
		if !present {
			return def
		}
		return value
	default:
		if !present || value == 0 {
			return def
		}
		return value
	}
}
