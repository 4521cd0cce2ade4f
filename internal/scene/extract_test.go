package scene

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/MeKo-Tech/boskaart/internal/feature"
	"github.com/MeKo-Tech/boskaart/internal/geo"
	"github.com/paulmach/orb"
)

// identityProjector keeps coordinates as-is so expected canvas positions can
// be computed by hand.
type identityProjector struct{}

func (identityProjector) Project(p orb.Point) (orb.Point, error) { return p, nil }

type failingProjector struct{}

func (failingProjector) Project(orb.Point) (orb.Point, error) {
	return orb.Point{}, geo.ErrOutOfDomain
}

func identityConfig(m Margins) Config {
	return Config{Projector: identityProjector{}, Margins: m}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestExtractTransform(t *testing.T) {
	trees := []feature.Tree{
		{Species: "malus", Point: orb.Point{0, 0}, Width: 4, HasWidth: true},
		{Species: "malus", Point: orb.Point{100, 50}, Width: 4, HasWidth: true},
	}
	margins := Margins{Left: 10, Right: 20, Top: 5, Bottom: 15}

	sc, err := Extract(trees, nil, identityConfig(margins))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	tr := sc.Transform
	if tr.MinEasting != -10 || tr.MaxEasting != 120 || tr.MinNorthing != -15 || tr.MaxNorthing != 55 {
		t.Errorf("bounds = [%v %v %v %v], want [-10 120 -15 55]",
			tr.MinEasting, tr.MaxEasting, tr.MinNorthing, tr.MaxNorthing)
	}

	// Easting range 130 is larger than northing range 70.
	if !almostEqual(tr.ScaleFactor, 1.0/130.0) {
		t.Errorf("scale factor = %v, want 1/130", tr.ScaleFactor)
	}
	if tr.ScaleFactor <= 0 {
		t.Error("scale factor must be positive")
	}

	// Northing drives x, easting drives y.
	p := sc.Trees[0].Pos
	if !almostEqual(p.X, 15.0/130.0) || !almostEqual(p.Y, 10.0/130.0) {
		t.Errorf("canvas position = %+v, want (15/130, 10/130)", p)
	}
}

func TestExtractDeterministic(t *testing.T) {
	trees := []feature.Tree{
		{Species: "malus", Point: orb.Point{4.868, 51.583}, Width: 4, HasWidth: true, Height: 8, HasHeight: true},
		{Species: "corylus", Point: orb.Point{4.869, 51.584}, Width: 3, HasWidth: true, Height: 4, HasHeight: true},
	}
	cfg := Config{Projector: geo.NewWebMercator(), Margins: Uniform(10)}

	first, err := Extract(trees, nil, cfg)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	second, err := Extract(trees, nil, cfg)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("extraction is not deterministic over identical input")
	}
}

func TestExtractWidthFallback(t *testing.T) {
	trees := []feature.Tree{
		{Species: "a", Point: orb.Point{0, 0}, Width: 6, HasWidth: true},
		{Species: "a", Point: orb.Point{10, 0}},                          // width absent
		{Species: "a", Point: orb.Point{20, 0}, Width: 0, HasWidth: true}, // explicit zero
	}

	t.Run("zero or missing", func(t *testing.T) {
		cfg := identityConfig(Uniform(0))
		cfg.Policy = FallbackZeroOrMissing
		sc, err := Extract(trees, nil, cfg)
		if err != nil {
			t.Fatalf("Extract returned error: %v", err)
		}
		scale := sc.Transform.ScaleFactor
		if !almostEqual(sc.Trees[0].Radius, 3*scale) {
			t.Errorf("explicit width: radius = %v, want %v", sc.Trees[0].Radius, 3*scale)
		}
		want := DefaultDiameter / 2 * scale
		if !almostEqual(sc.Trees[1].Radius, want) {
			t.Errorf("missing width: radius = %v, want %v", sc.Trees[1].Radius, want)
		}
		if !almostEqual(sc.Trees[2].Radius, want) {
			t.Errorf("zero width: radius = %v, want default %v", sc.Trees[2].Radius, want)
		}
	})

	t.Run("missing only", func(t *testing.T) {
		cfg := identityConfig(Uniform(0))
		cfg.Policy = FallbackMissingOnly
		sc, err := Extract(trees, nil, cfg)
		if err != nil {
			t.Fatalf("Extract returned error: %v", err)
		}
		scale := sc.Transform.ScaleFactor
		want := DefaultDiameter / 2 * scale
		if !almostEqual(sc.Trees[1].Radius, want) {
			t.Errorf("missing width: radius = %v, want default %v", sc.Trees[1].Radius, want)
		}
		if sc.Trees[2].Radius != 0 {
			t.Errorf("zero width under missing-only: radius = %v, want 0", sc.Trees[2].Radius)
		}
	})
}

func TestExtractSkipsMissingSpecies(t *testing.T) {
	trees := []feature.Tree{
		{Species: "malus", Point: orb.Point{0, 0}, Width: 4, HasWidth: true},
		{Point: orb.Point{5, 5}},
		{Species: "corylus", Point: orb.Point{10, 10}, Width: 3, HasWidth: true},
	}

	sc, err := Extract(trees, nil, identityConfig(Uniform(1)))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if sc.SkippedTrees != 1 {
		t.Errorf("skipped = %d, want 1", sc.SkippedTrees)
	}
	if len(sc.Trees) != 2 {
		t.Errorf("trees = %d, want 2", len(sc.Trees))
	}
}

func TestExtractSpeciesOrder(t *testing.T) {
	trees := []feature.Tree{
		{Species: "tall", Point: orb.Point{0, 0}, Width: 4, HasWidth: true, Height: 20, HasHeight: true},
		{Species: "short", Point: orb.Point{1, 1}, Width: 2, HasWidth: true, Height: 3, HasHeight: true},
		{Species: "mid-a", Point: orb.Point{2, 2}, Width: 3, HasWidth: true, Height: 8, HasHeight: true},
		{Species: "mid-b", Point: orb.Point{3, 3}, Width: 5, HasWidth: true, Height: 8, HasHeight: true},
		{Species: "tall", Point: orb.Point{4, 4}, Width: 9, HasWidth: true, Height: 25, HasHeight: true},
	}

	sc, err := Extract(trees, nil, identityConfig(Uniform(1)))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	var names []string
	for _, sp := range sc.Species {
		names = append(names, sp.Name)
	}
	want := []string{"short", "mid-a", "mid-b", "tall"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("species order = %v, want %v", names, want)
	}

	// First occurrence wins for the representative radius.
	if !almostEqual(sc.Species[3].Radius, 2*sc.Transform.ScaleFactor) {
		t.Errorf("tall radius = %v, want first-seen %v", sc.Species[3].Radius, 2*sc.Transform.ScaleFactor)
	}
	if sc.Species[3].Height != 20 {
		t.Errorf("tall height = %v, want first-seen 20", sc.Species[3].Height)
	}
}

func TestExtractSingleSpecies(t *testing.T) {
	trees := []feature.Tree{
		{Species: "malus", Point: orb.Point{0, 0}, Width: 4, HasWidth: true},
		{Species: "malus", Point: orb.Point{10, 5}, Width: 6, HasWidth: true},
	}

	sc, err := Extract(trees, nil, identityConfig(Uniform(1)))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(sc.Species) != 1 {
		t.Errorf("species = %d, want 1", len(sc.Species))
	}
}

func TestExtractEmpty(t *testing.T) {
	if _, err := Extract(nil, nil, identityConfig(Uniform(1))); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Extract(nil) = %v, want ErrEmptyInput", err)
	}

	// Features that all get skipped leave nothing to render either.
	trees := []feature.Tree{{Point: orb.Point{0, 0}}, {Point: orb.Point{1, 1}}}
	if _, err := Extract(trees, nil, identityConfig(Uniform(1))); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Extract(all skipped) = %v, want ErrEmptyInput", err)
	}
}

func TestExtractProjectionFailureAborts(t *testing.T) {
	trees := []feature.Tree{{Species: "malus", Point: orb.Point{300, 95}}}
	cfg := Config{Projector: failingProjector{}, Margins: Uniform(1)}

	if _, err := Extract(trees, nil, cfg); !errors.Is(err, geo.ErrOutOfDomain) {
		t.Errorf("Extract = %v, want ErrOutOfDomain", err)
	}
}

func TestExtractBasePolygons(t *testing.T) {
	trees := []feature.Tree{
		{Species: "malus", Point: orb.Point{0, 0}, Width: 4, HasWidth: true},
		{Species: "malus", Point: orb.Point{100, 100}, Width: 4, HasWidth: true},
	}
	base := []feature.BasePolygon{
		{Type: feature.BaseTypePath, ZIndex: 5, Ring: orb.Ring{{10, 10}, {20, 10}, {20, 20}, {10, 10}}},
		{Type: feature.BaseTypeWater, ZIndex: 1, Ring: orb.Ring{{30, 30}, {40, 30}, {40, 40}}},
		{Type: feature.BaseTypeGrass, ZIndex: 3, Ring: orb.Ring{{50, 50}, {60, 50}, {50, 50}}}, // degenerate
	}

	sc, err := Extract(trees, base, identityConfig(Uniform(0)))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if sc.SkippedBase != 1 {
		t.Errorf("skipped base = %d, want 1", sc.SkippedBase)
	}
	if len(sc.Base) != 2 {
		t.Fatalf("base polygons = %d, want 2", len(sc.Base))
	}

	// Ascending z-index: water (1) before path (5).
	if sc.Base[0].Type != feature.BaseTypeWater || sc.Base[1].Type != feature.BaseTypePath {
		t.Errorf("z order = [%v %v], want [water path]", sc.Base[0].Type, sc.Base[1].Type)
	}

	// Closing point dropped, three distinct vertices kept.
	if len(sc.Base[1].Ring) != 3 {
		t.Errorf("path ring length = %d, want 3", len(sc.Base[1].Ring))
	}
}

func TestExtractZeroExtent(t *testing.T) {
	coincident := []feature.Tree{
		{Species: "malus", Point: orb.Point{10, 20}},
		{Species: "malus", Point: orb.Point{10, 20}},
	}

	tests := []struct {
		name  string
		trees []feature.Tree
	}{
		{"single tree without margins", coincident[:1]},
		{"coincident trees without margins", coincident},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := Extract(tt.trees, nil, identityConfig(Margins{}))
			if !errors.Is(err, geo.ErrOutOfDomain) {
				t.Fatalf("Extract = %v, want ErrOutOfDomain", err)
			}
			if sc != nil {
				t.Error("expected no scene for a zero-extent bounding box")
			}
		})
	}
}

func TestExtractSingleTreeWithMargins(t *testing.T) {
	trees := []feature.Tree{{Species: "malus", Point: orb.Point{10, 20}}}

	sc, err := Extract(trees, nil, identityConfig(Uniform(5)))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	// Margins alone give both axes a 10 meter range.
	if !almostEqual(sc.Transform.ScaleFactor, 0.1) {
		t.Errorf("scale factor = %v, want 0.1", sc.Transform.ScaleFactor)
	}

	p := sc.Trees[0].Pos
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(sc.Trees[0].Radius, 0) {
		t.Fatalf("degenerate geometry: pos = %+v, radius = %v", p, sc.Trees[0].Radius)
	}
	if !almostEqual(p.X, 0.5) || !almostEqual(p.Y, 0.5) {
		t.Errorf("canvas position = %+v, want (0.5, 0.5)", p)
	}
}
