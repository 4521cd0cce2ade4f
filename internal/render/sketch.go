package render

import (
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/tdewolff/canvas"
)

// sketchSegments is the number of vertices used for a jittered canopy ring.
const sketchSegments = 48

// newSketchNoise returns the seeded noise source for hand-drawn jitter. The
// same seed yields byte-identical output across runs.
func newSketchNoise(seed int64) *perlin.Perlin {
	return perlin.NewPerlin(2.0, 2.0, 3, seed)
}

// sketchRing samples a circle of radius r around (cx, cy) and displaces each
// vertex radially by seamless noise. Sampling the noise on a circle keeps
// the ring closed without a visible seam. The phase decorrelates rings of
// neighboring trees.
func sketchRing(noise *perlin.Perlin, cx, cy, r, amp, phase float64) []canvas.Point {
	points := make([]canvas.Point, 0, sketchSegments)
	for i := 0; i < sketchSegments; i++ {
		theta := 2.0 * math.Pi * float64(i) / float64(sketchSegments)
		n := noise.Noise2D(math.Cos(theta)+phase, math.Sin(theta)+phase)
		radius := r * (1.0 + amp*n)
		points = append(points, canvas.Point{
			X: cx + radius*math.Cos(theta),
			Y: cy + radius*math.Sin(theta),
		})
	}
	return points
}

// ringPath builds a closed path through the given vertices.
func ringPath(points []canvas.Point) *canvas.Path {
	p := &canvas.Path{}
	if len(points) == 0 {
		return p
	}
	p.MoveTo(points[0].X, points[0].Y)
	for _, pt := range points[1:] {
		p.LineTo(pt.X, pt.Y)
	}
	p.Close()
	return p
}
