// Package render draws an extracted scene onto a vector canvas in a fixed
// back-to-front order: base polygons, canopy outlines, canopy fills, the
// overlay, labels, and the map decorations.
package render

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/boskaart/internal/feature"
	"github.com/MeKo-Tech/boskaart/internal/scene"
	"github.com/MeKo-Tech/boskaart/internal/style"
	"github.com/aquilax/go-perlin"
	"github.com/tdewolff/canvas"
)

const ptPerMm = 72.0 / 25.4

// radiusEpsilon widens the species radius range so the blend denominator is
// never zero.
const radiusEpsilon = 0.01

// Options parameterize one renderer. Margins, translation, rotation, and the
// decoration anchors are injected configuration rather than constants so one
// renderer serves every map variant.
type Options struct {
	Width  float64 // canvas width in canvas units
	Height float64 // canvas height in canvas units

	// Global transform, applied once before drawing: translate then rotate.
	OffsetX  float64
	OffsetY  float64
	Rotation float64 // degrees counter clockwise

	// Hand-drawn canopy jitter.
	Sketch    bool
	SketchAmp float64
	Seed      int64

	// Decoration anchors in canvas units.
	CompassX  float64
	CompassY  float64
	ScaleBarX float64
	ScaleBarY float64
	ScaleBarM int // scale bar length in meters
	FontName  string
}

// DefaultOptions returns the reference map setup: an 840x1200 canvas with
// the compass top left and the scale bar along the bottom edge.
func DefaultOptions() Options {
	return Options{
		Width:     840,
		Height:    1200,
		Sketch:    true,
		SketchAmp: 0.06,
		Seed:      1337,
		CompassX:  70,
		CompassY:  1120,
		ScaleBarX: 60,
		ScaleBarY: 50,
		ScaleBarM: 10,
		FontName:  "sans-serif",
	}
}

// Stats reports the non-fatal skips of one render pass.
type Stats struct {
	UnstyledBase int
}

// Renderer draws scenes. It owns no surface between calls; each Render call
// produces a fresh canvas.
type Renderer struct {
	opts   Options
	logger *slog.Logger
	family *canvas.FontFamily
	noise  *perlin.Perlin
}

// New creates a renderer and loads the label font.
func New(opts Options, logger *slog.Logger) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("canvas size must be positive, got %gx%g", opts.Width, opts.Height)
	}
	if opts.FontName == "" {
		opts.FontName = "sans-serif"
	}
	if opts.ScaleBarM <= 0 {
		opts.ScaleBarM = 10
	}

	family := canvas.NewFontFamily("label")
	if err := family.LoadSystemFont(opts.FontName, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("failed to load font %q: %w", opts.FontName, err)
	}

	return &Renderer{
		opts:   opts,
		logger: logger,
		family: family,
		noise:  newSketchNoise(opts.Seed),
	}, nil
}

// frame is the immutable scene-to-canvas mapping for one render call: the
// unit-square scale plus the global translate+rotate, built once and applied
// to every coordinate.
type frame struct {
	view     canvas.Matrix
	unit     float64
	rotation float64
}

func newFrame(o Options) frame {
	return frame{
		view:     canvas.Identity.Translate(o.OffsetX, o.OffsetY).Rotate(o.Rotation),
		unit:     math.Min(o.Width, o.Height),
		rotation: o.Rotation,
	}
}

func (f frame) at(p scene.Point) canvas.Point {
	return f.view.Dot(canvas.Point{X: p.X * f.unit, Y: p.Y * f.unit})
}

func (f frame) length(v float64) float64 {
	return v * f.unit
}

// north is the device-space direction of increasing latitude. Canvas x
// follows northing, so north is the rotated +x axis.
func (f frame) north() canvas.Point {
	rad := f.rotation * math.Pi / 180.0
	return canvas.Point{X: math.Cos(rad), Y: math.Sin(rad)}
}

// Render draws the scene in fixed z-order and returns the finished canvas.
// Every pass runs unconditionally; a pass over an empty set draws nothing.
func (r *Renderer) Render(sc *scene.Scene) (*canvas.Canvas, Stats, error) {
	r.log().Info("Rendering scene",
		"trees", len(sc.Trees),
		"species", len(sc.Species),
		"base_polygons", len(sc.Base),
	)

	c := canvas.New(r.opts.Width, r.opts.Height)
	ctx := canvas.NewContext(c)
	f := newFrame(r.opts)

	r.drawBackground(ctx)
	stats := Stats{UnstyledBase: r.drawBase(ctx, f, sc)}
	r.drawOutlines(ctx, f, sc)
	r.drawFills(ctx, f, sc)
	r.drawOverlay(ctx, f, sc)
	r.drawLabels(ctx, f, sc)
	r.drawCompass(ctx, f)
	r.drawScaleBar(ctx, f, sc.Transform)

	return c, stats, nil
}

func (r *Renderer) drawBackground(ctx *canvas.Context) {
	ctx.Push()
	ctx.SetFillColor(canvas.White)
	ctx.DrawPath(0, 0, canvas.Rectangle(r.opts.Width, r.opts.Height))
	ctx.Pop()
}

// drawBase paints base polygons in ascending z-index order. Unstyled types
// are skipped and reported once; the base-map vocabulary evolves
// independently of the renderer, so this is steady state, not an error.
func (r *Renderer) drawBase(ctx *canvas.Context, f frame, sc *scene.Scene) int {
	skipped := 0
	var unknownTypes []string
	seenUnknown := map[feature.BaseType]bool{}

	ctx.Push()
	for _, poly := range sc.Base {
		st, ok := style.Lookup(poly.Type)
		if !ok {
			skipped++
			if !seenUnknown[poly.Type] {
				seenUnknown[poly.Type] = true
				unknownTypes = append(unknownTypes, string(poly.Type))
			}
			continue
		}

		if st.HasFill {
			ctx.SetFillColor(st.Fill)
		} else {
			ctx.SetFillColor(canvas.Transparent)
		}
		if st.HasStroke {
			ctx.SetStrokeColor(st.Stroke)
			ctx.SetStrokeWidth(f.length(st.StrokeWidth * sc.Transform.ScaleFactor))
		} else {
			ctx.SetStrokeColor(canvas.Transparent)
		}

		ctx.DrawPath(0, 0, polygonPath(f, poly.Ring))
	}
	ctx.Pop()

	if skipped > 0 {
		r.log().Warn("Skipped base features without style",
			"count", skipped,
			"types", unknownTypes,
		)
	}
	return skipped
}

// drawOutlines strokes a canopy circle for every identified tree. The
// unknown-species sentinel gets no outline.
func (r *Renderer) drawOutlines(ctx *canvas.Context, f frame, sc *scene.Scene) {
	scale := sc.Transform.ScaleFactor

	ctx.Push()
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeWidth(f.length(scale / 5))
	for _, tree := range sc.Trees {
		if tree.Species == feature.UnknownSpecies {
			continue
		}
		ctx.SetStrokeColor(outlineColor(tree))
		ctx.DrawPath(0, 0, r.canopyPath(f, tree, tree.Radius))
	}
	ctx.Pop()
}

// drawFills paints canopies grouped by species, shortest species first so
// taller canopies overlap them. The fill is blended toward white by the
// tree's radius position within the species radius range: larger canopies
// render lighter, a perceptual depth cue.
func (r *Renderer) drawFills(ctx *canvas.Context, f frame, sc *scene.Scene) {
	if len(sc.Species) == 0 {
		return
	}

	scale := sc.Transform.ScaleFactor
	minR, maxR := speciesRadiusRange(sc.Species)

	ctx.Push()
	ctx.SetStrokeColor(canvas.Transparent)
	for _, sp := range sc.Species {
		for _, tree := range sc.Trees {
			if tree.Species != sp.Name {
				continue
			}

			percent := fillPercent(tree.Radius, minR, maxR)
			ctx.SetFillColor(BlendTowardWhite(fillColor(tree), percent))

			// Inset so the outline stroke stays visible around the fill.
			inset := tree.Radius - scale/20
			if inset <= 0 {
				inset = tree.Radius / 2
			}
			ctx.DrawPath(0, 0, r.canopyPath(f, tree, inset))
		}
	}
	ctx.Pop()
}

// drawOverlay adds the dashed ring and center dot on top of every canopy.
func (r *Renderer) drawOverlay(ctx *canvas.Context, f frame, sc *scene.Scene) {
	scale := sc.Transform.ScaleFactor
	dotInk := color.RGBA{R: 0, G: 0, B: 0, A: 153}

	for _, tree := range sc.Trees {
		pos := f.at(tree.Pos)

		ctx.Push()
		ctx.SetFillColor(canvas.Transparent)
		ctx.SetStrokeColor(outlineColor(tree))
		ctx.SetStrokeWidth(f.length(scale / 10))
		ctx.SetDashes(0, f.length(scale/3))
		ctx.DrawPath(0, 0, r.canopyPath(f, tree, tree.Radius))
		ctx.Pop()

		ctx.Push()
		ctx.SetFillColor(dotInk)
		dot := math.Max(tree.Radius/14, 0.001)
		ctx.DrawPath(pos.X, pos.Y, canvas.Circle(f.length(dot)))
		ctx.Pop()
	}
}

// drawLabels writes each tree's display name centered on its position. Font
// size and ink darkness follow the tree's height percentile; the anchor is
// computed through the global transform but the glyphs are never rotated, so
// labels read upright regardless of map orientation.
func (r *Renderer) drawLabels(ctx *canvas.Context, f frame, sc *scene.Scene) {
	if len(sc.Trees) == 0 {
		return
	}

	scale := sc.Transform.ScaleFactor
	minH, maxH := treeHeightRange(sc.Trees)

	for _, tree := range sc.Trees {
		pct := clamp01((tree.Height - minH) / (maxH - minH + radiusEpsilon*scale))

		ink := BlendTowardWhite(style.LabelInk, (1.0-pct)*0.65)
		if tree.Species == feature.UnknownSpecies {
			ink = BlendTowardWhite(style.LabelInk, 0.75)
		}

		sizeMm := f.length(scale * (1.4 + 2.2*pct))
		face := r.family.Face(sizeMm*ptPerMm, ink, canvas.FontRegular, canvas.FontNormal)

		pos := f.at(tree.Pos)
		ctx.DrawText(pos.X, pos.Y, canvas.NewTextLine(face, tree.Label, canvas.Center))
	}
}

// drawCompass draws an arrow toward true north with an upright "N" glyph at
// its tip.
func (r *Renderer) drawCompass(ctx *canvas.Context, f frame) {
	const armLength = 18.0

	dir := f.north()
	cx, cy := r.opts.CompassX, r.opts.CompassY
	tailX, tailY := cx-dir.X*armLength/2, cy-dir.Y*armLength/2
	tipX, tipY := cx+dir.X*armLength/2, cy+dir.Y*armLength/2

	ctx.Push()
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(style.DecorationInk)
	ctx.SetStrokeWidth(0.8)

	ctx.MoveTo(tailX, tailY)
	ctx.LineTo(tipX, tipY)
	ctx.Stroke()

	// Arrowhead: two barbs swept back from the tip.
	for _, sweep := range []float64{150, -150} {
		rad := (f.rotation + sweep) * math.Pi / 180.0
		ctx.MoveTo(tipX, tipY)
		ctx.LineTo(tipX+4.5*math.Cos(rad), tipY+4.5*math.Sin(rad))
		ctx.Stroke()
	}
	ctx.Pop()

	face := r.family.Face(5.0*ptPerMm, style.DecorationInk, canvas.FontRegular, canvas.FontNormal)
	ctx.DrawText(tipX+dir.X*5, tipY+dir.Y*5, canvas.NewTextLine(face, "N", canvas.Center))
}

// drawScaleBar rules a horizontal bar of ScaleBarM meters with a tick per
// meter and a length label. It is drawn in canvas space, unaffected by the
// map rotation.
func (r *Renderer) drawScaleBar(ctx *canvas.Context, f frame, t scene.Transform) {
	x, y := r.opts.ScaleBarX, r.opts.ScaleBarY
	meter := f.length(t.ScaleFactor)
	total := meter * float64(r.opts.ScaleBarM)

	ctx.Push()
	ctx.SetFillColor(canvas.Transparent)
	ctx.SetStrokeColor(style.DecorationInk)
	ctx.SetStrokeWidth(0.5)

	ctx.MoveTo(x, y)
	ctx.LineTo(x+total, y)
	ctx.Stroke()

	for i := 0; i <= r.opts.ScaleBarM; i++ {
		tick := 1.5
		if i == 0 || i == r.opts.ScaleBarM {
			tick = 2.5
		}
		tx := x + float64(i)*meter
		ctx.MoveTo(tx, y)
		ctx.LineTo(tx, y+tick)
		ctx.Stroke()
	}
	ctx.Pop()

	face := r.family.Face(4.0*ptPerMm, style.DecorationInk, canvas.FontRegular, canvas.FontNormal)
	ctx.DrawText(x+total/2, y-6, canvas.NewTextLine(face, fmt.Sprintf("%d m", r.opts.ScaleBarM), canvas.Center))
}

// canopyPath returns the canopy ring for a tree in canvas coordinates,
// jittered when sketch mode is on.
func (r *Renderer) canopyPath(f frame, tree scene.Tree, radius float64) *canvas.Path {
	pos := f.at(tree.Pos)
	if !r.opts.Sketch || r.opts.SketchAmp <= 0 {
		return canvas.Circle(f.length(radius)).Translate(pos.X, pos.Y)
	}
	phase := tree.Pos.X*7.31 + tree.Pos.Y*3.97
	return ringPath(sketchRing(r.noise, pos.X, pos.Y, f.length(radius), r.opts.SketchAmp, phase))
}

func (r *Renderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

func polygonPath(f frame, ring []scene.Point) *canvas.Path {
	points := make([]canvas.Point, len(ring))
	for i, p := range ring {
		points[i] = f.at(p)
	}
	return ringPath(points)
}

func outlineColor(tree scene.Tree) color.RGBA {
	if tree.Dead {
		return style.DeadOutline
	}
	return style.CanopyOutline
}

func fillColor(tree scene.Tree) color.RGBA {
	if tree.Dead {
		return style.DeadFill
	}
	return style.CanopyFill
}

// fillPercent positions a tree's radius within the species-level radius
// range, not the per-tree set. The epsilon keeps the denominator positive
// when every species shares one radius; the result is clamped so a tree
// outside its species' summary range still blends sensibly.
func fillPercent(radius, minRadius, maxRadius float64) float64 {
	return clamp01((radius - minRadius) / (maxRadius - minRadius + radiusEpsilon))
}

func speciesRadiusRange(species []scene.Species) (float64, float64) {
	minR, maxR := species[0].Radius, species[0].Radius
	for _, sp := range species[1:] {
		if sp.Radius < minR {
			minR = sp.Radius
		}
		if sp.Radius > maxR {
			maxR = sp.Radius
		}
	}
	return minR, maxR
}

func treeHeightRange(trees []scene.Tree) (float64, float64) {
	minH, maxH := trees[0].Height, trees[0].Height
	for _, tree := range trees[1:] {
		if tree.Height < minH {
			minH = tree.Height
		}
		if tree.Height > maxH {
			maxH = tree.Height
		}
	}
	return minH, maxH
}
