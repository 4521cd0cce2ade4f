// Package pipeline orchestrates one map render end to end: load the survey
// and base map, extract the scene, draw it, and write the output surface.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/boskaart/internal/archive"
	"github.com/MeKo-Tech/boskaart/internal/feature"
	"github.com/MeKo-Tech/boskaart/internal/render"
	"github.com/MeKo-Tech/boskaart/internal/scene"
)

// Job describes one map to produce.
type Job struct {
	TreesPath   string
	BasemapPath string        // optional, "" renders trees only
	SpeciesPath string        // optional species catalog to fill missing dimensions
	OutputPath  string
	Format      render.Format // "" infers the format from OutputPath
}

// Summary reports what one run produced and skipped.
type Summary struct {
	Output       string
	Format       render.Format
	Trees        int
	Species      int
	SkippedTrees int
	SkippedBase  int
	UnstyledBase int
	Elapsed      time.Duration
}

// Config assembles the pieces a Runner needs.
type Config struct {
	Scene   scene.Config
	Render  render.Options
	Raster  render.RasterOptions
	Archive *archive.Store // optional run archive
	Logger  *slog.Logger
}

// Runner renders jobs with a fixed configuration. It is safe for concurrent
// use; each Run builds its own renderer.
type Runner struct {
	cfg Config
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run produces one map. The context is checked between stages; rendering
// itself is not interruptible.
func (r *Runner) Run(ctx context.Context, job Job) (Summary, error) {
	start := time.Now()

	format := job.Format
	if format == "" {
		var err error
		format, err = render.FormatFromPath(job.OutputPath)
		if err != nil {
			return Summary{}, err
		}
	}

	source, err := os.ReadFile(job.TreesPath)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read tree survey %s: %w", job.TreesPath, err)
	}
	trees, err := feature.LoadTrees(source)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse tree survey %s: %w", job.TreesPath, err)
	}

	if job.SpeciesPath != "" {
		catalog, err := r.loadCatalog(job.SpeciesPath)
		if err != nil {
			return Summary{}, err
		}
		feature.ApplyCatalog(trees, catalog)
	}

	var base []feature.BasePolygon
	if job.BasemapPath != "" {
		base, err = r.loadBasemap(job.BasemapPath)
		if err != nil {
			return Summary{}, err
		}
	}

	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	sc, err := scene.Extract(trees, base, r.cfg.Scene)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to extract scene from %s: %w", job.TreesPath, err)
	}

	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	renderer, err := render.New(r.cfg.Render, r.cfg.Logger)
	if err != nil {
		return Summary{}, err
	}
	c, stats, err := renderer.Render(sc)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to render %s: %w", job.OutputPath, err)
	}

	if err := render.WriteSurface(job.OutputPath, c, format, r.cfg.Raster); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Output:       job.OutputPath,
		Format:       format,
		Trees:        len(sc.Trees),
		Species:      len(sc.Species),
		SkippedTrees: sc.SkippedTrees,
		SkippedBase:  sc.SkippedBase,
		UnstyledBase: stats.UnstyledBase,
		Elapsed:      time.Since(start),
	}

	if r.cfg.Archive != nil {
		err := r.cfg.Archive.Record(archive.Run{
			TreesPath: job.TreesPath,
			Output:    job.OutputPath,
			Format:    string(format),
			Trees:     summary.Trees,
			Species:   summary.Species,
			Skipped:   summary.SkippedTrees,
			Source:    source,
		})
		if err != nil {
			return summary, fmt.Errorf("failed to archive run for %s: %w", job.OutputPath, err)
		}
	}

	r.log().Info("Rendered map",
		"output", summary.Output,
		"format", summary.Format,
		"trees", summary.Trees,
		"species", summary.Species,
		"skipped_trees", summary.SkippedTrees,
		"elapsed", summary.Elapsed,
	)

	return summary, nil
}

func (r *Runner) loadCatalog(path string) (map[string]feature.SpeciesInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read species catalog %s: %w", path, err)
	}
	catalog, err := feature.LoadSpecies(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse species catalog %s: %w", path, err)
	}
	return catalog, nil
}

func (r *Runner) loadBasemap(path string) ([]feature.BasePolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read base map %s: %w", path, err)
	}
	base, dropped, err := feature.LoadBasemap(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base map %s: %w", path, err)
	}
	if dropped > 0 {
		r.log().Warn("Dropped non-polygon base features", "path", path, "count", dropped)
	}
	return base, nil
}

func (r *Runner) log() *slog.Logger {
	if r.cfg.Logger != nil {
		return r.cfg.Logger
	}
	return slog.Default()
}
