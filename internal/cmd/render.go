package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/boskaart/internal/archive"
	"github.com/MeKo-Tech/boskaart/internal/geo"
	"github.com/MeKo-Tech/boskaart/internal/pipeline"
	"github.com/MeKo-Tech/boskaart/internal/render"
	"github.com/MeKo-Tech/boskaart/internal/scene"
	"github.com/MeKo-Tech/boskaart/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a tree survey to a map",
	Long: `Render one survey to a map, or a directory of surveys in batch mode.

In single mode --trees and --output are required. In batch mode --batch-dir
renders every .geojson survey in the directory into --output-dir.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	// Single map flags
	renderCmd.Flags().StringP("trees", "t", "", "Tree survey GeoJSON (single map mode)")
	renderCmd.Flags().StringP("output", "o", "", "Output file; the extension picks the format unless --format is set")

	// Batch flags
	renderCmd.Flags().String("batch-dir", "", "Directory of .geojson surveys to render in batch mode")
	renderCmd.Flags().String("output-dir", "./maps", "Output directory for batch mode")
	renderCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	renderCmd.Flags().Bool("progress", true, "Show progress bar during batch rendering")
	renderCmd.Flags().Bool("allow-failures", false, "Continue batch rendering even if some maps fail")

	// Common inputs
	renderCmd.Flags().String("basemap", "", "Base map GeoJSON with background polygons")
	renderCmd.Flags().String("species", "", "Species catalog JSON filling missing crown dimensions")
	renderCmd.Flags().String("format", "", "Output format: svg, pdf, or png (overrides the file extension)")

	// Scene flags
	renderCmd.Flags().Float64("margin", 5, "Margin around the survey extent in meters")
	renderCmd.Flags().Float64("margin-left", -1, "Left margin in meters (overrides --margin)")
	renderCmd.Flags().Float64("margin-right", -1, "Right margin in meters (overrides --margin)")
	renderCmd.Flags().Float64("margin-top", -1, "Top margin in meters (overrides --margin)")
	renderCmd.Flags().Float64("margin-bottom", -1, "Bottom margin in meters (overrides --margin)")
	renderCmd.Flags().Bool("strict-dimensions", false, "Treat an explicit crown width or height of 0 as measured instead of missing")

	// Canvas flags
	renderCmd.Flags().Float64("canvas-width", 840, "Canvas width in millimeters")
	renderCmd.Flags().Float64("canvas-height", 1200, "Canvas height in millimeters")
	renderCmd.Flags().Float64("offset-x", 0, "Horizontal canvas offset in millimeters")
	renderCmd.Flags().Float64("offset-y", 0, "Vertical canvas offset in millimeters")
	renderCmd.Flags().Float64("rotation", 0, "Map rotation in degrees counter clockwise")
	renderCmd.Flags().Bool("sketch", true, "Jitter canopy circles for a hand-drawn look")
	renderCmd.Flags().Float64("sketch-amp", 0.06, "Relative amplitude of the canopy jitter")
	renderCmd.Flags().Int64("seed", 1337, "Deterministic seed for the canopy jitter and paper grain")
	renderCmd.Flags().String("font", "sans-serif", "Font family for labels and decorations")
	renderCmd.Flags().Int("scale-bar", 10, "Scale bar length in meters")

	// Raster flags (png only)
	renderCmd.Flags().Float64("dpmm", 8, "PNG resolution in dots per millimeter")
	renderCmd.Flags().Int("supersample", 2, "PNG supersampling factor (1 disables)")
	renderCmd.Flags().Bool("grain", true, "Apply paper grain to PNG output")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"render.trees", "trees"},
		{"render.output", "output"},
		{"render.batch_dir", "batch-dir"},
		{"render.output_dir", "output-dir"},
		{"render.workers", "workers"},
		{"render.progress", "progress"},
		{"render.allow_failures", "allow-failures"},
		{"render.basemap", "basemap"},
		{"render.species", "species"},
		{"render.format", "format"},
		{"render.margin", "margin"},
		{"render.margin_left", "margin-left"},
		{"render.margin_right", "margin-right"},
		{"render.margin_top", "margin-top"},
		{"render.margin_bottom", "margin-bottom"},
		{"render.strict_dimensions", "strict-dimensions"},
		{"render.canvas_width", "canvas-width"},
		{"render.canvas_height", "canvas-height"},
		{"render.offset_x", "offset-x"},
		{"render.offset_y", "offset-y"},
		{"render.rotation", "rotation"},
		{"render.sketch", "sketch"},
		{"render.sketch_amp", "sketch-amp"},
		{"render.seed", "seed"},
		{"render.font", "font"},
		{"render.scale_bar", "scale-bar"},
		{"render.dpmm", "dpmm"},
		{"render.supersample", "supersample"},
		{"render.grain", "grain"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, renderCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	treesPath := viper.GetString("render.trees")
	output := viper.GetString("render.output")
	batchDir := viper.GetString("render.batch_dir")

	format := render.Format("")
	if name := viper.GetString("render.format"); name != "" {
		var err error
		format, err = render.ParseFormat(name)
		if err != nil {
			return err
		}
	}

	cfg, err := buildPipelineConfig()
	if err != nil {
		return err
	}
	if path := viper.GetString("archive"); path != "" {
		store, err := archive.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		// Close flushes buffered runs; a failure here loses archive entries.
		defer func() {
			if cerr := store.Close(); cerr != nil {
				logger.Warn("Failed to close archive", "path", path, "error", cerr)
			}
		}()
		cfg.Archive = store
	}
	runner := pipeline.NewRunner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received interrupt signal, cancelling...")
		cancel()
	}()

	if batchDir != "" {
		return runBatchRender(ctx, runner, batchDir, format)
	}

	if treesPath == "" || output == "" {
		return fmt.Errorf("--trees and --output are required (or use --batch-dir)")
	}

	summary, err := runner.Run(ctx, pipeline.Job{
		TreesPath:   treesPath,
		BasemapPath: viper.GetString("render.basemap"),
		SpeciesPath: viper.GetString("render.species"),
		OutputPath:  output,
		Format:      format,
	})
	if err != nil {
		return fmt.Errorf("failed to render map: %w", err)
	}

	if summary.SkippedTrees > 0 {
		logger.Warn("Skipped features without species", "count", summary.SkippedTrees)
	}
	return nil
}

func runBatchRender(ctx context.Context, runner *pipeline.Runner, batchDir string, format render.Format) error {
	outputDir := viper.GetString("render.output_dir")
	workers := viper.GetInt("render.workers")
	showProgress := viper.GetBool("render.progress")
	allowFailures := viper.GetBool("render.allow_failures")

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ext := string(format)
	if ext == "" {
		ext = string(render.FormatSVG)
	}

	surveys, err := filepath.Glob(filepath.Join(batchDir, "*.geojson"))
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", batchDir, err)
	}
	if len(surveys) == 0 {
		return fmt.Errorf("no .geojson surveys found in %s", batchDir)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tasks := make([]worker.Task, 0, len(surveys))
	for _, survey := range surveys {
		name := strings.TrimSuffix(filepath.Base(survey), filepath.Ext(survey))
		tasks = append(tasks, worker.Task{Job: pipeline.Job{
			TreesPath:   survey,
			BasemapPath: viper.GetString("render.basemap"),
			SpeciesPath: viper.GetString("render.species"),
			OutputPath:  filepath.Join(outputDir, name+"."+ext),
			Format:      format,
		}})
	}

	logger.Info("Starting batch rendering",
		"surveys", len(tasks),
		"workers", workers,
		"output_dir", outputDir,
	)

	progress := worker.NewProgress(len(tasks), showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Runner:     runner,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Map rendering failed", "survey", r.Task.Job.TreesPath, "error", r.Err)
		}
	}

	logger.Info(progress.Summary())

	if failedCount > 0 {
		if allowFailures {
			logger.Warn("Some maps failed to render, but continuing due to --allow-failures flag", "failed_count", failedCount)
			return nil
		}
		return fmt.Errorf("%d maps failed to render", failedCount)
	}
	return nil
}

func buildPipelineConfig() (pipeline.Config, error) {
	margins, err := buildMargins()
	if err != nil {
		return pipeline.Config{}, err
	}

	policy := scene.FallbackZeroOrMissing
	if viper.GetBool("render.strict_dimensions") {
		policy = scene.FallbackMissingOnly
	}

	opts := render.DefaultOptions()
	opts.Width = viper.GetFloat64("render.canvas_width")
	opts.Height = viper.GetFloat64("render.canvas_height")
	opts.OffsetX = viper.GetFloat64("render.offset_x")
	opts.OffsetY = viper.GetFloat64("render.offset_y")
	opts.Rotation = viper.GetFloat64("render.rotation")
	opts.Sketch = viper.GetBool("render.sketch")
	opts.SketchAmp = viper.GetFloat64("render.sketch_amp")
	opts.Seed = viper.GetInt64("render.seed")
	opts.FontName = viper.GetString("render.font")
	opts.ScaleBarM = viper.GetInt("render.scale_bar")

	raster := render.RasterOptions{
		DPMM:        viper.GetFloat64("render.dpmm"),
		Supersample: viper.GetInt("render.supersample"),
	}
	if viper.GetBool("render.grain") {
		grain := render.DefaultGrain()
		grain.Seed = opts.Seed
		raster.Grain = &grain
	}

	return pipeline.Config{
		Scene: scene.Config{
			Projector: geo.NewWebMercator(),
			Margins:   margins,
			Policy:    policy,
		},
		Render: opts,
		Raster: raster,
		Logger: logger,
	}, nil
}

func buildMargins() (scene.Margins, error) {
	uniform := viper.GetFloat64("render.margin")
	if uniform < 0 {
		return scene.Margins{}, fmt.Errorf("--margin must be non-negative, got %g", uniform)
	}
	margins := scene.Uniform(uniform)

	sides := []struct {
		key  string
		dest *float64
	}{
		{"render.margin_left", &margins.Left},
		{"render.margin_right", &margins.Right},
		{"render.margin_top", &margins.Top},
		{"render.margin_bottom", &margins.Bottom},
	}
	for _, side := range sides {
		if v := viper.GetFloat64(side.key); v >= 0 {
			*side.dest = v
		}
	}
	return margins, nil
}
