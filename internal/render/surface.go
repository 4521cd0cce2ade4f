package render

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers"
)

// Format names an output surface.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
)

// ParseFormat validates a format name from configuration.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatSVG:
		return FormatSVG, nil
	case FormatPDF:
		return FormatPDF, nil
	case FormatPNG:
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want svg, pdf, or png)", s)
	}
}

// FormatFromPath infers the output format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("output path %q has no extension to infer a format from", path)
	}
	return ParseFormat(ext)
}

// SurfaceError wraps a failure while producing one output file.
type SurfaceError struct {
	Path string
	Err  error
}

func (e *SurfaceError) Error() string {
	return fmt.Sprintf("surface %s: %v", e.Path, e.Err)
}

func (e *SurfaceError) Unwrap() error {
	return e.Err
}

// WriteSurface encodes the canvas to path in the given format. Vector formats
// stream straight from the canvas; PNG goes through the rasterizer with the
// given raster options.
func WriteSurface(path string, c *canvas.Canvas, format Format, raster RasterOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &SurfaceError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = &SurfaceError{Path: path, Err: cerr}
		}
	}()

	switch format {
	case FormatSVG:
		if werr := c.Write(f, renderers.SVG()); werr != nil {
			return &SurfaceError{Path: path, Err: werr}
		}
	case FormatPDF:
		if werr := c.Write(f, renderers.PDF()); werr != nil {
			return &SurfaceError{Path: path, Err: werr}
		}
	case FormatPNG:
		img, rerr := Rasterize(c, raster)
		if rerr != nil {
			return &SurfaceError{Path: path, Err: rerr}
		}
		if werr := png.Encode(f, img); werr != nil {
			return &SurfaceError{Path: path, Err: werr}
		}
	default:
		return &SurfaceError{Path: path, Err: fmt.Errorf("unsupported output format %q", format)}
	}
	return nil
}
