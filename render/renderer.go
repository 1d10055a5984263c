package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"tml-rank-card/models"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// IOError reports that a rendered card could not be written
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write artifact %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Options configures where and how text is drawn
type Options struct {
	OutputDir string
	AnchorX   float64 // Left edge of the text
	AnchorY   float64 // Top edge of the text
	TextColor color.Color
}

// Renderer draws text onto copies of the template
type Renderer struct {
	assets *Assets
	opts   Options
}

// NewRenderer creates a new Renderer instance
func NewRenderer(assets *Assets, opts Options) *Renderer {
	if opts.TextColor == nil {
		opts.TextColor = color.White
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	return &Renderer{
		assets: assets,
		opts:   opts,
	}
}

// Compose draws text on a copy of the template and returns the bitmap.
// Text is not wrapped or clipped; whatever falls outside the template is lost.
func (r *Renderer) Compose(text string) (image.Image, error) {
	dc, err := r.compose(text, nil)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

func (r *Renderer) compose(text string, col color.Color) (*gg.Context, error) {
	if r.assets == nil || r.assets.template == nil || r.assets.font == nil {
		return nil, &RenderError{Op: "compose", Err: fmt.Errorf("assets are not loaded")}
	}

	face, err := r.assets.newFace()
	if err != nil {
		return nil, err
	}
	defer face.Close()

	// NewContextForImage copies the template into a fresh RGBA buffer
	dc := gg.NewContextForImage(r.assets.template)
	dc.SetFontFace(face)
	if col == nil {
		col = r.opts.TextColor
	}
	dc.SetColor(col)

	// DrawString takes a baseline; shift by the ascent so the anchor is the top-left corner
	ascent := float64(face.Metrics().Ascent.Ceil())
	dc.DrawString(text, r.opts.AnchorX, r.opts.AnchorY+ascent)

	return dc, nil
}

// Render draws text and writes the card to a new file in the output directory.
// Every call gets its own file, so concurrent renders never share an output slot.
func (r *Renderer) Render(ctx context.Context, text string) (*models.Artifact, error) {
	return r.RenderColor(ctx, text, nil)
}

// RenderColor is Render with the text drawn in col; nil keeps the configured color
func (r *Renderer) RenderColor(ctx context.Context, text string, col color.Color) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dc, err := r.compose(text, col)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, &IOError{Path: r.opts.OutputDir, Err: err}
	}

	id := uuid.NewString()
	path := filepath.Join(r.opts.OutputDir, id+".png")

	if err := writePNG(dc, path); err != nil {
		return nil, err
	}

	log.Debug().Str("artifact", id).Str("path", path).Msg("Rendered card")

	return &models.Artifact{
		ID:    id,
		Path:  path,
		Image: dc.Image(),
	}, nil
}

// writePNG encodes the card to a new file and removes it again on failure
func writePNG(dc *gg.Context, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}

	if err := dc.EncodePNG(f); err != nil {
		f.Close()
		os.Remove(path)
		return &IOError{Path: path, Err: err}
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return &IOError{Path: path, Err: err}
	}
	return nil
}
