package render

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// RenderError reports that a card could not be drawn, usually because an asset failed to load
type RenderError struct {
	Op   string
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("render: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("render: %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Assets holds the template and font shared by every render.
// They are loaded once and never modified afterwards.
type Assets struct {
	template image.Image
	font     *opentype.Font
	fontSize float64
}

// LoadAssets loads the template bitmap and the font from disk
func LoadAssets(templatePath, fontPath string, fontSize float64) (*Assets, error) {
	template, err := gg.LoadImage(templatePath)
	if err != nil {
		return nil, &RenderError{Op: "load template", Path: templatePath, Err: err}
	}

	fontData, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, &RenderError{Op: "load font", Path: fontPath, Err: err}
	}

	assets, err := NewAssets(template, fontData, fontSize)
	var rerr *RenderError
	if errors.As(err, &rerr) && rerr.Path == "" {
		rerr.Path = fontPath
	}
	return assets, err
}

// NewAssets builds Assets from an already decoded template and raw TrueType/OpenType data
func NewAssets(template image.Image, fontData []byte, fontSize float64) (*Assets, error) {
	if template == nil {
		return nil, &RenderError{Op: "load template", Err: fmt.Errorf("template is nil")}
	}
	if fontSize <= 0 {
		return nil, &RenderError{Op: "load font", Err: fmt.Errorf("font size must be positive, got %g", fontSize)}
	}

	f, err := opentype.Parse(fontData)
	if err != nil {
		return nil, &RenderError{Op: "load font", Err: err}
	}

	return &Assets{
		template: template,
		font:     f,
		fontSize: fontSize,
	}, nil
}

// Template returns the template bitmap. Callers must not draw on it.
func (a *Assets) Template() image.Image {
	return a.template
}

// newFace creates a font face for one render.
// Faces keep scratch buffers and are not safe for concurrent use; the parsed font is.
func (a *Assets) newFace() (font.Face, error) {
	face, err := opentype.NewFace(a.font, &opentype.FaceOptions{
		Size:    a.fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, &RenderError{Op: "create font face", Err: err}
	}
	return face, nil
}
