package focus

import (
	"image"

	"github.com/rs/zerolog"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/frame"
	"github.com/goodmattg/ultrasound-frames/internal/morph"
)

// GrayscaleConfig configures scan window extraction from grayscale frames.
type GrayscaleConfig struct {
	Window    ScanWindowConfig `yaml:"window" json:"window"`
	Selection Selection        `yaml:"selection" json:"selection"`
	// CropMargin is removed from every side of the scan window before saving.
	CropMargin int      `yaml:"crop_margin" json:"crop_margin"`
	Resample   Resample `yaml:"resample" json:"resample"`
}

// DefaultGrayscaleConfig returns the default selection and no margin or rescale.
func DefaultGrayscaleConfig() GrayscaleConfig {
	return GrayscaleConfig{
		Window:    DefaultScanWindowConfig(),
		Selection: DefaultSelection(),
	}
}

// Validate rejects configurations that fail every frame.
func (c GrayscaleConfig) Validate() error {
	if err := c.Window.Validate(); err != nil {
		return err
	}
	if err := c.Selection.Validate(); err != nil {
		return err
	}
	if c.CropMargin < 0 {
		return fault.Misconfigured("crop margin %d is negative", c.CropMargin)
	}
	return c.Resample.Validate()
}

// GrayscaleFocus extracts and saves the scan window of grayscale frames.
type GrayscaleFocus struct {
	cfg     GrayscaleConfig
	locator *ScanWindowLocator
	log     zerolog.Logger
}

// NewGrayscaleFocus validates cfg.
func NewGrayscaleFocus(cfg GrayscaleConfig, log zerolog.Logger) (*GrayscaleFocus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	locator, err := NewScanWindowLocator(cfg.Window)
	if err != nil {
		return nil, err
	}
	return &GrayscaleFocus{cfg: cfg, locator: locator, log: log}, nil
}

// Locator returns the underlying scan window locator.
func (g *GrayscaleFocus) Locator() *ScanWindowLocator {
	return g.locator
}

// Bounds locates the scan window of img inside the configured selection.
func (g *GrayscaleFocus) Bounds(img *image.Gray) (*image.Gray, ScanBounds, error) {
	sel := g.cfg.Selection
	return g.locator.Locate(img, &sel)
}

// Focus locates the scan window of img and applies the crop margin and
// rescale.
func (g *GrayscaleFocus) Focus(img *image.Gray) (image.Image, ScanBounds, error) {
	window, bounds, err := g.Bounds(img)
	if err != nil {
		return nil, ScanBounds{}, err
	}
	if g.cfg.CropMargin > 0 {
		inner := morph.RectFrom(window.Rect).Inset(g.cfg.CropMargin)
		if inner.Empty() {
			return nil, ScanBounds{}, ErrEmptyFocus
		}
		window = frame.CropGray(window, inner.Image())
	}
	out, err := g.cfg.Resample.Apply(window)
	if err != nil {
		return nil, ScanBounds{}, err
	}
	return out, bounds, nil
}

// Extract loads the frame at path, extracts its scan window and saves it to
// outDir. It returns the saved path.
func (g *GrayscaleFocus) Extract(path, outDir string) (string, error) {
	img, err := frame.OpenGray(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	return g.ExtractFrom(path, img, outDir)
}

// ExtractFrom is Extract for a frame that is already decoded. path only
// labels errors and log events.
func (g *GrayscaleFocus) ExtractFrom(path string, img *image.Gray, outDir string) (string, error) {
	focus, bounds, err := g.Focus(img)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	out, err := save(focus, outDir)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	g.log.Debug().Str("frame", path).Str("bounds", bounds.String()).Str("focus", out).Msg("saved scan window")
	return out, nil
}
