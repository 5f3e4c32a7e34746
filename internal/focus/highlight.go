package focus

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/frame"
	"github.com/goodmattg/ultrasound-frames/internal/morph"
)

// HighlightConfig configures highlight-box extraction from color frames.
type HighlightConfig struct {
	// Band is the HSV range of the highlight rectangle's border.
	Band frame.HSVBand `yaml:"band" json:"band"`
	// CropMargin is removed from every side of the interior so no border
	// pixels survive.
	CropMargin int      `yaml:"crop_margin" json:"crop_margin"`
	Resample   Resample `yaml:"resample" json:"resample"`
}

// DefaultHighlightConfig returns the cyan-green border band of the source
// device and a 3 pixel margin.
func DefaultHighlightConfig() HighlightConfig {
	return HighlightConfig{
		Band: frame.HSVBand{
			Lower: frame.HSV{H: 60, S: 50, V: 50},
			Upper: frame.HSV{H: 100, S: 255, V: 255},
		},
		CropMargin: 3,
	}
}

// Validate rejects configurations that fail every frame.
func (c HighlightConfig) Validate() error {
	if err := c.Band.Validate(); err != nil {
		return err
	}
	if c.CropMargin < 0 {
		return fault.Misconfigured("crop margin %d is negative", c.CropMargin)
	}
	return c.Resample.Validate()
}

// HighlightLocator finds the region a color frame outlines with its highlight
// rectangle.
type HighlightLocator struct {
	cfg HighlightConfig
	log zerolog.Logger
}

// NewHighlightLocator validates cfg.
func NewHighlightLocator(cfg HighlightConfig, log zerolog.Logger) (*HighlightLocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HighlightLocator{cfg: cfg, log: log}, nil
}

// Regions returns the outer border rectangle in img's coordinates and the
// margin-shrunk interior relative to the outer rectangle.
//
// Returns:
//   - outer: Bounding rectangle of the largest region inside Band, the
//     highlight border the device draws.
//   - inner: The largest out-of-band region inside outer, shrunk by
//     CropMargin on every side, relative to outer's top-left corner.
//   - err: morph.ErrNoContour when no border or interior is found, or
//     ErrEmptyFocus when the margin consumes the interior.
//
// Callers translate inner by outer's origin to crop the focus from img.
func (h *HighlightLocator) Regions(img image.Image) (outer, inner morph.Rect, err error) {
	border, err := frame.InRange(img, h.cfg.Band)
	if err != nil {
		return morph.Rect{}, morph.Rect{}, err
	}
	outer, err = morph.LargestBounds(border)
	if err != nil {
		return morph.Rect{}, morph.Rect{}, fmt.Errorf("highlight border: %w", err)
	}
	box := imaging.Crop(img, outer.Image().Add(img.Bounds().Min))

	boxBorder, err := frame.InRange(box, h.cfg.Band)
	if err != nil {
		return morph.Rect{}, morph.Rect{}, err
	}
	content, err := morph.LargestBounds(morph.Invert(boxBorder))
	if err != nil {
		return morph.Rect{}, morph.Rect{}, fmt.Errorf("highlight interior: %w", err)
	}
	inner = content.Inset(h.cfg.CropMargin)
	if inner.Empty() {
		return morph.Rect{}, morph.Rect{}, fmt.Errorf("%w: interior %v, margin %d", ErrEmptyFocus, content, h.cfg.CropMargin)
	}
	return outer, inner, nil
}

// Locate returns the content of the highlight rectangle, without its border,
// before any rescale.
func (h *HighlightLocator) Locate(img image.Image) (image.Image, error) {
	outer, inner, err := h.Regions(img)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, inner.Translate(outer.X, outer.Y).Image().Add(img.Bounds().Min)), nil
}

// Extract loads the color frame at path, locates its highlighted region,
// rescales it and saves it to outDir. It returns the saved path.
func (h *HighlightLocator) Extract(path, outDir string) (string, error) {
	img, err := frame.Open(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	return h.ExtractFrom(path, img, outDir)
}

// ExtractFrom is Extract for a frame that is already decoded. path only
// labels errors and log events.
func (h *HighlightLocator) ExtractFrom(path string, img image.Image, outDir string) (string, error) {
	out, err := h.extract(img, outDir)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	h.log.Debug().Str("frame", path).Str("focus", out).Msg("saved highlight region")
	return out, nil
}

func (h *HighlightLocator) extract(img image.Image, outDir string) (string, error) {
	focus, err := h.Locate(img)
	if err != nil {
		return "", err
	}
	if focus, err = h.cfg.Resample.Apply(focus); err != nil {
		return "", err
	}
	return save(focus, outDir)
}
