package focus

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/frame"
	"github.com/goodmattg/ultrasound-frames/internal/morph"
)

// ErrSelectionOutsideFrame is returned when a selection does not fit inside
// the frame it is applied to.
var ErrSelectionOutsideFrame = errors.New("selection outside frame")

// ErrEmptyFocus is returned when the inward crop margin leaves no pixels.
var ErrEmptyFocus = errors.New("focus region empty after margin")

func init() {
	fault.RegisterFrameSentinel(ErrSelectionOutsideFrame)
	fault.RegisterFrameSentinel(ErrEmptyFocus)
}

// ScanBounds is a scan window rectangle in the coordinates of the full frame.
type ScanBounds = morph.Rect

// Selection restricts the scan window search to a sub-region of the frame.
type Selection struct {
	Rows morph.Span `yaml:"rows" json:"rows"`
	Cols morph.Span `yaml:"cols" json:"cols"`
}

// DefaultSelection skips the top 70 rows and left 90 columns, where the
// device draws its overlays.
func DefaultSelection() Selection {
	return Selection{Rows: morph.Span{Start: 70}, Cols: morph.Span{Start: 90}}
}

// Validate rejects selections that are invalid for every frame.
func (s Selection) Validate() error {
	if err := s.Rows.Validate("selection rows"); err != nil {
		return err
	}
	return s.Cols.Validate("selection cols")
}

// rect resolves the selection against bounds.
func (s Selection) rect(bounds image.Rectangle) (image.Rectangle, error) {
	y0, y1, ok := s.Rows.Resolve(bounds.Dy())
	if !ok {
		return image.Rectangle{}, fmt.Errorf("%w: rows %d..%d, frame height %d", ErrSelectionOutsideFrame, s.Rows.Start, s.Rows.End, bounds.Dy())
	}
	x0, x1, ok := s.Cols.Resolve(bounds.Dx())
	if !ok {
		return image.Rectangle{}, fmt.Errorf("%w: cols %d..%d, frame width %d", ErrSelectionOutsideFrame, s.Cols.Start, s.Cols.End, bounds.Dx())
	}
	return image.Rect(x0, y0, x1, y1).Add(bounds.Min), nil
}

// Remap translates bounds found in a selection back into frame coordinates.
func Remap(local morph.Rect, rowStart, colStart int) ScanBounds {
	return local.Translate(colStart, rowStart)
}

// ScanWindowConfig tunes the scan window locator.
type ScanWindowConfig struct {
	// CenterFraction is the share of each dimension, centred, that is dilated
	// before the contour search.
	CenterFraction float64 `yaml:"center_fraction" json:"center_fraction"`
	CenterDilation morph.Kernel `yaml:"center_dilation" json:"center_dilation"`
	// LowBound raises the Otsu cut to at least this level.
	LowBound  uint8           `yaml:"low_bound" json:"low_bound"`
	Curvature CurvatureConfig `yaml:"curvature" json:"curvature"`
}

// DefaultScanWindowConfig returns the settings tuned on the source dataset.
func DefaultScanWindowConfig() ScanWindowConfig {
	return ScanWindowConfig{
		CenterFraction: 0.966667,
		CenterDilation: morph.Square(8),
		Curvature:      DefaultCurvatureConfig(),
	}
}

// Validate rejects configurations that fail every frame.
func (c ScanWindowConfig) Validate() error {
	if math.IsNaN(c.CenterFraction) || c.CenterFraction < 0 || c.CenterFraction > 1 {
		return fault.Misconfigured("center fraction %v outside [0, 1]", c.CenterFraction)
	}
	if err := c.CenterDilation.Validate(); err != nil {
		return err
	}
	return c.Curvature.Validate()
}

// ScanWindowLocator finds the live scan region of a grayscale frame.
type ScanWindowLocator struct {
	cfg       ScanWindowConfig
	curvature *CurvatureSuppressor
}

// NewScanWindowLocator validates cfg.
func NewScanWindowLocator(cfg ScanWindowConfig) (*ScanWindowLocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	curvature, err := NewCurvatureSuppressor(cfg.Curvature)
	if err != nil {
		return nil, err
	}
	return &ScanWindowLocator{cfg: cfg, curvature: curvature}, nil
}

// centerRect returns the centred region covering fraction of a w×h mask.
func centerRect(w, h int, fraction float64) morph.Rect {
	mx := int(math.Round(float64(w) * (1 - fraction) / 2))
	my := int(math.Round(float64(h) * (1 - fraction) / 2))
	return morph.Rect{X: mx, Y: my, W: w - 2*mx, H: h - 2*my}
}

// Locate finds the scan window of img, searching only inside sel when it is
// non-nil.
//
// Parameters:
//   - img: A grayscale frame.
//   - sel: Optional rows and columns to search. Pass DefaultSelection() to skip
//     the overlay bars, or nil to search the whole frame.
//
// Returns:
//   - *image.Gray: The scan window with the curvature line trimmed off, origin
//     at (0, 0).
//   - ScanBounds: The window in img's coordinates. Height comes from the first
//     contour pass and width from the curvature pass.
//   - error: ErrSelectionOutsideFrame when sel does not fit img,
//     morph.ErrNoContour when no region is found, or a misconfiguration error
//     for an invalid selection.
//
// # Algorithm
//
// The searched area is thresholded at max(Otsu, LowBound). The centred
// CenterFraction of the mask is dilated with CenterDilation so that the scan
// region closes into one component while the frame edges stay untouched. The
// bounding rectangle of the largest external contour is the window, which is
// then passed to the CurvatureSuppressor to find its horizontal extent.
func (l *ScanWindowLocator) Locate(img *image.Gray, sel *Selection) (*image.Gray, ScanBounds, error) {
	area := img.Bounds()
	if sel != nil {
		if err := sel.Validate(); err != nil {
			return nil, ScanBounds{}, err
		}
		r, err := sel.rect(img.Bounds())
		if err != nil {
			return nil, ScanBounds{}, err
		}
		area = r
	}
	rowStart, colStart := area.Min.Y-img.Rect.Min.Y, area.Min.X-img.Rect.Min.X
	work := frame.CropGray(img, area)

	mask, err := morph.Threshold(work, l.cfg.LowBound)
	if err != nil {
		return nil, ScanBounds{}, err
	}
	center := centerRect(mask.Width, mask.Height, l.cfg.CenterFraction)
	if !center.Empty() {
		dilated, err := morph.Dilate(mask.Sub(center), l.cfg.CenterDilation)
		if err != nil {
			return nil, ScanBounds{}, err
		}
		mask.Paste(center, dilated)
	}

	outer, err := morph.LargestBounds(mask)
	if err != nil {
		return nil, ScanBounds{}, fmt.Errorf("scan window: %w", err)
	}
	window := frame.CropGray(work, outer.Image())

	xs, ws, err := l.curvature.HorizontalExtent(window)
	if err != nil {
		return nil, ScanBounds{}, fmt.Errorf("curvature line: %w", err)
	}
	keep := min(xs+ws, window.Rect.Dx())
	window = frame.CropGray(window, image.Rect(0, 0, keep, window.Rect.Dy()))

	local := morph.Rect{X: outer.X, Y: outer.Y, W: ws, H: outer.H}
	return window, Remap(local, rowStart, colStart), nil
}
