package focus

import (
	"image"
	"math"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/morph"
)

// CurvatureConfig tunes the curvature-line suppressor.
type CurvatureConfig struct {
	// SliceFraction is the share of the width, from the right edge, that may
	// hold the artifact line.
	SliceFraction float64 `yaml:"slice_fraction" json:"slice_fraction"`
	// SliceErosion is applied to the right slice to erase thin lines.
	SliceErosion morph.Kernel `yaml:"slice_erosion" json:"slice_erosion"`
	// RemainderDilation is applied to the rest so tissue spans the full width.
	RemainderDilation morph.Kernel `yaml:"remainder_dilation" json:"remainder_dilation"`
}

// DefaultCurvatureConfig returns a 2.5% slice, a 6x6 erosion and an 8x8 dilation.
func DefaultCurvatureConfig() CurvatureConfig {
	return CurvatureConfig{
		SliceFraction:     0.025,
		SliceErosion:      morph.Square(6),
		RemainderDilation: morph.Square(8),
	}
}

// Validate rejects configurations that fail every frame.
func (c CurvatureConfig) Validate() error {
	if math.IsNaN(c.SliceFraction) || c.SliceFraction < 0 || c.SliceFraction >= 1 {
		return fault.Misconfigured("curvature slice fraction %v outside [0, 1)", c.SliceFraction)
	}
	if err := c.SliceErosion.Validate(); err != nil {
		return err
	}
	return c.RemainderDilation.Validate()
}

// CurvatureSuppressor removes the curvature artifact line from a candidate
// scan window and reports the horizontal extent worth keeping.
type CurvatureSuppressor struct {
	cfg CurvatureConfig
}

// NewCurvatureSuppressor validates cfg.
func NewCurvatureSuppressor(cfg CurvatureConfig) (*CurvatureSuppressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CurvatureSuppressor{cfg: cfg}, nil
}

// SplitColumn returns the first column of the right slice for a window of the
// given width.
func (s *CurvatureSuppressor) SplitColumn(width int) int {
	return width - int(math.Round(float64(width)*s.cfg.SliceFraction))
}

// HorizontalExtent returns the x and width of the dominant region of window
// once the right slice has been eroded and the remainder dilated.
//
// Parameters:
//   - window: The scan window, with the origin at its top-left corner.
//
// Returns:
//   - x, w: Left edge and width of the largest external contour, in window
//     coordinates.
//   - err: morph.ErrNoContour when nothing survives the morphology, or a
//     misconfiguration error for an invalid kernel.
//
// # Slices
//
// The window is Otsu-thresholded and split at SplitColumn. The right slice
// holds the thin curvature line the device draws beside the image and is
// eroded with SliceErosion until the line disappears. The remainder is dilated
// with RemainderDilation so that speckle inside the image joins one region.
// Both slices are cut from the same mask before either is written back.
//
// The height of the resulting region is not reported: callers keep the height
// of the window they passed in.
func (s *CurvatureSuppressor) HorizontalExtent(window *image.Gray) (x, w int, err error) {
	mask, err := morph.Threshold(window, 0)
	if err != nil {
		return 0, 0, err
	}

	split := s.SplitColumn(mask.Width)
	target := morph.Rect{X: split, W: mask.Width - split, H: mask.Height}
	remainder := morph.Rect{W: split, H: mask.Height}

	eroded, err := morph.Erode(mask.Sub(target), s.cfg.SliceErosion)
	if err != nil {
		return 0, 0, err
	}
	dilated, err := morph.Dilate(mask.Sub(remainder), s.cfg.RemainderDilation)
	if err != nil {
		return 0, 0, err
	}
	mask.Paste(target, eroded)
	mask.Paste(remainder, dilated)

	r, err := morph.LargestBounds(mask)
	if err != nil {
		return 0, 0, err
	}
	return r.X, r.W, nil
}
