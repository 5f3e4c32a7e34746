package focus

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
)

// ExtractionError wraps any failure while producing and saving a focus image.
type ExtractionError struct {
	// Path is the input frame.
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("focus extraction failed for %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Resample optionally rescales a focus image before it is saved.
type Resample struct {
	// Scale multiplies both dimensions. Zero or one leaves the image as is.
	Scale float64 `yaml:"scale" json:"scale"`
	// Interpolation is one of nearest, linear, cubic (default) or lanczos.
	Interpolation string `yaml:"interpolation" json:"interpolation"`
}

// Validate rejects unknown interpolation methods and negative scales.
func (r Resample) Validate() error {
	if math.IsNaN(r.Scale) || r.Scale < 0 {
		return fault.Misconfigured("scale %v must be positive", r.Scale)
	}
	_, err := filterFor(r.Interpolation)
	return err
}

func filterFor(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(name) {
	case "nearest":
		return imaging.NearestNeighbor, nil
	case "linear":
		return imaging.Linear, nil
	case "", "cubic":
		return imaging.CatmullRom, nil
	case "lanczos":
		return imaging.Lanczos, nil
	}
	return imaging.ResampleFilter{}, fault.Misconfigured("unknown interpolation %q", name)
}

// Apply rescales img. Dimensions are rounded and kept at least one pixel.
func (r Resample) Apply(img image.Image) (image.Image, error) {
	if r.Scale == 0 || r.Scale == 1 {
		return img, nil
	}
	filter, err := filterFor(r.Interpolation)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w := max(1, int(math.Round(float64(b.Dx())*r.Scale)))
	h := max(1, int(math.Round(float64(b.Dy())*r.Scale)))
	return imaging.Resize(img, w, h, filter), nil
}

// save writes img to outDir as <uuid>.png and returns the path. A partially
// written file is removed.
func save(img image.Image, outDir string) (string, error) {
	path := filepath.Join(outDir, uuid.New().String()+".png")
	if err := imaging.Save(img, path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save focus image: %w", err)
	}
	return path, nil
}
