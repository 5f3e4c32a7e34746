package metadata

import (
	"fmt"
	"image"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/morph"
	"github.com/goodmattg/ultrasound-frames/internal/ocr"
)

// Region is a fixed crop box given as row and column spans.
type Region struct {
	Rows morph.Span `yaml:"rows" json:"rows"`
	Cols morph.Span `yaml:"cols" json:"cols"`
}

// Rect resolves the region against a frame of the given bounds.
func (r Region) Rect(bounds image.Rectangle) (image.Rectangle, error) {
	y0, y1, ok := r.Rows.Resolve(bounds.Dy())
	if !ok {
		return image.Rectangle{}, fmt.Errorf("%w: rows %d..%d outside %d pixels", ErrFrameTooSmall, r.Rows.Start, r.Rows.End, bounds.Dy())
	}
	x0, x1, ok := r.Cols.Resolve(bounds.Dx())
	if !ok {
		return image.Rectangle{}, fmt.Errorf("%w: cols %d..%d outside %d pixels", ErrFrameTooSmall, r.Cols.Start, r.Cols.End, bounds.Dx())
	}
	return image.Rect(x0, y0, x1, y1).Add(bounds.Min), nil
}

// Config holds the overlay regions and recognition settings for one device.
type Config struct {
	// LeftBar holds radiality, color mode and level, wall filter and PRF.
	LeftBar Region `yaml:"left_bar" json:"left_bar"`
	// SizeReadout holds the caliper measurements.
	SizeReadout Region `yaml:"size_readout" json:"size_readout"`
	// ScaleReadout holds the depth scale in centimetres.
	ScaleReadout Region `yaml:"scale_readout" json:"scale_readout"`

	Language string `yaml:"language" json:"language"`
	// PageSegMode applies to every crop. Zero means sparse text.
	PageSegMode int `yaml:"page_seg_mode" json:"page_seg_mode"`
	// NumericWhitelist restricts the size and scale crops.
	NumericWhitelist string `yaml:"numeric_whitelist" json:"numeric_whitelist"`

	// TempDir receives the temporary crop files. Empty uses the OS default.
	TempDir string `yaml:"temp_dir" json:"temp_dir"`
	// Binarize applies an Otsu threshold to the frame before cropping.
	Binarize bool `yaml:"binarize" json:"binarize"`
}

// DefaultConfig returns the regions measured on the source dataset's device.
func DefaultConfig() Config {
	return Config{
		LeftBar:          Region{Rows: morph.Span{Start: 50}, Cols: morph.Span{Start: 0, End: 100}},
		SizeReadout:      Region{Rows: morph.Span{Start: 365}, Cols: morph.Span{Start: 30, End: 140}},
		ScaleReadout:     Region{Rows: morph.Span{Start: 15, End: 40}, Cols: morph.Span{Start: 585}},
		Language:         "eng",
		PageSegMode:      ocr.SparseText,
		NumericWhitelist: "0123456789.",
		Binarize:         true,
	}
}

// Validate rejects configurations that fail every frame.
func (c Config) Validate() error {
	regions := []struct {
		name string
		r    Region
	}{
		{"left_bar", c.LeftBar},
		{"size_readout", c.SizeReadout},
		{"scale_readout", c.ScaleReadout},
	}
	for _, reg := range regions {
		if err := reg.r.Rows.Validate(reg.name + ".rows"); err != nil {
			return err
		}
		if err := reg.r.Cols.Validate(reg.name + ".cols"); err != nil {
			return err
		}
	}
	if c.Language == "" {
		return fault.Misconfigured("ocr language is empty")
	}
	if c.PageSegMode < 0 || c.PageSegMode > 13 {
		return fault.Misconfigured("page segmentation mode %d out of range 0-13", c.PageSegMode)
	}
	return nil
}

func (c Config) textOptions() ocr.Options {
	return ocr.Options{Language: c.Language, PageSegMode: c.PageSegMode}
}

func (c Config) numericOptions() ocr.Options {
	return ocr.Options{Language: c.Language, PageSegMode: c.PageSegMode, Whitelist: c.NumericWhitelist}
}
