package metadata

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/rs/zerolog"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/frame"
	"github.com/goodmattg/ultrasound-frames/internal/morph"
	"github.com/goodmattg/ultrasound-frames/internal/ocr"
)

// Recognizer reads text from an image file.
type Recognizer interface {
	Recognize(imagePath string, opts ocr.Options) (string, error)
}

// Extractor reads overlay metadata from grayscale frames.
type Extractor struct {
	cfg Config
	rec Recognizer
	log zerolog.Logger
}

// NewExtractor validates cfg and returns an extractor using rec for recognition.
func NewExtractor(cfg Config, rec Recognizer, log zerolog.Logger) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fault.Misconfigured("metadata extractor has no recognizer")
	}
	return &Extractor{cfg: cfg, rec: rec, log: log}, nil
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// ExtractFile loads the frame at path as grayscale and extracts its metadata.
func (e *Extractor) ExtractFile(path string, imageType ImageType) (*Record, error) {
	gray, err := frame.OpenGray(path)
	if err != nil {
		return nil, err
	}
	rec, err := e.Extract(gray, imageType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Extract reads the overlay regions of gray and parses them into a record.
func (e *Extractor) Extract(gray *image.Gray, imageType ImageType) (*Record, error) {
	readout, err := e.Read(gray)
	if err != nil {
		return nil, err
	}
	return Parse(readout, imageType)
}

// Read recognizes the raw text of every overlay region without parsing it.
//
// Parameters:
//   - gray: The full grayscale frame. Region spans are resolved against its
//     bounds.
//
// Returns:
//   - Readout: The raw text of the left bar, size and scale regions.
//   - error: ErrFrameTooSmall when a region does not fit the frame, or the
//     recognizer's error for the first region that fails.
//
// # Temporary Files
//
// Each region is cropped and written to its own temporary PNG in TempDir,
// which is removed before Read returns, whether recognition succeeded or not.
// Concurrent calls never share a file.
//
// When Binarize is set the frame is Otsu-thresholded once before cropping, so
// the overlay glyphs reach Tesseract as white on black.
func (e *Extractor) Read(gray *image.Gray) (Readout, error) {
	if e.cfg.Binarize {
		mask, err := morph.Threshold(gray, 0)
		if err != nil {
			return Readout{}, err
		}
		gray = mask.Gray()
	}

	var (
		out Readout
		err error
	)
	if out.LeftBar, err = e.readRegion(gray, "left_bar", e.cfg.LeftBar, e.cfg.textOptions()); err != nil {
		return Readout{}, err
	}
	if out.Size, err = e.readRegion(gray, "size_readout", e.cfg.SizeReadout, e.cfg.numericOptions()); err != nil {
		return Readout{}, err
	}
	if out.Scale, err = e.readRegion(gray, "scale_readout", e.cfg.ScaleReadout, e.cfg.numericOptions()); err != nil {
		return Readout{}, err
	}
	return out, nil
}

func (e *Extractor) readRegion(gray *image.Gray, name string, region Region, opts ocr.Options) (string, error) {
	r, err := region.Rect(gray.Bounds())
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	crop := frame.CropGray(gray, r)

	// Tesseract needs a file path; the crop lives only for this call.
	tmp, err := os.CreateTemp(e.cfg.TempDir, "usframe-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, crop); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to encode temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write temp image: %w", err)
	}

	text, err := e.rec.Recognize(tmpPath, opts)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	e.log.Debug().Str("region", name).Str("rect", r.String()).Str("text", text).Msg("recognized overlay")
	return text, nil
}
