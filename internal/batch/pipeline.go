package batch

import (
	"context"
	"fmt"
	"os"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/focus"
	"github.com/goodmattg/ultrasound-frames/internal/frame"
	"github.com/goodmattg/ultrasound-frames/internal/metadata"
)

// Pipeline is the standard Processor: it saves the frame's focus image and
// reads its overlay metadata. Grayscale frames get their scan window, color
// frames their highlighted region.
type Pipeline struct {
	grayscale *focus.GrayscaleFocus
	highlight *focus.HighlightLocator
	metadata  *metadata.Extractor
	outDir    string
}

// NewPipeline returns a pipeline saving focus images to outDir, which must
// be an existing directory.
func NewPipeline(g *focus.GrayscaleFocus, h *focus.HighlightLocator, m *metadata.Extractor, outDir string) (*Pipeline, error) {
	if g == nil || h == nil || m == nil {
		return nil, fault.Misconfigured("pipeline needs grayscale, highlight and metadata stages")
	}
	info, err := os.Stat(outDir)
	if err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fault.Misconfigured("output path %s is not a directory", outDir)
	}
	return &Pipeline{
		grayscale: g,
		highlight: h,
		metadata:  m,
		outDir:    outDir,
	}, nil
}

// Process decodes the frame once and shares it between the focus and
// metadata passes. Nothing is kept after it returns, so a long batch holds at
// most one decoded frame per worker.
func (p *Pipeline) Process(ctx context.Context, job Job) (Result, error) {
	img, err := frame.Open(job.Path)
	if err != nil {
		return Result{}, err
	}
	gray := frame.Gray(img)

	var res Result
	switch job.Entry.ImageType {
	case metadata.Grayscale:
		res.Focus, err = p.grayscale.ExtractFrom(job.Path, gray, p.outDir)
	case metadata.Color:
		res.Focus, err = p.highlight.ExtractFrom(job.Path, img, p.outDir)
	default:
		return Result{}, fmt.Errorf("%s: unsupported image type %s", job.Path, job.Entry.ImageType)
	}
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Metadata, err = p.metadata.Extract(gray, job.Entry.ImageType)
	if err != nil {
		return res, fmt.Errorf("%s: %w", job.Path, err)
	}
	return res, nil
}
