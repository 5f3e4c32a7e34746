package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/goodmattg/ultrasound-frames/internal/batch"
	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/focus"
	"github.com/goodmattg/ultrasound-frames/internal/frame"
	"github.com/goodmattg/ultrasound-frames/internal/manifest"
	"github.com/goodmattg/ultrasound-frames/internal/metadata"
	"github.com/goodmattg/ultrasound-frames/internal/morph"
	"github.com/goodmattg/ultrasound-frames/internal/ocr"
)

// Preview outline settings.
const (
	previewLevel     = 245
	previewThickness = 2
)

var frameExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return flagError(err)
	}
	if fs.NArg() > 0 {
		return fault.Misconfigured("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

func parseImageType(s string) (metadata.ImageType, error) {
	t, err := metadata.ParseImageType(strings.ToUpper(s))
	if err != nil {
		return 0, fault.Misconfigured("unknown frame type %q (want grayscale or color)", s)
	}
	return t, nil
}

// listFrames returns the image files directly inside dir in name order.
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame folder: %w", err)
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		frames = append(frames, filepath.Join(dir, e.Name()))
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}
	sort.Strings(frames)
	return frames, nil
}

// === focus ===

type focusReport struct {
	Frame string `json:"frame"`
	// Bounds is the scan window, or the highlight interior, in frame coordinates.
	Bounds  *morph.Rect `json:"bounds,omitempty"`
	Focus   string      `json:"focus,omitempty"`
	Preview string      `json:"preview,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type focuser struct {
	imageType metadata.ImageType
	grayscale *focus.GrayscaleFocus
	highlight *focus.HighlightLocator
	outDir    string
	preview   bool
}

func (f *focuser) run(path string) (focusReport, error) {
	rep := focusReport{Frame: path}
	var (
		gray   *image.Gray
		bounds morph.Rect
		err    error
	)
	switch f.imageType {
	case metadata.Color:
		img, err := frame.Open(path)
		if err != nil {
			return rep, err
		}
		outer, inner, err := f.highlight.Regions(img)
		if err != nil {
			return rep, err
		}
		bounds = inner.Translate(outer.X, outer.Y)
		rep.Bounds = &bounds
		if f.outDir != "" {
			if rep.Focus, err = f.highlight.ExtractFrom(path, img, f.outDir); err != nil {
				return rep, err
			}
		}
		gray = frame.Gray(img)
	default:
		if gray, err = frame.OpenGray(path); err != nil {
			return rep, err
		}
		if _, bounds, err = f.grayscale.Bounds(gray); err != nil {
			return rep, err
		}
		rep.Bounds = &bounds
		if f.outDir != "" {
			if rep.Focus, err = f.grayscale.ExtractFrom(path, gray, f.outDir); err != nil {
				return rep, err
			}
		}
	}

	if f.preview {
		rep.Preview, err = writePreview(gray, bounds, path, f.outDir)
	}
	return rep, err
}

// writePreview saves gray with bounds outlined as <outDir>/<name>.preview.png.
func writePreview(gray *image.Gray, bounds morph.Rect, path, outDir string) (string, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".preview.png"
	out := filepath.Join(outDir, name)
	annotated := frame.Outline(gray, bounds.Image().Add(gray.Rect.Min), previewLevel, previewThickness)
	if err := imaging.Save(annotated, out); err != nil {
		return "", fmt.Errorf("failed to save preview: %w", err)
	}
	return out, nil
}

func (a *app) focus(args []string) error {
	fs := newFlagSet(a, "focus")
	imagePath := fs.String("image", "", "single frame to process")
	folder := fs.String("folder", "", "directory of frames to process")
	mode := fs.String("mode", "grayscale", "frame type: grayscale or color")
	outDir := fs.String("out", "", "directory for focus images; empty reports bounds only")
	preview := fs.Bool("preview", false, "also write each frame with its focus bounds outlined (needs --out)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if (*imagePath == "") == (*folder == "") {
		return fault.Misconfigured("exactly one of --image or --folder is required")
	}
	if *preview && *outDir == "" {
		return fault.Misconfigured("--preview needs --out")
	}
	imageType, err := parseImageType(*mode)
	if err != nil {
		return err
	}

	frames := []string{*imagePath}
	if *folder != "" {
		if frames, err = listFrames(*folder); err != nil {
			return err
		}
	}
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f := &focuser{imageType: imageType, outDir: *outDir, preview: *preview}
	if f.grayscale, err = focus.NewGrayscaleFocus(a.cfg.Grayscale, a.log); err != nil {
		return err
	}
	if f.highlight, err = focus.NewHighlightLocator(a.cfg.Highlight, a.log); err != nil {
		return err
	}

	enc := json.NewEncoder(a.stdout)
	failed := 0
	var last error
	for _, path := range frames {
		rep, err := f.run(path)
		if err != nil {
			if fault.IsMisconfigured(err) {
				return err
			}
			failed++
			last = err
			rep.Error = err.Error()
			a.log.Warn().Err(err).Str("frame", path).Msg("skipping frame")
		}
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	switch {
	case failed == 0:
		return nil
	case len(frames) == 1:
		return last
	default:
		return fmt.Errorf("%w: %d of %d", errFramesFailed, failed, len(frames))
	}
}

// === metadata ===

func (a *app) metadata(args []string) error {
	fs := newFlagSet(a, "metadata")
	imagePath := fs.String("image", "", "frame to read")
	typeName := fs.String("type", "GRAYSCALE", "frame type: GRAYSCALE or COLOR")
	raw := fs.Bool("raw", false, "print the recognized text of each overlay region instead of the record")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *imagePath == "" {
		return fault.Misconfigured("--image is required")
	}
	imageType, err := parseImageType(*typeName)
	if err != nil {
		return err
	}

	ex, err := metadata.NewExtractor(a.cfg.Metadata, ocr.New(a.cfg.TessdataPrefix), a.log)
	if err != nil {
		return err
	}
	gray, err := frame.OpenGray(*imagePath)
	if err != nil {
		return err
	}

	var out interface{}
	if *raw {
		out, err = ex.Read(gray)
	} else {
		out, err = ex.Extract(gray, imageType)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", *imagePath, err)
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// === batch ===

func loadManifest(path, source string) (manifest.Manifest, error) {
	if path == "" || source == "" {
		return nil, fault.Misconfigured("--manifest and --source are required")
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("source tree: %w", err)
	}
	if !info.IsDir() {
		return nil, fault.Misconfigured("source %s is not a directory", source)
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fault.Misconfigured("%v", err)
	}
	return m, nil
}

func (a *app) batch(args []string) error {
	fs := newFlagSet(a, "batch")
	manifestPath := fs.String("manifest", "", "manifest JSON file")
	source := fs.String("source", "", "root of the TUMOR_TYPE/patient/frame tree")
	outDir := fs.String("out", "", "directory for focus images")
	typeName := fs.String("type", "", "only process GRAYSCALE or COLOR frames")
	workers := fs.Int("workers", a.cfg.Workers, "frames processed concurrently")
	timeout := fs.Duration("timeout", a.cfg.FrameTimeout, "time limit per frame (0 disables)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *outDir == "" {
		return fault.Misconfigured("--out is required")
	}
	m, err := loadManifest(*manifestPath, *source)
	if err != nil {
		return err
	}
	var only *metadata.ImageType
	if *typeName != "" {
		t, err := parseImageType(*typeName)
		if err != nil {
			return err
		}
		only = &t
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	g, err := focus.NewGrayscaleFocus(a.cfg.Grayscale, a.log)
	if err != nil {
		return err
	}
	h, err := focus.NewHighlightLocator(a.cfg.Highlight, a.log)
	if err != nil {
		return err
	}
	ex, err := metadata.NewExtractor(a.cfg.Metadata, ocr.New(a.cfg.TessdataPrefix), a.log)
	if err != nil {
		return err
	}
	pipeline, err := batch.NewPipeline(g, h, ex, *outDir)
	if err != nil {
		return err
	}
	runner, err := batch.NewRunner(*workers, *timeout, pipeline, a.log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	jobs := batch.Jobs(m, *source, only)
	a.log.Info().Int("frames", len(jobs)).Int("workers", *workers).Msg("starting batch")
	enc := json.NewEncoder(a.stdout)
	sum, err := runner.Run(ctx, jobs, func(r batch.Result) error { return enc.Encode(r) })
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", errFramesFailed, sum.Failed, sum.Total())
	}
	return nil
}

// === check-manifest ===

func (a *app) checkManifest(args []string) error {
	fs := newFlagSet(a, "check-manifest")
	manifestPath := fs.String("manifest", "", "manifest JSON file")
	source := fs.String("source", "", "root of the TUMOR_TYPE/patient/frame tree")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	m, err := loadManifest(*manifestPath, *source)
	if err != nil {
		return err
	}

	missing := m.Missing(*source)
	for _, e := range missing {
		fmt.Fprintf(a.stdout, "%s\t%s\n", e, e.Path(*source))
	}
	a.log.Info().
		Int("patients", len(m)).
		Int("frames", len(m.Entries(nil))).
		Int("missing", len(missing)).
		Strs("tumor_types", m.TumorTypes()).
		Msg("checked manifest")
	if len(missing) > 0 {
		return fmt.Errorf("%w: %d frames missing", errFramesFailed, len(missing))
	}
	return nil
}
