package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/focus"
	"github.com/goodmattg/ultrasound-frames/internal/logging"
	"github.com/goodmattg/ultrasound-frames/internal/manifest"
	"github.com/goodmattg/ultrasound-frames/internal/metadata"
	"github.com/goodmattg/ultrasound-frames/internal/morph"
	"github.com/goodmattg/ultrasound-frames/internal/ocr"
)

func testJobs(names ...string) []Job {
	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, Job{
			Entry: manifest.Entry{
				Patient: "P1",
				Frame:   manifest.Frame{ImageType: metadata.Grayscale, TumorType: "benign", Frame: name},
			},
			Path: "/frames/" + name,
		})
	}
	return jobs
}

// collector gathers emitted results.
type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) emit(r Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	return nil
}

func (c *collector) byFrame() map[string]Result {
	out := make(map[string]Result, len(c.results))
	for _, r := range c.results {
		out[r.Frame] = r
	}
	return out
}

func TestRunner_Run(t *testing.T) {
	proc := ProcessorFunc(func(ctx context.Context, job Job) (Result, error) {
		if job.Entry.Frame.Frame == "bad.png" {
			return Result{}, fmt.Errorf("%s: %w", job.Path, morph.ErrNoContour)
		}
		return Result{Focus: "/out/" + job.Entry.Frame.Frame}, nil
	})
	r, err := NewRunner(3, 0, proc, logging.Nop())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	var c collector
	sum, err := r.Run(context.Background(), testJobs("a.png", "b.png", "bad.png", "c.png", "d.png"), c.emit)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Succeeded != 4 || sum.Failed != 1 || sum.Total() != 5 {
		t.Errorf("summary: got %+v", sum)
	}
	if len(c.results) != 5 {
		t.Fatalf("emitted %d results, want 5", len(c.results))
	}

	got := c.byFrame()
	if bad := got["bad.png"]; !strings.Contains(bad.Error, "no contour") || bad.Focus != "" {
		t.Errorf("failed frame result: %+v", bad)
	}
	if ok := got["c.png"]; ok.Error != "" || ok.Focus != "/out/c.png" || ok.Patient != "P1" || ok.ImageType != metadata.Grayscale {
		t.Errorf("successful frame result: %+v", ok)
	}
}

func TestRunner_IOErrorIsSkipped(t *testing.T) {
	proc := ProcessorFunc(func(ctx context.Context, job Job) (Result, error) {
		return Result{}, fmt.Errorf("failed to open image: %w", os.ErrNotExist)
	})
	r, err := NewRunner(2, 0, proc, logging.Nop())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	sum, err := r.Run(context.Background(), testJobs("a.png", "b.png"), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Failed != 2 || sum.Succeeded != 0 {
		t.Errorf("summary: got %+v", sum)
	}
}

func TestRunner_MisconfigurationAborts(t *testing.T) {
	var calls atomic.Int32
	proc := ProcessorFunc(func(ctx context.Context, job Job) (Result, error) {
		if calls.Add(1) == 2 {
			return Result{}, fault.Misconfigured("kernel size 0 must be positive")
		}
		return Result{}, nil
	})
	r, err := NewRunner(1, 0, proc, logging.Nop())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	var c collector
	sum, err := r.Run(context.Background(), testJobs("a.png", "b.png", "c.png", "d.png"), c.emit)
	if !fault.IsMisconfigured(err) {
		t.Fatalf("expected misconfiguration, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("processor calls: got %d, want 2", n)
	}
	if sum.Succeeded != 1 || sum.Failed != 0 || len(c.results) != 1 {
		t.Errorf("summary %+v with %d results", sum, len(c.results))
	}
}

func TestRunner_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	proc := ProcessorFunc(func(ctx context.Context, job Job) (Result, error) {
		if job.Entry.Frame.Frame == "slow.png" {
			<-release
		}
		return Result{}, nil
	})
	r, err := NewRunner(2, 20*time.Millisecond, proc, logging.Nop())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	var c collector
	sum, err := r.Run(context.Background(), testJobs("fast.png", "slow.png"), c.emit)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Succeeded != 1 || sum.Failed != 1 {
		t.Errorf("summary: got %+v", sum)
	}
	if slow := c.byFrame()["slow.png"]; !strings.Contains(slow.Error, ErrFrameTimeout.Error()) {
		t.Errorf("slow frame error: %q", slow.Error)
	}
}

func TestRunner_ProcessTimeoutError(t *testing.T) {
	proc := ProcessorFunc(func(ctx context.Context, job Job) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	r, err := NewRunner(1, 10*time.Millisecond, proc, logging.Nop())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	_, err = r.process(context.Background(), testJobs("a.png")[0])
	if !errors.Is(err, ErrFrameTimeout) {
		t.Fatalf("expected ErrFrameTimeout, got %v", err)
	}
	if !fault.IsFrameFailure(err) {
		t.Error("timeout should be a frame failure")
	}
}

func TestRunner_EmitErrorAborts(t *testing.T) {
	proc := ProcessorFunc(func(ctx context.Context, job Job) (Result, error) {
		return Result{}, nil
	})
	r, err := NewRunner(1, 0, proc, logging.Nop())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	errDiskFull := errors.New("disk full")
	emits := 0
	_, err = r.Run(context.Background(), testJobs("a.png", "b.png", "c.png"), func(Result) error {
		emits++
		return errDiskFull
	})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected emit error, got %v", err)
	}
	if emits != 1 {
		t.Errorf("emit calls: got %d, want 1", emits)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	var calls atomic.Int32
	proc := ProcessorFunc(func(ctx context.Context, job Job) (Result, error) {
		calls.Add(1)
		return Result{}, nil
	})
	r, err := NewRunner(2, 0, proc, logging.Nop())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := r.Run(ctx, testJobs("a.png", "b.png"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 0 || sum.Total() != 0 {
		t.Errorf("cancelled run processed %d frames, summary %+v", calls.Load(), sum)
	}
}

func TestNewRunner_Validate(t *testing.T) {
	proc := ProcessorFunc(func(ctx context.Context, job Job) (Result, error) { return Result{}, nil })
	tests := []struct {
		name    string
		workers int
		timeout time.Duration
		proc    Processor
	}{
		{"zero workers", 0, 0, proc},
		{"negative timeout", 1, -time.Second, proc},
		{"no processor", 1, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRunner(tt.workers, tt.timeout, tt.proc, logging.Nop()); !fault.IsMisconfigured(err) {
				t.Errorf("expected misconfiguration, got %v", err)
			}
		})
	}
}

func TestJobs(t *testing.T) {
	m := manifest.Manifest{
		"P2": {{ImageType: metadata.Color, TumorType: "malignant", Frame: "c.png"}},
		"P1": {
			{ImageType: metadata.Grayscale, TumorType: "benign", Frame: "a.png"},
			{ImageType: metadata.Color, TumorType: "benign", Frame: "b.png"},
		},
	}

	all := Jobs(m, "/data", nil)
	if len(all) != 3 {
		t.Fatalf("got %d jobs, want 3", len(all))
	}
	if want := filepath.Join("/data", "benign", "P1", "a.png"); all[0].Path != want {
		t.Errorf("first path: got %s, want %s", all[0].Path, want)
	}

	onlyColor := metadata.Color
	colored := Jobs(m, "/data", &onlyColor)
	if len(colored) != 2 || colored[0].Entry.Frame.Frame != "b.png" || colored[1].Entry.Patient != "P2" {
		t.Errorf("color jobs: %+v", colored)
	}
}

// overlayRecognizer answers every left-bar crop with a fixed color overlay
// and every numeric crop with 5.0.
type overlayRecognizer struct {
	mu    sync.Mutex
	calls int
}

func (o *overlayRecognizer) Recognize(path string, opts ocr.Options) (string, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	if opts.Whitelist == "" {
		return "ARAD\nCPA 72\nWF MED\nPRF 900", nil
	}
	return "5.0", nil
}

func writeFrame(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
}

func grayscaleFrame() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 640, 480))
	for y := 200; y < 400; y++ {
		for x := 300; x < 500; x++ {
			img.SetGray(x, y, color.Gray{Y: 200})
		}
	}
	return img
}

func colorFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	fill := func(r image.Rectangle, c color.RGBA) {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}
	fill(img.Rect, color.RGBA{128, 128, 128, 255})
	outer := image.Rect(200, 150, 400, 350)
	fill(outer, color.RGBA{0, 255, 255, 255})
	fill(outer.Inset(2), color.RGBA{128, 128, 128, 255})
	fill(image.Rect(260, 210, 320, 280), color.RGBA{255, 0, 0, 255})
	return img
}

func newPipeline(t *testing.T, rec metadata.Recognizer, outDir string) *Pipeline {
	t.Helper()
	g, err := focus.NewGrayscaleFocus(focus.DefaultGrayscaleConfig(), logging.Nop())
	if err != nil {
		t.Fatalf("NewGrayscaleFocus failed: %v", err)
	}
	h, err := focus.NewHighlightLocator(focus.DefaultHighlightConfig(), logging.Nop())
	if err != nil {
		t.Fatalf("NewHighlightLocator failed: %v", err)
	}
	cfg := metadata.DefaultConfig()
	cfg.TempDir = t.TempDir()
	m, err := metadata.NewExtractor(cfg, rec, logging.Nop())
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	p, err := NewPipeline(g, h, m, outDir)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p
}

func TestPipeline_Run(t *testing.T) {
	root := t.TempDir()
	outDir := t.TempDir()
	writeFrame(t, filepath.Join(root, "benign", "P1", "gray.png"), grayscaleFrame())
	writeFrame(t, filepath.Join(root, "benign", "P1", "color.png"), colorFrame())

	m := manifest.Manifest{"P1": {
		{ImageType: metadata.Grayscale, TumorType: "benign", Frame: "gray.png"},
		{ImageType: metadata.Color, TumorType: "benign", Frame: "color.png"},
		{ImageType: metadata.Grayscale, TumorType: "benign", Frame: "missing.png"},
	}}

	rec := &overlayRecognizer{}
	r, err := NewRunner(2, 0, newPipeline(t, rec, outDir), logging.Nop())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	var c collector
	sum, err := r.Run(context.Background(), Jobs(m, root, nil), c.emit)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sum.Succeeded != 2 || sum.Failed != 1 {
		t.Fatalf("summary: got %+v (results %+v)", sum, c.results)
	}

	got := c.byFrame()
	for _, name := range []string{"gray.png", "color.png"} {
		res := got[name]
		if filepath.Dir(res.Focus) != outDir {
			t.Errorf("%s: focus %q not in %s", name, res.Focus, outDir)
		}
		if _, err := os.Stat(res.Focus); err != nil {
			t.Errorf("%s: focus not saved: %v", name, err)
		}
		if res.Metadata == nil || *res.Metadata.Scale != 5.0 || res.Metadata.Radiality != metadata.Arad {
			t.Errorf("%s: metadata %+v", name, res.Metadata)
		}
	}
	if got["gray.png"].Metadata.PRF != nil {
		t.Error("grayscale record carries color fields")
	}
	if prf := got["color.png"].Metadata.PRF; prf == nil || *prf != 900 {
		t.Errorf("color PRF: got %v", prf)
	}
	if got["missing.png"].Error == "" {
		t.Error("missing frame reported no error")
	}
	if rec.calls != 6 {
		t.Errorf("recognizer calls: got %d, want 6", rec.calls)
	}
}

func TestNewPipeline_OutDir(t *testing.T) {
	g, _ := focus.NewGrayscaleFocus(focus.DefaultGrayscaleConfig(), logging.Nop())
	h, _ := focus.NewHighlightLocator(focus.DefaultHighlightConfig(), logging.Nop())
	m, _ := metadata.NewExtractor(metadata.DefaultConfig(), &overlayRecognizer{}, logging.Nop())

	if _, err := NewPipeline(g, h, m, filepath.Join(t.TempDir(), "absent")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing out dir: got %v", err)
	}
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewPipeline(g, h, m, file); !fault.IsMisconfigured(err) {
		t.Errorf("file as out dir: got %v", err)
	}
	if _, err := NewPipeline(nil, h, m, t.TempDir()); !fault.IsMisconfigured(err) {
		t.Errorf("missing stage: got %v", err)
	}
}

func TestPipeline_ReadsFrameEachTime(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "benign", "P1", "gray.png")
	writeFrame(t, path, grayscaleFrame())

	p := newPipeline(t, &overlayRecognizer{}, t.TempDir())
	job := Job{
		Entry: manifest.Entry{Patient: "P1", Frame: manifest.Frame{ImageType: metadata.Grayscale, TumorType: "benign", Frame: "gray.png"}},
		Path:  path,
	}
	if _, err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}

	writeFrame(t, path, image.NewGray(image.Rect(0, 0, 640, 480)))
	if _, err := p.Process(context.Background(), job); !errors.Is(err, morph.ErrNoContour) {
		t.Errorf("rewritten blank frame: expected ErrNoContour, got %v", err)
	}
}
