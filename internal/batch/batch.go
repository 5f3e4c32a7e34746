// Package batch runs the focus and metadata pipeline over many frames at once.
//
// Frames are independent, so the runner fans them out to a bounded pool of
// goroutines. A frame that fails is logged, reported in its result and
// skipped; only a misconfiguration stops the run, since it would fail every
// remaining frame the same way.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/manifest"
	"github.com/goodmattg/ultrasound-frames/internal/metadata"
)

// ErrFrameTimeout is returned for a frame that exceeds the per-frame timeout.
var ErrFrameTimeout = errors.New("frame timed out")

func init() {
	fault.RegisterFrameSentinel(ErrFrameTimeout)
}

// Job is one frame to process.
type Job struct {
	Entry manifest.Entry
	// Path is the frame file on disk.
	Path string
}

// Jobs lists the frames of m under root. A non-nil imageType keeps only
// frames of that type.
func Jobs(m manifest.Manifest, root string, imageType *metadata.ImageType) []Job {
	entries := m.Entries(imageType)
	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		jobs = append(jobs, Job{Entry: e, Path: e.Path(root)})
	}
	return jobs
}

// Result is the outcome of one frame, written as one JSON line.
type Result struct {
	Patient   string             `json:"patient"`
	Frame     string             `json:"frame"`
	ImageType metadata.ImageType `json:"image_type"`
	// Focus is the saved focus image path.
	Focus    string           `json:"focus,omitempty"`
	Metadata *metadata.Record `json:"metadata,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Processor handles a single frame.
type Processor interface {
	Process(ctx context.Context, job Job) (Result, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) (Result, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, job Job) (Result, error) {
	return f(ctx, job)
}

// Summary counts the frames a run finished.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Total is Succeeded plus Failed.
func (s Summary) Total() int {
	return s.Succeeded + s.Failed
}

// Runner processes jobs concurrently.
type Runner struct {
	workers int
	timeout time.Duration
	proc    Processor
	log     zerolog.Logger
}

// NewRunner returns a runner with at most workers frames in flight. A zero
// timeout disables the per-frame limit.
func NewRunner(workers int, timeout time.Duration, proc Processor, log zerolog.Logger) (*Runner, error) {
	if workers < 1 {
		return nil, fault.Misconfigured("workers must be at least 1, got %d", workers)
	}
	if timeout < 0 {
		return nil, fault.Misconfigured("frame timeout %s is negative", timeout)
	}
	if proc == nil {
		return nil, fault.Misconfigured("batch runner has no processor")
	}
	return &Runner{workers: workers, timeout: timeout, proc: proc, log: log}, nil
}

// Run processes jobs and passes every finished frame's result to emit, one
// call at a time. Failed frames are emitted with Error set. Run stops early
// and returns the error when a frame reports a misconfiguration, when emit
// fails or when ctx is cancelled; frames already in flight still finish.
func (r *Runner) Run(ctx context.Context, jobs []Job, emit func(Result) error) (Summary, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	var (
		mu  sync.Mutex
		sum Summary
	)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		job := job
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			start := time.Now()
			res, err := r.process(gctx, job)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if fault.IsMisconfigured(err) {
				return err
			}
			res.Patient = job.Entry.Patient
			res.Frame = job.Entry.Frame.Frame
			res.ImageType = job.Entry.ImageType

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failed++
				res.Error = err.Error()
				r.log.Warn().
					Err(err).
					Str("frame", job.Path).
					Bool("frame_failure", fault.IsFrameFailure(err)).
					Msg("skipping frame")
			} else {
				sum.Succeeded++
				r.log.Debug().
					Str("frame", job.Path).
					Dur("elapsed", time.Since(start)).
					Msg("processed frame")
			}
			if emit == nil {
				return nil
			}
			if err := emit(res); err != nil {
				return fmt.Errorf("failed to write result: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return sum, err
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	r.log.Info().Int("succeeded", sum.Succeeded).Int("failed", sum.Failed).Msg("batch finished")
	return sum, nil
}

type outcome struct {
	res Result
	err error
}

// process runs one job under the per-frame timeout. The core operations do
// not observe ctx, so a timed-out frame keeps its goroutine until it returns.
func (r *Runner) process(ctx context.Context, job Job) (Result, error) {
	if r.timeout == 0 {
		return r.proc.Process(ctx, job)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		res, err := r.proc.Process(ctx, job)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if errors.Is(o.err, context.DeadlineExceeded) {
			return o.res, r.timedOut()
		}
		return o.res, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, r.timedOut()
		}
		return Result{}, ctx.Err()
	}
}

func (r *Runner) timedOut() error {
	return fmt.Errorf("%w after %s", ErrFrameTimeout, r.timeout)
}
