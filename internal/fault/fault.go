// Package fault separates the two ways a frame pipeline can fail.
//
// A misconfigured pipeline (bad kernel size, inverted crop span, unknown
// interpolation method) fails every frame identically and should stop a batch.
// An unreadable frame (no contour, overlay text that does not parse, a frame
// smaller than the fixed crop regions) is an expected outcome for a subset of a
// dataset; callers log it and move on to the next frame.
//
// Misconfiguration is signalled by wrapping ErrMisconfigured. Frame failures are
// registered by the packages that produce them through RegisterFrameFailure so
// that IsFrameFailure can classify an error without importing those packages.
package fault

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMisconfigured marks errors caused by invalid pipeline configuration.
var ErrMisconfigured = errors.New("pipeline misconfigured")

// Misconfigured returns an error wrapping ErrMisconfigured with a formatted detail.
func Misconfigured(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMisconfigured, fmt.Sprintf(format, args...))
}

// IsMisconfigured reports whether err was caused by invalid configuration.
func IsMisconfigured(err error) bool {
	return errors.Is(err, ErrMisconfigured)
}

var (
	mu       sync.RWMutex
	matchers []func(error) bool
)

// RegisterFrameFailure adds a predicate recognising a per-frame failure.
// Packages call it from init.
func RegisterFrameFailure(match func(error) bool) {
	mu.Lock()
	matchers = append(matchers, match)
	mu.Unlock()
}

// RegisterFrameSentinel registers errors.Is(err, target) as a frame failure.
func RegisterFrameSentinel(target error) {
	RegisterFrameFailure(func(err error) bool { return errors.Is(err, target) })
}

// IsFrameFailure reports whether err means "this frame is unreadable" as opposed
// to a fatal configuration or environment problem. Misconfiguration always wins.
func IsFrameFailure(err error) bool {
	if err == nil || IsMisconfigured(err) {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	for _, match := range matchers {
		if match(err) {
			return true
		}
	}
	return false
}
