package metadata

import (
	"errors"
	"fmt"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
)

// ErrFrameTooSmall is returned when a fixed overlay region does not fit inside
// the frame.
var ErrFrameTooSmall = errors.New("frame smaller than overlay region")

// FieldValidationError reports recognized text that does not satisfy the
// expected format of one metadata field.
type FieldValidationError struct {
	Field  Field
	Reason string
}

func (e *FieldValidationError) Error() string {
	return fmt.Sprintf("metadata field %s: %s", e.Field, e.Reason)
}

func invalid(f Field, format string, args ...any) error {
	return &FieldValidationError{Field: f, Reason: fmt.Sprintf(format, args...)}
}

func init() {
	fault.RegisterFrameSentinel(ErrFrameTooSmall)
	fault.RegisterFrameFailure(func(err error) bool {
		var fe *FieldValidationError
		return errors.As(err, &fe)
	})
}
