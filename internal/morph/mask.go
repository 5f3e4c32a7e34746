package morph

import (
	"fmt"
	"image"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
)

// Foreground is the value of set mask pixels.
const Foreground uint8 = 255

// Rect is an axis-aligned rectangle (x, y, width, height) in the coordinate
// space of the mask or image it was derived from.
type Rect struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"width" yaml:"width"`
	H int `json:"height" yaml:"height"`
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy int) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Inset returns r shrunk by margin pixels on all four sides. The result may be
// empty; check Empty before using it.
func (r Rect) Inset(margin int) Rect {
	return Rect{X: r.X + margin, Y: r.Y + margin, W: r.W - 2*margin, H: r.H - 2*margin}
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// RectFrom converts an image.Rectangle to a Rect.
func RectFrom(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Span is a half-open pixel range [Start, End) along one axis. End 0 extends
// to the edge of whatever the span is resolved against.
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Validate rejects spans that are empty or negative regardless of image size.
func (s Span) Validate(name string) error {
	if s.Start < 0 || s.End < 0 {
		return fault.Misconfigured("%s span %d..%d has a negative bound", name, s.Start, s.End)
	}
	if s.End != 0 && s.End <= s.Start {
		return fault.Misconfigured("%s span %d..%d ends before it starts", name, s.Start, s.End)
	}
	return nil
}

// Resolve returns the concrete range inside an axis of n pixels. ok is false
// when the span does not fit.
func (s Span) Resolve(n int) (start, end int, ok bool) {
	end = s.End
	if end == 0 {
		end = n
	}
	if s.Start >= n || end > n {
		return 0, 0, false
	}
	return s.Start, end, true
}

// Mask is a binary image whose pixels are either 0 or Foreground.
// The zero value is an empty mask.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask allocates an all-background mask.
func NewMask(width, height int) Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At reports whether (x, y) is foreground. Coordinates outside the mask are background.
func (m Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// Set writes a pixel. Coordinates outside the mask are ignored.
func (m Mask) Set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	if on {
		m.Pix[y*m.Width+x] = Foreground
	} else {
		m.Pix[y*m.Width+x] = 0
	}
}

// Bounds returns the full extent of the mask.
func (m Mask) Bounds() Rect {
	return Rect{W: m.Width, H: m.Height}
}

// Count returns the number of foreground pixels.
func (m Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of m.
func (m Mask) Clone() Mask {
	out := Mask{Width: m.Width, Height: m.Height, Pix: make([]uint8, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// clip intersects r with the mask bounds.
func (m Mask) clip(r Rect) Rect {
	c := RectFrom(r.Image().Intersect(m.Bounds().Image()))
	if c.Empty() {
		return Rect{}
	}
	return c
}

// Sub copies the region r (clipped to the mask) into a new mask whose origin is
// r's top-left corner.
func (m Mask) Sub(r Rect) Mask {
	r = m.clip(r)
	out := NewMask(r.W, r.H)
	for y := 0; y < r.H; y++ {
		src := (r.Y+y)*m.Width + r.X
		copy(out.Pix[y*r.W:(y+1)*r.W], m.Pix[src:src+r.W])
	}
	return out
}

// Paste copies src into m with src's origin placed at r's top-left corner.
// Only the part of src that fits both r and m is written.
func (m Mask) Paste(r Rect, src Mask) {
	w := min(r.W, src.Width)
	h := min(r.H, src.Height)
	for y := 0; y < h; y++ {
		dy := r.Y + y
		if dy < 0 || dy >= m.Height {
			continue
		}
		for x := 0; x < w; x++ {
			dx := r.X + x
			if dx < 0 || dx >= m.Width {
				continue
			}
			m.Pix[dy*m.Width+dx] = src.Pix[y*src.Width+x]
		}
	}
}

// Invert returns a copy of m with foreground and background swapped.
func Invert(m Mask) Mask {
	out := NewMask(m.Width, m.Height)
	for i, v := range m.Pix {
		if v == 0 {
			out.Pix[i] = Foreground
		}
	}
	return out
}

// Gray renders the mask as a grayscale image, mainly for debugging output.
func (m Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+m.Width], m.Pix[y*m.Width:(y+1)*m.Width])
	}
	return img
}
