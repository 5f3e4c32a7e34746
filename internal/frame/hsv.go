package frame

import (
	"fmt"
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/morph"
)

// HSV is a color in 8-bit HSV units: hue 0-180 (degrees halved), saturation
// and value 0-255. These are the units highlight bands are tuned in.
type HSV struct {
	H uint8 `json:"h" yaml:"h"`
	S uint8 `json:"s" yaml:"s"`
	V uint8 `json:"v" yaml:"v"`
}

// HSVBand is an inclusive per-channel HSV range.
type HSVBand struct {
	Lower HSV `json:"lower" yaml:"lower"`
	Upper HSV `json:"upper" yaml:"upper"`
}

// Validate rejects bands that cannot match anything.
func (b HSVBand) Validate() error {
	if b.Lower.H > b.Upper.H || b.Lower.S > b.Upper.S || b.Lower.V > b.Upper.V {
		return fault.Misconfigured("hsv band lower %v exceeds upper %v", b.Lower, b.Upper)
	}
	if b.Upper.H > 180 {
		return fault.Misconfigured("hsv band hue %d exceeds 180", b.Upper.H)
	}
	return nil
}

// Contains reports whether c lies inside the band on all three channels.
func (b HSVBand) Contains(c HSV) bool {
	return c.H >= b.Lower.H && c.H <= b.Upper.H &&
		c.S >= b.Lower.S && c.S <= b.Upper.S &&
		c.V >= b.Lower.V && c.V <= b.Upper.V
}

// ToHSV converts an 8-bit RGB triple to 8-bit HSV units.
func ToHSV(r, g, b uint8) HSV {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, v := c.Hsv()
	hue := math.Round(h / 2)
	if hue >= 180 {
		hue = 0
	}
	return HSV{
		H: uint8(hue),
		S: uint8(math.Round(s * 255)),
		V: uint8(math.Round(v * 255)),
	}
}

// FromHSV converts 8-bit HSV units back to RGB, used to paint synthetic frames.
func FromHSV(c HSV) (r, g, b uint8) {
	return colorful.Hsv(float64(c.H)*2, float64(c.S)/255, float64(c.V)/255).RGB255()
}

// InRange returns a mask of the pixels of img whose HSV color lies in band.
// The mask origin is img's top-left corner.
func InRange(img image.Image, band HSVBand) (morph.Mask, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return morph.NewMask(w, h), nil
	}

	src, err := bgrMat(img)
	if err != nil {
		return morph.Mask{}, err
	}
	defer src.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(src, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, band.Lower.scalar(), band.Upper.scalar(), &mask)
	if mask.Empty() {
		return morph.Mask{}, fmt.Errorf("hsv band %v-%v produced no output", band.Lower, band.Upper)
	}
	return morph.FromMat(mask), nil
}

func (c HSV) scalar() gocv.Scalar {
	return gocv.NewScalar(float64(c.H), float64(c.S), float64(c.V), 0)
}

// bgrMat copies img into an 8-bit three-channel Mat in OpenCV's BGR order.
// The caller closes it.
func bgrMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]byte, 0, w*h*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			data = append(data, uint8(b>>8), uint8(g>>8), uint8(r>>8))
		}
	}
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert %dx%d frame: %w", w, h, err)
	}
	return mat, nil
}
