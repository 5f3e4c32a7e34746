package morph

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
)

// Kernel is the size of a rectangular all-ones structuring element.
type Kernel struct {
	W int `json:"width" yaml:"width"`
	H int `json:"height" yaml:"height"`
}

// Square returns a size×size kernel.
func Square(size int) Kernel {
	return Kernel{W: size, H: size}
}

// Validate rejects kernels that cannot be applied.
func (k Kernel) Validate() error {
	if k.W < 1 || k.H < 1 {
		return fault.Misconfigured("kernel size %dx%d must be at least 1x1", k.W, k.H)
	}
	return nil
}

// Erode shrinks foreground: a pixel stays set only if every in-bounds pixel
// under the kernel is set.
func Erode(m Mask, k Kernel) (Mask, error) {
	return apply(m, k, false)
}

// Dilate grows foreground: a pixel becomes set if any in-bounds pixel under the
// kernel is set.
func Dilate(m Mask, k Kernel) (Mask, error) {
	return apply(m, k, true)
}

// apply dilates (grow) or erodes m with a rectangular element anchored at its
// centre. OpenCV's default border value keeps pixels outside the mask out of
// the window.
func apply(m Mask, k Kernel, grow bool) (Mask, error) {
	if err := k.Validate(); err != nil {
		return Mask{}, err
	}
	if m.Width == 0 || m.Height == 0 {
		return m.Clone(), nil
	}

	src, err := m.mat()
	if err != nil {
		return Mask{}, err
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: k.W, Y: k.H})
	defer kernel.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	name := "erode"
	if grow {
		name = "dilate"
		gocv.Dilate(src, &dst, kernel)
	} else {
		gocv.Erode(src, &dst, kernel)
	}
	if dst.Empty() {
		return Mask{}, fmt.Errorf("%s with %dx%d kernel produced no output", name, k.W, k.H)
	}
	return FromMat(dst), nil
}
