package morph

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Otsu returns the global cut that maximises between-class variance of img's
// intensity histogram. Pixels strictly above the cut are foreground.
func Otsu(img *image.Gray) (uint8, error) {
	if img.Rect.Empty() {
		return 0, nil
	}
	cut, m, err := otsu(img)
	if err != nil {
		return 0, err
	}
	m.Close()
	return cut, nil
}

// otsu binarises img at its Otsu cut. The caller closes the returned Mat.
func otsu(img *image.Gray) (uint8, gocv.Mat, error) {
	src, err := grayMat(img)
	if err != nil {
		return 0, gocv.Mat{}, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	cut := gocv.Threshold(src, &dst, 0, float32(Foreground), gocv.ThresholdBinary+gocv.ThresholdOtsu)
	return uint8(cut), dst, nil
}

// ThresholdAt returns a mask of the pixels of img strictly greater than level.
func ThresholdAt(img *image.Gray, level uint8) (Mask, error) {
	if img.Rect.Empty() {
		return NewMask(0, 0), nil
	}
	src, err := grayMat(img)
	if err != nil {
		return Mask{}, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Threshold(src, &dst, float32(level), float32(Foreground), gocv.ThresholdBinary)
	if dst.Empty() {
		return Mask{}, fmt.Errorf("threshold at %d produced no output", level)
	}
	return FromMat(dst), nil
}

// Threshold binarises img at its Otsu cut, raised to low when the Otsu cut is
// below it. Pass low = 0 for plain Otsu thresholding.
func Threshold(img *image.Gray, low uint8) (Mask, error) {
	if img.Rect.Empty() {
		return NewMask(0, 0), nil
	}
	cut, dst, err := otsu(img)
	if err != nil {
		return Mask{}, err
	}
	defer dst.Close()
	if cut < low {
		return ThresholdAt(img, low)
	}
	if dst.Empty() {
		return Mask{}, fmt.Errorf("otsu threshold produced no output")
	}
	return FromMat(dst), nil
}
