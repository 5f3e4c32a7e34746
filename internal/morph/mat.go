package morph

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// grayMat copies img into a single-channel 8-bit Mat. The caller closes it.
func grayMat(img *image.Gray) (gocv.Mat, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	pix := img.Pix
	if img.Stride != w {
		pix = make([]byte, w*h)
		for y := 0; y < h; y++ {
			copy(pix[y*w:(y+1)*w], img.Pix[y*img.Stride:y*img.Stride+w])
		}
	}
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, pix[:w*h])
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert %dx%d image: %w", w, h, err)
	}
	return mat, nil
}

// mat copies m into a single-channel 8-bit Mat. The caller closes it.
func (m Mask) mat() (gocv.Mat, error) {
	mat, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8UC1, m.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert %dx%d mask: %w", m.Width, m.Height, err)
	}
	return mat, nil
}

// FromMat copies a single-channel 8-bit 0/255 Mat into a new Mask, so the
// result never shares memory with OpenCV.
func FromMat(mat gocv.Mat) Mask {
	return Mask{Width: mat.Cols(), Height: mat.Rows(), Pix: mat.ToBytes()}
}
