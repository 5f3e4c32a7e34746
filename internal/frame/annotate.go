package frame

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Outline returns a copy of img with the border of r drawn at the given gray
// level. r is clipped to img first; the border is thickness pixels wide and
// lies inside it.
func Outline(img *image.Gray, r image.Rectangle, level uint8, thickness int) *image.Gray {
	out := image.NewGray(img.Rect)
	draw.Draw(out, out.Rect, img, img.Rect.Min, draw.Src)

	r = r.Intersect(out.Rect)
	if r.Empty() || thickness < 1 {
		return out
	}
	t := thickness
	src := image.NewUniform(color.Gray{Y: level})
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(out, e.Intersect(r), src, image.Point{}, draw.Src)
	}
	return out
}
