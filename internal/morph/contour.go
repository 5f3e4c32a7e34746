package morph

import (
	"errors"
	"image"
	"sort"

	"gocv.io/x/gocv"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
)

// ErrNoContour is returned when a mask holds no foreground region to trace.
var ErrNoContour = errors.New("no contour found")

func init() {
	fault.RegisterFrameSentinel(ErrNoContour)
}

// Contour is the ordered outer border of a foreground component.
type Contour struct {
	Points []image.Point
	area   float64
	bounds Rect
}

// Bounds returns the smallest rectangle containing every border pixel.
func (c Contour) Bounds() Rect {
	return c.bounds
}

// Area returns the area of the polygon through the border pixel centres.
func (c Contour) Area() float64 {
	return c.area
}

// start is the first pixel of the contour in raster order.
func (c Contour) start() image.Point {
	s := c.Points[0]
	for _, p := range c.Points[1:] {
		if p.Y < s.Y || (p.Y == s.Y && p.X < s.X) {
			s = p
		}
	}
	return s
}

// LargestByArea returns the first contour with the maximum area.
func LargestByArea(contours []Contour) (Contour, error) {
	if len(contours) == 0 {
		return Contour{}, ErrNoContour
	}
	best := 0
	for i := 1; i < len(contours); i++ {
		if contours[i].area > contours[best].area {
			best = i
		}
	}
	return contours[best], nil
}

// LargestBounds is LargestByArea over FindExternalContours, reduced to the
// bounding rectangle.
func LargestBounds(m Mask) (Rect, error) {
	contours, err := FindExternalContours(m)
	if err != nil {
		return Rect{}, err
	}
	c, err := LargestByArea(contours)
	if err != nil {
		return Rect{}, err
	}
	return c.Bounds(), nil
}

// FindExternalContours traces the outer border of every 8-connected foreground
// component of m that is not enclosed by a hole of another component. Contours
// are ordered by their first pixel in raster order.
func FindExternalContours(m Mask) ([]Contour, error) {
	if m.Width == 0 || m.Height == 0 {
		return nil, ErrNoContour
	}
	src, err := m.mat()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	found := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer found.Close()

	contours := make([]Contour, 0, found.Size())
	for i := 0; i < found.Size(); i++ {
		pv := found.At(i)
		points := pv.ToPoints()
		if len(points) == 0 {
			continue
		}
		contours = append(contours, Contour{
			Points: points,
			area:   gocv.ContourArea(pv),
			bounds: RectFrom(gocv.BoundingRect(pv)),
		})
	}
	if len(contours) == 0 {
		return nil, ErrNoContour
	}

	sort.SliceStable(contours, func(i, j int) bool {
		a, b := contours[i].start(), contours[j].start()
		return a.Y < b.Y || (a.Y == b.Y && a.X < b.X)
	})
	return contours, nil
}
