// Package morph provides the binary-image primitives used to locate regions in
// ultrasound frames: Otsu and global thresholding, rectangular erosion and
// dilation, external contour extraction and bounding rectangles. The image
// processing runs in OpenCV through gocv.
//
// # Masks
//
// A Mask is an owned 0/255 buffer. Sub copies a region out and Paste copies it
// back, so operations on part of a mask never alias the parent buffer:
//
//	eroded, err := morph.Erode(mask.Sub(r), morph.Square(6))
//	if err != nil {
//		return err
//	}
//	mask.Paste(r, eroded)
//
// Every primitive copies its input into a gocv.Mat and copies the result back
// out, so no Mask shares memory with OpenCV.
//
// # Semantics
//
// The primitives keep OpenCV's conventions so that tuned kernel sizes and
// fractions keep their meaning:
//   - Threshold keeps pixels strictly greater than the cut (THRESH_BINARY).
//   - Otsu maximises between-class variance; the first maximum wins and a
//     uniform image yields a cut of 0.
//   - Erode/Dilate anchor the kernel at (size/2) and ignore pixels outside the
//     mask, so borders neither erode nor grow a region.
//   - FindExternalContours returns the outer border of each 8-connected
//     foreground component that is not nested inside a hole of another one.
//   - Contour.Area is the polygon area of the traced border, so a one pixel wide
//     line has area zero.
//
// # Contour Order
//
// Contours are returned in raster order of their top-left start pixel, not in
// the order OpenCV reports them.
// LargestByArea keeps the first contour achieving the maximum area in that
// order. On degenerate inputs (several components of identical area) the choice
// is order dependent rather than geometrically meaningful.
package morph
