// Package focus isolates the diagnostically relevant region of a raw
// ultrasound frame.
//
// Grayscale frames go through ScanWindowLocator: Otsu threshold, a dilation
// over the centre of the mask, the largest external contour, then a
// CurvatureSuppressor pass that trims the thin artifact line sometimes drawn
// along the right edge of the scan. Only the horizontal extent of the second
// pass is trusted, so returned bounds take their height from the first contour
// and their width from the second.
//
// Color (CPA) frames go through HighlightLocator, which finds the rectangle the
// scanner draws around the region of interest by its hue, then finds the
// content inside that rectangle and crops a few pixels further in.
//
// GrayscaleFocus and HighlightLocator.Extract persist the result as
// <uuid>.png in a caller-supplied directory. Any failure on that path is
// returned as an *ExtractionError wrapping the cause.
package focus
