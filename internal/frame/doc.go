// Package frame loads raw ultrasound frames and converts them into the
// representations the locators work on.
//
// Grayscale scan frames are handled as *image.Gray with their origin at (0, 0);
// color frames stay as decoded image.Image values. Color-to-gray conversion uses
// BT.601 luma weights. Highlight masks are computed by OpenCV in 8-bit HSV
// units (hue 0-180, saturation and value 0-255) so that bands tuned on the
// acquisition device carry over unchanged.
//
// Cache is safe for concurrent use; the conversion functions are stateless.
package frame
