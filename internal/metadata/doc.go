// Package metadata reads the scan settings printed as text overlays on an
// ultrasound frame.
//
// Three fixed regions of the frame are cropped and recognized separately: the
// left information bar (radiality, color mode and level, wall filter, PRF), the
// bottom-left size readout and the top-right depth scale. Region coordinates
// belong to one acquisition device and live in Config rather than being derived
// per frame.
//
// Recognized text is split into trimmed, upper-cased lines and parsed into a
// Record. Parsing is all-or-nothing: the first field that fails its check
// aborts the frame with a *FieldValidationError naming the field. Two
// corrections are applied on purpose:
//
//   - A color level read as 3X is reported as 8X. Operators rarely scan below
//     50% power and Tesseract confuses the two glyphs on this overlay font.
//   - A scale outside (1, 10) cm is reported as null and left for later
//     imputation instead of failing the frame.
//
// Recognition needs image files, so each crop is written to its own temporary
// PNG which is removed before Extract returns, whether or not recognition
// succeeded.
package metadata
