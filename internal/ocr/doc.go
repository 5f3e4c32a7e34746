// Package ocr reads overlay text from ultrasound frame crops using Tesseract.
//
// It wraps the Tesseract engine (via gosseract/v2). Each call creates its own
// client configured from Options: language, page segmentation mode and an
// optional character whitelist. Overlay crops are read in sparse-text mode by
// default; numeric readouts add a digits-and-decimal-point whitelist.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// A non-standard tessdata directory can be selected with Tesseract.TessdataPrefix.
//
// # Image Input
//
// Tesseract reads from files. Callers that hold in-memory crops write them to a
// temporary PNG first and remove it when recognition returns.
package ocr
