// Package server implements the MCP (Model Context Protocol) server for the
// ultrasound frame pipeline.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Frame Information:
//   - frame_info: Dimensions, format and channel layout of a frame
//
// Focus Operations:
//   - frame_scan_window: Scan window bounds of a grayscale frame, optionally with an outlined preview
//   - frame_focus_grayscale: Save the scan window of a grayscale frame
//   - frame_focus_color: Save the highlighted region of a color frame
//
// Metadata Operations:
//   - frame_metadata: Overlay metadata record, or the raw recognized text
//
// OCR Operations:
//   - ocr_words: Words with bounding boxes and confidence
//   - ocr_info: Tesseract version and languages
//
// # Frame Caching
//
// Decoded frames are cached by path for the lifetime of the process, so a
// client asking for the scan window and then the metadata of the same frame
// decodes it once.
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC error responses:
//   - code -32602: malformed arguments or settings no frame could satisfy
//   - code -32000: the tool ran and failed on this frame (no contour, unreadable
//     overlay, missing file)
//
// The data field carries the Go error string.
package server
