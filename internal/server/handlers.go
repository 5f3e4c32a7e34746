package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
	"github.com/goodmattg/ultrasound-frames/internal/focus"
	"github.com/goodmattg/ultrasound-frames/internal/frame"
	"github.com/goodmattg/ultrasound-frames/internal/metadata"
	"github.com/goodmattg/ultrasound-frames/internal/morph"
	"github.com/goodmattg/ultrasound-frames/internal/ocr"
)

// Preview outline settings.
const (
	previewLevel     = 245
	previewThickness = 2
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "frame_info", "frame_metadata").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Invalid tool arguments, including settings that could never succeed,
// return code -32602. Other tool failures return -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Debug().Err(err).Str("tool", params.Name).Bool("frame_failure", fault.IsFrameFailure(err)).Msg("tool failed")
		if fault.IsMisconfigured(err) {
			return s.errorResponse(req.ID, -32602, "Invalid arguments", err.Error())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "frame_info":
		return s.handleFrameInfo(args)

	case "frame_scan_window":
		return s.handleFrameScanWindow(args)
	case "frame_focus_grayscale":
		return s.handleFrameFocusGrayscale(args)
	case "frame_focus_color":
		return s.handleFrameFocusColor(args)

	case "frame_metadata":
		return s.handleFrameMetadata(args)

	case "ocr_words":
		return s.handleOCRWords(args)
	case "ocr_info":
		return s.handleOCRInfo()

	default:
		return nil, fault.Misconfigured("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Malformed arguments are the caller's
// mistake, not the frame's.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fault.Misconfigured("invalid arguments: %v", err)
	}
	return nil
}

// ImageData is an inline PNG.
type ImageData struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

func encodePNG(img image.Image) (*ImageData, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &ImageData{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// === Frame Information Handlers ===

type frameArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleFrameInfo(args json.RawMessage) (interface{}, error) {
	var a frameArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return frame.LoadInfo(s.cache, a.Path)
}

// === Focus Handlers ===

type scanWindowArgs struct {
	Path           string      `json:"path"`
	Rows           *morph.Span `json:"rows,omitempty"`
	Cols           *morph.Span `json:"cols,omitempty"`
	WholeFrame     bool        `json:"whole_frame"`
	IncludePreview bool        `json:"include_preview"`
}

// ScanWindowResult is the frame_scan_window result.
type ScanWindowResult struct {
	Bounds focus.ScanBounds `json:"bounds"`
	// Selection is the searched region; nil when the whole frame was searched.
	Selection *focus.Selection `json:"selection,omitempty"`
	Preview   *ImageData       `json:"preview,omitempty"`
}

func (s *Server) handleFrameScanWindow(args json.RawMessage) (interface{}, error) {
	var a scanWindowArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.WholeFrame && (a.Rows != nil || a.Cols != nil) {
		return nil, fault.Misconfigured("whole_frame cannot be combined with rows or cols")
	}
	img, err := s.cache.LoadGray(a.Path)
	if err != nil {
		return nil, err
	}

	var sel *focus.Selection
	if !a.WholeFrame {
		custom := s.selection
		if a.Rows != nil {
			custom.Rows = *a.Rows
		}
		if a.Cols != nil {
			custom.Cols = *a.Cols
		}
		sel = &custom
	}

	_, bounds, err := s.grayscale.Locator().Locate(img, sel)
	if err != nil {
		return nil, err
	}
	result := &ScanWindowResult{Bounds: bounds, Selection: sel}
	if a.IncludePreview {
		preview := frame.Outline(img, bounds.Image().Add(img.Rect.Min), previewLevel, previewThickness)
		if result.Preview, err = encodePNG(preview); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type focusArgs struct {
	Path   string `json:"path"`
	OutDir string `json:"out_dir"`
}

// FocusResult is the result of the focus extraction tools.
type FocusResult struct {
	Focus string `json:"focus"`
}

func (a focusArgs) validate() error {
	if a.OutDir == "" {
		return fault.Misconfigured("out_dir is required")
	}
	return nil
}

func (s *Server) handleFrameFocusGrayscale(args json.RawMessage) (interface{}, error) {
	var a focusArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	img, err := s.cache.LoadGray(a.Path)
	if err != nil {
		return nil, err
	}
	out, err := s.grayscale.ExtractFrom(a.Path, img, a.OutDir)
	if err != nil {
		return nil, err
	}
	return &FocusResult{Focus: out}, nil
}

func (s *Server) handleFrameFocusColor(args json.RawMessage) (interface{}, error) {
	var a focusArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	out, err := s.highlight.ExtractFrom(a.Path, img, a.OutDir)
	if err != nil {
		return nil, err
	}
	return &FocusResult{Focus: out}, nil
}

// === Metadata Handlers ===

type frameMetadataArgs struct {
	Path      string              `json:"path"`
	ImageType *metadata.ImageType `json:"image_type"`
	Raw       bool                `json:"raw"`
}

func (s *Server) handleFrameMetadata(args json.RawMessage) (interface{}, error) {
	var a frameMetadataArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.ImageType == nil {
		return nil, fault.Misconfigured("image_type is required")
	}
	gray, err := s.cache.LoadGray(a.Path)
	if err != nil {
		return nil, err
	}
	if a.Raw {
		return s.metadata.Read(gray)
	}
	return s.metadata.Extract(gray, *a.ImageType)
}

// === OCR Handlers ===

var errNoOCR = errors.New("ocr backend not configured")

type ocrWordsArgs struct {
	Path          string  `json:"path"`
	Language      string  `json:"language"`
	Whitelist     string  `json:"whitelist"`
	MinConfidence float64 `json:"min_confidence"`
}

// WordsResult is the ocr_words result.
type WordsResult struct {
	Words []ocr.Word `json:"words"`
	Count int        `json:"count"`
}

func (s *Server) handleOCRWords(args json.RawMessage) (interface{}, error) {
	var a ocrWordsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.tesseract == nil {
		return nil, errNoOCR
	}
	words, err := s.tesseract.Words(a.Path, ocr.Options{Language: a.Language, Whitelist: a.Whitelist})
	if err != nil {
		return nil, err
	}
	kept := make([]ocr.Word, 0, len(words))
	for _, w := range words {
		if w.Confidence >= a.MinConfidence {
			kept = append(kept, w)
		}
	}
	return &WordsResult{Words: kept, Count: len(kept)}, nil
}

func (s *Server) handleOCRInfo() (interface{}, error) {
	if s.tesseract == nil {
		return nil, errNoOCR
	}
	return s.tesseract.Info(), nil
}
