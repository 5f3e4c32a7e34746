package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goodmattg/ultrasound-frames/internal/focus"
	"github.com/goodmattg/ultrasound-frames/internal/frame"
	"github.com/goodmattg/ultrasound-frames/internal/metadata"
	"github.com/goodmattg/ultrasound-frames/internal/ocr"
)

// nopRecognizer recognizes nothing.
type nopRecognizer struct{}

func (nopRecognizer) Recognize(string, ocr.Options) (string, error) {
	return "", nil
}

// overlayRecognizer answers left-bar crops with a color overlay and numeric
// crops with 3.5.
type overlayRecognizer struct{}

func (overlayRecognizer) Recognize(_ string, opts ocr.Options) (string, error) {
	if opts.Whitelist == "" {
		return "RAD\nCOL 36\nWF LOW\nPRF 1200", nil
	}
	return "3.5", nil
}

type failingRecognizer struct{}

func (failingRecognizer) Recognize(string, ocr.Options) (string, error) {
	return "", errors.New("tesseract crashed")
}

// writeFrame encodes img as a PNG in a fresh temp dir and returns its path.
func writeFrame(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// scanFrame is a 300x240 dark frame with a bright scan region.
func scanFrame() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 300, 240))
	for y := 100; y < 210; y++ {
		for x := 120; x < 260; x++ {
			img.SetGray(x, y, color.Gray{Y: 200})
		}
	}
	return img
}

// highlightFrame is a gray frame with a 2px cyan outline at x 50-149,
// y 40-119.
func highlightFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 200, 160))
	outer := image.Rect(50, 40, 150, 120)
	for y := 0; y < 160; y++ {
		for x := 0; x < 200; x++ {
			c := color.RGBA{128, 128, 128, 255}
			p := image.Pt(x, y)
			if p.In(outer) && !p.In(outer.Inset(2)) {
				c = color.RGBA{0, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// callTool runs a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeResult unmarshals the text content of a successful tool response.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
}

func TestHandleToolsCall_FrameInfo(t *testing.T) {
	s := newTestServer(t, nopRecognizer{})
	path := writeFrame(t, scanFrame())

	var info frame.Info
	decodeResult(t, callTool(t, s, "frame_info", map[string]interface{}{"path": path}), &info)
	if info.Width != 300 || info.Height != 240 || info.Format != "png" || !info.Grayscale {
		t.Errorf("info: got %+v", info)
	}
}

func TestHandleToolsCall_FrameInfoMissing(t *testing.T) {
	s := newTestServer(t, nopRecognizer{})
	resp := callTool(t, s, "frame_info", map[string]interface{}{"path": "/nonexistent/frame.png"})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected tool execution error, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_FrameScanWindow(t *testing.T) {
	s := newTestServer(t, nopRecognizer{})
	path := writeFrame(t, scanFrame())

	var result ScanWindowResult
	decodeResult(t, callTool(t, s, "frame_scan_window", map[string]interface{}{
		"path":            path,
		"include_preview": true,
	}), &result)

	want := focus.ScanBounds{X: 117, Y: 97, W: 143, H: 117}
	if result.Bounds != want {
		t.Errorf("bounds: got %v, want %v", result.Bounds, want)
	}
	if result.Selection == nil || result.Selection.Rows.Start != 70 || result.Selection.Cols.Start != 90 {
		t.Errorf("selection: got %+v", result.Selection)
	}
	if result.Preview == nil || result.Preview.Width != 300 || result.Preview.MimeType != "image/png" {
		t.Fatalf("preview: got %+v", result.Preview)
	}

	data, err := base64.StdEncoding.DecodeString(result.Preview.ImageBase64)
	if err != nil {
		t.Fatalf("preview is not base64: %v", err)
	}
	preview, err := png.Decode(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("preview is not a PNG: %v", err)
	}
	if g := color.GrayModel.Convert(preview.At(want.X, want.Y)).(color.Gray); g.Y != previewLevel {
		t.Errorf("preview corner: got %d, want %d", g.Y, previewLevel)
	}
}

func TestHandleToolsCall_FrameScanWindowArguments(t *testing.T) {
	s := newTestServer(t, nopRecognizer{})
	path := writeFrame(t, scanFrame())

	var whole ScanWindowResult
	decodeResult(t, callTool(t, s, "frame_scan_window", map[string]interface{}{
		"path":        path,
		"whole_frame": true,
	}), &whole)
	if whole.Selection != nil {
		t.Errorf("whole frame search reported selection %+v", whole.Selection)
	}
	if whole.Bounds.Empty() || !whole.Bounds.Image().In(image.Rect(0, 0, 300, 240)) {
		t.Errorf("whole frame bounds: got %v", whole.Bounds)
	}

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"inverted rows", map[string]interface{}{"path": path, "rows": map[string]interface{}{"start": 50, "end": 10}}, -32602},
		{"whole frame with cols", map[string]interface{}{"path": path, "whole_frame": true, "cols": map[string]interface{}{"start": 5}}, -32602},
		{"selection outside frame", map[string]interface{}{"path": path, "cols": map[string]interface{}{"start": 400}}, -32000},
		{"bad argument type", map[string]interface{}{"path": 12}, -32602},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, s, "frame_scan_window", tt.args)
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("expected code %d, got %+v", tt.code, resp.Error)
			}
		})
	}
}

func TestHandleToolsCall_FrameFocusGrayscale(t *testing.T) {
	s := newTestServer(t, nopRecognizer{})
	path := writeFrame(t, scanFrame())
	outDir := t.TempDir()

	var result FocusResult
	decodeResult(t, callTool(t, s, "frame_focus_grayscale", map[string]interface{}{
		"path":    path,
		"out_dir": outDir,
	}), &result)
	if filepath.Dir(result.Focus) != outDir {
		t.Fatalf("focus %s not in %s", result.Focus, outDir)
	}
	img, err := frame.Open(result.Focus)
	if err != nil {
		t.Fatalf("focus not readable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 143 || b.Dy() != 117 {
		t.Errorf("focus size: got %dx%d, want 143x117", b.Dx(), b.Dy())
	}
}

func TestHandleToolsCall_FrameFocusColor(t *testing.T) {
	s := newTestServer(t, nopRecognizer{})
	path := writeFrame(t, highlightFrame())
	outDir := t.TempDir()

	var result FocusResult
	decodeResult(t, callTool(t, s, "frame_focus_color", map[string]interface{}{
		"path":    path,
		"out_dir": outDir,
	}), &result)
	img, err := frame.Open(result.Focus)
	if err != nil {
		t.Fatalf("focus not readable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 90 || b.Dy() != 70 {
		t.Errorf("focus size: got %dx%d, want 90x70", b.Dx(), b.Dy())
	}
}

func TestHandleToolsCall_FrameFocusErrors(t *testing.T) {
	s := newTestServer(t, nopRecognizer{})
	dark := writeFrame(t, image.NewGray(image.Rect(0, 0, 300, 240)))

	resp := callTool(t, s, "frame_focus_grayscale", map[string]interface{}{"path": dark})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("missing out_dir: got %+v", resp.Error)
	}

	resp = callTool(t, s, "frame_focus_grayscale", map[string]interface{}{"path": dark, "out_dir": t.TempDir()})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("no scan window: got %+v", resp.Error)
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, "focus extraction failed") {
		t.Errorf("error data: got %v", resp.Error.Data)
	}
}

func TestHandleToolsCall_FrameMetadata(t *testing.T) {
	s := newTestServer(t, overlayRecognizer{})
	path := writeFrame(t, image.NewGray(image.Rect(0, 0, 640, 480)))

	var values map[string]interface{}
	decodeResult(t, callTool(t, s, "frame_metadata", map[string]interface{}{
		"path":       path,
		"image_type": "COLOR",
	}), &values)

	want := map[string]interface{}{
		"IMAGE_TYPE": "COLOR",
		"RADIALITY":  "RAD",
		"SCALE":      3.5,
		"COLOR_MODE": "COL",
		"COL":        float64(86),
		"WF":         "LOW",
		"PRF":        float64(1200),
	}
	for k, v := range want {
		if values[k] != v {
			t.Errorf("%s: got %v, want %v", k, values[k], v)
		}
	}

	var gray map[string]interface{}
	decodeResult(t, callTool(t, s, "frame_metadata", map[string]interface{}{
		"path":       path,
		"image_type": "GRAYSCALE",
	}), &gray)
	if _, ok := gray["PRF"]; ok {
		t.Errorf("grayscale record has color keys: %v", gray)
	}

	var raw metadata.Readout
	decodeResult(t, callTool(t, s, "frame_metadata", map[string]interface{}{
		"path":       path,
		"image_type": "COLOR",
		"raw":        true,
	}), &raw)
	if raw.Scale != "3.5" || !strings.HasPrefix(raw.LeftBar, "RAD") {
		t.Errorf("raw readout: got %+v", raw)
	}
}

func TestHandleToolsCall_FrameMetadataErrors(t *testing.T) {
	path := writeFrame(t, image.NewGray(image.Rect(0, 0, 640, 480)))
	small := writeFrame(t, image.NewGray(image.Rect(0, 0, 320, 240)))

	tests := []struct {
		name string
		rec  metadata.Recognizer
		args map[string]interface{}
		code int
	}{
		{"missing type", overlayRecognizer{}, map[string]interface{}{"path": path}, -32602},
		{"unknown type", overlayRecognizer{}, map[string]interface{}{"path": path, "image_type": "DOPPLER"}, -32602},
		{"frame too small", overlayRecognizer{}, map[string]interface{}{"path": small, "image_type": "COLOR"}, -32000},
		{"no color overlay", nopRecognizer{}, map[string]interface{}{"path": path, "image_type": "COLOR"}, -32000},
		{"recognizer failure", failingRecognizer{}, map[string]interface{}{"path": path, "image_type": "GRAYSCALE"}, -32000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.rec)
			resp := callTool(t, s, "frame_metadata", tt.args)
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("expected code %d, got %+v", tt.code, resp.Error)
			}
		})
	}
}

func TestHandleToolsCall_OCRWithoutBackend(t *testing.T) {
	s := newTestServer(t, nopRecognizer{})
	s.tesseract = nil
	for _, name := range []string{"ocr_info", "ocr_words"} {
		resp := callTool(t, s, name, map[string]interface{}{"path": "/tmp/x.png"})
		if resp.Error == nil || resp.Error.Code != -32000 {
			t.Errorf("%s: expected tool execution error, got %+v", name, resp.Error)
		}
	}
}

func TestHandleToolsCall_OCRInfo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OCR test in short mode")
	}
	s := newTestServer(t, nopRecognizer{})

	var info ocr.Info
	decodeResult(t, callTool(t, s, "ocr_info", nil), &info)
	if info.Backend != "gosseract" {
		t.Errorf("backend: got %q", info.Backend)
	}
}
