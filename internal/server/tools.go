package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the frame file",
	}
}

func spanProperty(axis string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"start": map[string]interface{}{"type": "integer", "description": "First " + axis + " (0-based)"},
			"end":   map[string]interface{}{"type": "integer", "description": "One past the last " + axis + "; 0 means the frame edge"},
		},
		"required": []string{"start"},
	}
}

func outDirProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Existing directory that receives the focus image as <uuid>.png",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Frame Information
		{
			Name:        "frame_info",
			Description: "Load a frame and return its dimensions, format, file size and whether it decoded as single-channel grayscale.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Focus Operations
		{
			Name:        "frame_scan_window",
			Description: "Locate the live scan window of a grayscale frame. Returns its bounds in frame coordinates. The search is restricted to a row/column selection that skips the device overlays unless one is given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"rows": spanProperty("row"),
					"cols": spanProperty("column"),
					"whole_frame": map[string]interface{}{
						"type":        "boolean",
						"description": "Search the whole frame instead of a selection",
						"default":     false,
					},
					"include_preview": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the frame with the bounds outlined, as base64-encoded PNG",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "frame_focus_grayscale",
			Description: "Extract the scan window of a grayscale frame, with the curvature line trimmed off, and save it as a PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"out_dir": outDirProperty(),
				},
				"required": []string{"path", "out_dir"},
			},
		},
		{
			Name:        "frame_focus_color",
			Description: "Extract the region a color frame outlines with its highlight rectangle, without the border, and save it as a PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"out_dir": outDirProperty(),
				},
				"required": []string{"path", "out_dir"},
			},
		},

		// Metadata Operations
		{
			Name:        "frame_metadata",
			Description: "Read the overlay text of a frame (radiality, depth scale, caliper sizes and, for color frames, color mode, color level, wall filter and PRF) and return it as a metadata record.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"image_type": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"GRAYSCALE", "COLOR"},
						"description": "Frame type. Color fields are only read for COLOR frames.",
					},
					"raw": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the recognized text of each overlay region instead of the parsed record",
						"default":     false,
					},
				},
				"required": []string{"path", "image_type"},
			},
		},

		// OCR Operations
		{
			Name:        "ocr_words",
			Description: "Recognize individual words in an image with their bounding boxes and confidence.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"language": map[string]interface{}{
						"type":        "string",
						"description": "OCR language (default 'eng')",
						"default":     "eng",
					},
					"whitelist": map[string]interface{}{
						"type":        "string",
						"description": "Restrict recognition to these characters",
					},
					"min_confidence": map[string]interface{}{
						"type":        "number",
						"description": "Drop words below this confidence (0-1, default 0)",
						"default":     0,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "ocr_info",
			Description: "Report the Tesseract version and installed languages.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
