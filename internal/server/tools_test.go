package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"frame_info",
		"frame_scan_window",
		"frame_focus_grayscale",
		"frame_focus_color",
		"frame_metadata",
		"ocr_words",
		"ocr_info",
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(tools), len(expectedTools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("Duplicate tool name: %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}
	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want object", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema properties should be a map")
			}

			required, _ := tool.InputSchema["required"].([]string)
			for _, name := range required {
				if _, ok := props[name]; !ok {
					t.Errorf("required property %s not defined", name)
				}
			}
		})
	}
}

func TestToolDefinitions_PathRequired(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		if tool.Name == "ocr_info" {
			continue
		}
		required, _ := tool.InputSchema["required"].([]string)
		found := false
		for _, name := range required {
			if name == "path" {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: path should be required", tool.Name)
		}
	}
}
