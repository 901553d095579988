package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var (
	inputDirProperty = map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the directory of labelme JSON files (searched recursively)",
	}
	eventProperty = map[string]interface{}{
		"type":        "string",
		"description": "Optional event name. When set, progress is streamed as notifications/progress messages carrying this name.",
	}
)

func scanSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"input_dir": inputDirProperty,
			"event":     eventProperty,
		},
		"required": []string{"input_dir"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: "labelme_convert",
			Description: "Convert a directory of labelme annotations into a YOLO or COCO dataset, or a filtered labelme copy. " +
				"Returns the output directory, statistics and per-file errors.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"input_dir": inputDirProperty,
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory the dataset folder is created in. Defaults to input_dir.",
					},
					"custom_dataset_name": map[string]interface{}{
						"type":        "string",
						"description": "Dataset folder name. Defaults to <input>_<format>_<annotation>_<timestamp>.",
					},
					"output_format": map[string]interface{}{
						"type":    "string",
						"enum":    []string{"yolo", "coco", "labelme"},
						"default": "yolo",
					},
					"annotation_format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"bbox", "polygon"},
						"default":     "bbox",
						"description": "YOLO label geometry",
					},
					"val_size": map[string]interface{}{
						"type":    "number",
						"minimum": 0,
						"maximum": 1,
						"default": 0.2,
					},
					"test_size": map[string]interface{}{
						"type":    "number",
						"minimum": 0,
						"maximum": 1,
						"default": 0.0,
					},
					"seed": map[string]interface{}{
						"type":    "integer",
						"default": 42,
					},
					"include_background": map[string]interface{}{
						"type":        "boolean",
						"description": "Also export images that have no annotation file",
					},
					"label_list": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Allowed labels in class id order. Shapes with other labels are skipped.",
					},
					"deterministic_labels": map[string]interface{}{
						"type":        "boolean",
						"description": "Assign class ids from the sorted set of all labels",
					},
					"segmentation_mode": map[string]interface{}{
						"type":    "string",
						"enum":    []string{"polygon", "bbox_only"},
						"default": "polygon",
					},
					"start_image_id": map[string]interface{}{
						"type":    "integer",
						"default": 1,
					},
					"start_annotation_id": map[string]interface{}{
						"type":    "integer",
						"default": 1,
					},
					"remove_image_data": map[string]interface{}{
						"type":        "boolean",
						"description": "Strip embedded imageData from labelme output",
					},
					"labelme_output_format": map[string]interface{}{
						"type":    "string",
						"enum":    []string{"original", "bbox_2point", "bbox_4point"},
						"default": "original",
					},
					"input_format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"auto", "bbox_2point", "bbox_4point", "polygon", "unknown"},
						"description": "Skip detection and treat the dataset as this format",
					},
					"event": eventProperty,
				},
				"required": []string{"input_dir"},
			},
		},
		{
			Name:        "labelme_scan_labels",
			Description: "List the distinct labels used in a labelme dataset, sorted.",
			InputSchema: scanSchema(),
		},
		{
			Name:        "labelme_scan_label_counts",
			Description: "Count annotations per label in a labelme dataset. Rows are ordered by count and carry a display colour.",
			InputSchema: scanSchema(),
		},
		{
			Name:        "labelme_analyze_format",
			Description: "Sample a labelme dataset and report whether it uses 2-point boxes, 4-point boxes or polygons.",
			InputSchema: scanSchema(),
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
