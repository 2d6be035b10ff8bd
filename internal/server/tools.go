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
		"description": "Absolute path to the frame (FITS, PNG, JPEG or GIF)",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Frame access
		{
			Name:        "frame_load",
			Description: "Load a frame and return its dimensions, kind (light, flat, dark, bias), binning, subframe origin and pixel range. Optionally include the header cards.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"include_header": map[string]interface{}{
						"type":        "boolean",
						"description": "Include every header card in the result. Default false",
						"default":     false,
					},
					"reload": map[string]interface{}{
						"type":        "boolean",
						"description": "Drop the cached frame and its analysis and read the file again. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "frame_profile",
			Description: "Sum stored rows [y0, y1) column by column over columns [x0, x1). Returns one value per column.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"y0": map[string]interface{}{
						"type":        "integer",
						"description": "First stored row (inclusive)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Last stored row (exclusive)",
					},
					"x0": map[string]interface{}{
						"type":        "integer",
						"description": "First stored column (inclusive). Default 0",
					},
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Last stored column (exclusive). Default frame width",
					},
				},
				"required": []string{"path", "y0", "y1"},
			},
		},
		{
			Name:        "frame_sample",
			Description: "Get the pixel value at a stored (binned) coordinate, or at an unbinned chip coordinate when unbinned is true.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"x": map[string]interface{}{
						"type":        "number",
						"description": "Column",
					},
					"y": map[string]interface{}{
						"type":        "number",
						"description": "Row",
					},
					"unbinned": map[string]interface{}{
						"type":        "boolean",
						"description": "Interpret x and y as unbinned chip pixels. Default false",
						"default":     false,
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},

		// ND filter
		{
			Name:        "nd_filter_geometry",
			Description: "Estimate the ND filter edge lines in unbinned chip pixels. Returns both edges (slope, intercept at ref_y), the mode used, per-band edge samples, width, tilt and whether the configured prior was used as a fallback.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "nd_filter_mask",
			Description: "Summarize the pixels strictly inside the ND filter: masked rows, pixel count and median value. Optionally list the pixel coordinates.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"include_coords": map[string]interface{}{
						"type":        "boolean",
						"description": "Include stored pixel coordinates. Default false",
						"default":     false,
					},
					"max_coords": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of coordinates returned. Default 1000",
						"default":     1000,
					},
				},
				"required": []string{"path"},
			},
		},

		// Target
		{
			Name:        "object_center",
			Description: "Locate the target: centroid, desired center on the filter midline, the move between them, perpendicular distance to the midline, filter tilt and whether the target is behind the filter.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Diagnostics
		{
			Name:        "frame_overlay",
			Description: "Render the frame as a base64 PNG with the filter edges, mask margins, target and desired center marked.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"false_color": map[string]interface{}{
						"type":        "boolean",
						"description": "Use a false-color intensity scale. Default false",
						"default":     false,
					},
					"max_width": map[string]interface{}{
						"type":        "integer",
						"description": "Scale the output down to at most this many columns. Default 1024",
						"default":     1024,
					},
					"gamma": map[string]interface{}{
						"type":        "number",
						"description": "Display gamma; values above 1 brighten. Default 1",
						"default":     1.0,
					},
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Optional crop: left stored column (inclusive)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Optional crop: top stored row (inclusive)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Optional crop: right stored column (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Optional crop: bottom stored row (exclusive)",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "fit_line",
			Description: "Robust straight-line fit of y against x. Points further than max_residual from the robust line are pruned and the line refit.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "number"},
						"description": "Independent values",
					},
					"y": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "number"},
						"description": "Dependent values, same length as x",
					},
					"max_residual": map[string]interface{}{
						"type":        "number",
						"description": "Pruning threshold. 0 disables pruning",
					},
				},
				"required": []string{"x", "y"},
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
