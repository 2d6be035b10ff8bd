package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
	"github.com/ironsheep/ndfilter-mcp/internal/overlay"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "frame_load", "nd_filter_geometry").
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
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		log.Printf("[server] %s failed: %v", params.Name, err)
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
	// Frame access
	case "frame_load":
		return s.handleFrameLoad(args)
	case "frame_profile":
		return s.handleFrameProfile(args)
	case "frame_sample":
		return s.handleFrameSample(args)

	// ND filter
	case "nd_filter_geometry":
		return s.handleNDFilterGeometry(args)
	case "nd_filter_mask":
		return s.handleNDFilterMask(args)

	// Target
	case "object_center":
		return s.handleObjectCenter(args)

	// Diagnostics
	case "frame_overlay":
		return s.handleFrameOverlay(args)
	case "fit_line":
		return s.handleFitLine(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
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
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type pathArgs struct {
	Path string `json:"path"`
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (a pathArgs) validate() error {
	if a.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

// === Frame access handlers ===

type frameLoadArgs struct {
	Path          string `json:"path"`
	IncludeHeader bool   `json:"include_header"`
	Reload        bool   `json:"reload"`
}

func (s *Server) handleFrameLoad(args json.RawMessage) (interface{}, error) {
	var a frameLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{a.Path}).validate(); err != nil {
		return nil, err
	}
	if a.Reload {
		s.forget(a.Path)
	}
	return frame.LoadFrameInfo(s.cache, a.Path, a.IncludeHeader)
}

type frameProfileArgs struct {
	Path string `json:"path"`
	Y0   int    `json:"y0"`
	Y1   int    `json:"y1"`
	X0   *int   `json:"x0"`
	X1   *int   `json:"x1"`
}

type profileResult struct {
	Y0     int       `json:"y0"`
	Y1     int       `json:"y1"`
	X0     int       `json:"x0"`
	X1     int       `json:"x1"`
	Values []float64 `json:"values"`
}

func (s *Server) handleFrameProfile(args json.RawMessage) (interface{}, error) {
	var a frameProfileArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{a.Path}).validate(); err != nil {
		return nil, err
	}
	f, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	x0, x1 := 0, f.Width
	if a.X0 != nil {
		x0 = *a.X0
	}
	if a.X1 != nil {
		x1 = *a.X1
	}
	values, err := f.Profile(a.Y0, a.Y1, x0, x1)
	if err != nil {
		return nil, err
	}
	return &profileResult{Y0: a.Y0, Y1: a.Y1, X0: x0, X1: x1, Values: values}, nil
}

type frameSampleArgs struct {
	Path     string  `json:"path"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Unbinned bool    `json:"unbinned"`
}

func (s *Server) handleFrameSample(args json.RawMessage) (interface{}, error) {
	var a frameSampleArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{a.Path}).validate(); err != nil {
		return nil, err
	}
	f, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	if a.Unbinned {
		return f.SampleUnbinned(a.Y, a.X)
	}
	return f.Sample(int(math.Floor(a.Y)), int(math.Floor(a.X)))
}

// === ND filter handlers ===

type geometryResult struct {
	*ndfilter.Estimate
	Width         float64 `json:"width"`
	TiltDegrees   float64 `json:"tilt_degrees"`
	ParallelDelta float64 `json:"parallel_delta"`
}

func (s *Server) handleNDFilterGeometry(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	an, err := s.analysisFor(a.Path)
	if err != nil {
		return nil, err
	}
	est, err := an.Geometry()
	if err != nil {
		return nil, err
	}
	g := est.Geometry
	return &geometryResult{
		Estimate:      est,
		Width:         g.Width(),
		TiltDegrees:   g.TiltDegrees(),
		ParallelDelta: g.ParallelDelta(float64(an.Frame().UnbinnedHeight())),
	}, nil
}

type maskArgs struct {
	Path          string `json:"path"`
	IncludeCoords bool   `json:"include_coords"`
	MaxCoords     int    `json:"max_coords"`
}

type maskResult struct {
	Rows      int              `json:"rows"`
	Pixels    int              `json:"pixels"`
	Median    float64          `json:"median"`
	FirstRow  int              `json:"first_row"`
	LastRow   int              `json:"last_row"`
	Coords    []ndfilter.Coord `json:"coords,omitempty"`
	Truncated bool             `json:"truncated,omitempty"`
}

func (s *Server) handleNDFilterMask(args json.RawMessage) (interface{}, error) {
	var a maskArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{a.Path}).validate(); err != nil {
		return nil, err
	}
	if a.MaxCoords <= 0 {
		a.MaxCoords = 1000
	}
	an, err := s.analysisFor(a.Path)
	if err != nil {
		return nil, err
	}
	m, err := an.Mask()
	if err != nil {
		return nil, err
	}

	res := &maskResult{Rows: len(m.Spans), Pixels: m.Len(), FirstRow: -1, LastRow: -1}
	if len(m.Spans) > 0 {
		res.FirstRow = m.Spans[0].Y
		res.LastRow = m.Spans[len(m.Spans)-1].Y
	}
	if vals := m.Values(an.Frame().Pixels); len(vals) > 0 {
		sort.Float64s(vals)
		res.Median = stat.Quantile(0.5, stat.Empirical, vals, nil)
	}
	if a.IncludeCoords {
		coords := m.Coords()
		if len(coords) > a.MaxCoords {
			coords = coords[:a.MaxCoords]
			res.Truncated = true
		}
		res.Coords = coords
	}
	return res, nil
}

// === Target handlers ===

func (s *Server) handleObjectCenter(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	an, err := s.analysisFor(a.Path)
	if err != nil {
		return nil, err
	}
	return an.Centroid()
}

// === Diagnostic handlers ===

type overlayArgs struct {
	Path       string   `json:"path"`
	FalseColor bool     `json:"false_color"`
	MaxWidth   *int     `json:"max_width"`
	Gamma      *float64 `json:"gamma"`
	X1         *int     `json:"x1"`
	Y1         *int     `json:"y1"`
	X2         *int     `json:"x2"`
	Y2         *int     `json:"y2"`
}

type overlayResult struct {
	*overlay.Result
	Annotated []string `json:"annotated"`
	Notes     []string `json:"notes,omitempty"`
}

func (s *Server) handleFrameOverlay(args json.RawMessage) (interface{}, error) {
	var a overlayArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{a.Path}).validate(); err != nil {
		return nil, err
	}
	an, err := s.analysisFor(a.Path)
	if err != nil {
		return nil, err
	}

	opts := overlay.DefaultOptions()
	opts.FalseColor = a.FalseColor
	opts.MaxWidth = 1024
	if a.MaxWidth != nil {
		opts.MaxWidth = *a.MaxWidth
	}
	if a.Gamma != nil {
		opts.Gamma = *a.Gamma
	}
	if a.X1 != nil || a.Y1 != nil || a.X2 != nil || a.Y2 != nil {
		if a.X1 == nil || a.Y1 == nil || a.X2 == nil || a.Y2 == nil {
			return nil, errors.New("crop needs all of x1, y1, x2, y2")
		}
		r := image.Rect(*a.X1, *a.Y1, *a.X2, *a.Y2)
		opts.Region = &r
	}

	// Annotations are best effort: a frame with no measurable filter still
	// renders.
	var ann overlay.Annotations
	res := &overlayResult{Annotated: []string{}}
	if est, err := an.Geometry(); err == nil {
		g := est.Geometry
		ann.Geometry = &g
		ann.EdgeMargin = s.cfg.ToNDFilter().EdgeMargin
		res.Annotated = append(res.Annotated, "edges", "margins")
		if d, err := an.DesiredCenter(); err == nil {
			ann.Desired = &d
			res.Annotated = append(res.Annotated, "desired_center")
		} else {
			res.Notes = append(res.Notes, err.Error())
		}
	} else {
		res.Notes = append(res.Notes, err.Error())
	}
	if c, err := an.Centroid(); err == nil && c.TargetFound {
		obj := c.ObjectCenter
		ann.Object = &obj
		res.Annotated = append(res.Annotated, "object_center")
	} else if err != nil && ann.Geometry != nil {
		res.Notes = append(res.Notes, err.Error())
	}

	img, err := overlay.Render(an.Frame(), ann, opts)
	if err != nil {
		return nil, err
	}
	enc, err := overlay.Encode(img)
	if err != nil {
		return nil, err
	}
	res.Result = enc
	return res, nil
}

type fitLineArgs struct {
	X           []float64 `json:"x"`
	Y           []float64 `json:"y"`
	MaxResidual float64   `json:"max_residual"`
}

func (s *Server) handleFitLine(args json.RawMessage) (interface{}, error) {
	var a fitLineArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return fit.FitLine(a.X, a.Y, fit.Options{MaxResidual: a.MaxResidual})
}
