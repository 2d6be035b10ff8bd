// Package server implements the MCP (Model Context Protocol) server for
// ND-filter analysis of coronagraph frames.
//
// This package provides a JSON-RPC 2.0 server that exposes the frame,
// filter-geometry and centroid operations through the MCP protocol, so an
// MCP client can inspect a night's frames and check target alignment.
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
// Frame access:
//   - frame_load: Load a FITS or image file and describe it
//   - frame_profile: Column sums over a band of rows
//   - frame_sample: Pixel value in stored or chip coordinates
//
// ND filter:
//   - nd_filter_geometry: Fit the two filter edges
//   - nd_filter_mask: Summarise the pixels inside the filter
//
// Target:
//   - object_center: Target centroid, desired center and the move between them
//
// Diagnostics:
//   - frame_overlay: Annotated PNG of the frame
//   - fit_line: Robust line fit of arbitrary points
//
// # Caching
//
// Frames are cached by path, and each frame's geometry, mask and centroid
// are computed at most once. frame_load with reload set drops both.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
