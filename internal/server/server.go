package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/ironsheep/ndfilter-mcp/internal/analysis"
	"github.com/ironsheep/ndfilter-mcp/internal/config"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
)

// Version is reported in the initialize handshake.
var Version = "0.1.0"

// Server handles MCP protocol communication
type Server struct {
	cache *frame.FrameCache
	cfg   *config.TuningConfig

	mu       sync.Mutex
	analyses map[string]*analysis.Analysis
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a server using cfg for every analysis. A nil cfg uses the
// built-in defaults and no prior geometry.
func New(cfg *config.TuningConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	return &Server{
		cache:    frame.NewFrameCache(),
		cfg:      cfg,
		analyses: make(map[string]*analysis.Analysis),
	}
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve answers newline-delimited requests from r on w until r is exhausted.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("[server] failed to parse request: %v", err)
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				log.Printf("[server] failed to encode response: %v", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "ndfilter-mcp",
				"version": Version,
			},
		},
	}
}

// analysisFor returns the memoized analysis of the frame at path, loading
// the frame through the cache on first use.
func (s *Server) analysisFor(path string) (*analysis.Analysis, error) {
	s.mu.Lock()
	a, ok := s.analyses[path]
	s.mu.Unlock()
	if ok {
		return a, nil
	}

	f, err := s.cache.Load(path)
	if err != nil {
		return nil, err
	}
	nd := s.cfg.ToNDFilter()
	cen := s.cfg.ToCentroid()
	fresh := analysis.New(f, analysis.Options{Prior: s.cfg.Prior(), NDFilter: &nd, Centroid: &cen})

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.analyses[path]; ok {
		return a, nil
	}
	s.analyses[path] = fresh
	return fresh, nil
}

// forget drops the cached frame and analysis for path.
func (s *Server) forget(path string) {
	s.cache.Evict(path)
	s.mu.Lock()
	delete(s.analyses, path)
	s.mu.Unlock()
}
