package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/ironsheep/labelme-tools-mcp/internal/convert"
	"github.com/ironsheep/labelme-tools-mcp/internal/dataset"
	"github.com/ironsheep/labelme-tools-mcp/internal/detect"
	"github.com/ironsheep/labelme-tools-mcp/internal/imaging"
	"github.com/ironsheep/labelme-tools-mcp/internal/logger"
	"github.com/ironsheep/labelme-tools-mcp/internal/progress"
	"github.com/ironsheep/labelme-tools-mcp/internal/scanner"
)

// Server handles MCP protocol communication
type Server struct {
	version  string
	defaults convert.Request
	analysis detect.AnalysisConfig
	scanner  *scanner.Scanner
	listings *dataset.ListingCache
	dims     *imaging.DimensionCache
	log      *zap.SugaredLogger

	writeMu sync.Mutex
	enc     *json.Encoder
	calls   sync.WaitGroup
}

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	Version string
	// Defaults are applied to labelme_convert arguments before the call's own
	// arguments.
	Defaults convert.Request
	Analysis detect.AnalysisConfig
	Scanner  *scanner.Scanner
	Listings *dataset.ListingCache
	Dims     *imaging.DimensionCache
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

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a new MCP server instance
func New(opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Defaults.OutputFormat == "" {
		opts.Defaults = convert.DefaultRequest()
	}
	if opts.Analysis == (detect.AnalysisConfig{}) {
		opts.Analysis = detect.DefaultConfig()
	}
	if opts.Listings == nil {
		opts.Listings = dataset.NewListingCache(dataset.DefaultListingTTL)
	}
	if opts.Scanner == nil {
		cfg := scanner.DefaultConfig()
		cfg.Analysis = opts.Analysis
		opts.Scanner = scanner.New(cfg, opts.Listings)
	}
	if opts.Dims == nil {
		opts.Dims = imaging.NewDimensionCache()
	}
	return &Server{
		version:  opts.Version,
		defaults: opts.Defaults,
		analysis: opts.Analysis,
		scanner:  opts.Scanner,
		listings: opts.Listings,
		dims:     opts.Dims,
		log:      logger.Named("server"),
		enc:      json.NewEncoder(io.Discard),
	}
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run(ctx context.Context) error {
	return s.RunIO(ctx, os.Stdin, os.Stdout)
}

// RunIO serves requests read line by line from in until EOF. tools/call
// requests run concurrently; every write to out is serialized. RunIO returns
// after in-flight calls have finished.
func (s *Server) RunIO(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := bufio.NewScanner(in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	lines.Buffer(buf, 1024*1024)

	s.enc = json.NewEncoder(out)
	defer s.calls.Wait()

	for lines.Scan() {
		line := lines.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warnw("Failed to parse request", logger.FieldError, err)
			continue
		}

		if req.Method == "tools/call" {
			s.calls.Add(1)
			go func(req MCPRequest) {
				defer s.calls.Done()
				s.send(s.handleToolsCall(ctx, &req))
			}(req)
			continue
		}

		if resp := s.handleRequest(&req); resp != nil {
			s.send(resp)
		}
	}

	if err := lines.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// send writes one message. Tool calls and their progress notifications share
// the output stream, so writes are serialized.
func (s *Server) send(v interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		s.log.Warnw("Failed to encode message", logger.FieldError, err)
	}
}

// notifier streams progress events as notifications/progress messages and
// mirrors them to the debug log.
func (s *Server) notifier() progress.Reporter {
	notify := progress.ReporterFunc(func(e progress.Event) {
		s.send(&MCPNotification{
			JSONRPC: "2.0",
			Method:  "notifications/progress",
			Params:  e,
		})
	})
	return progress.Multi(notify, progress.LogReporter(s.log))
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
				"name":    "labelme-tools-mcp",
				"version": s.version,
			},
		},
	}
}
