package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ironsheep/labelme-tools-mcp/internal/convert"
	"github.com/ironsheep/labelme-tools-mcp/internal/logger"
	"github.com/ironsheep/labelme-tools-mcp/internal/progress"
	"github.com/ironsheep/labelme-tools-mcp/internal/scanner"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "labelme_convert").
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
// A conversion that could not start is a result, not an error: its JSON has
// "success": false and the content is flagged with isError.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	log := s.log.With(logger.FieldTool, params.Name, logger.FieldDuration, time.Since(start).Milliseconds())
	if err != nil {
		log.Infow("Tool call failed", logger.FieldError, err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	log.Debugw("Tool call finished")

	content := map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": mustMarshalJSON(result),
			},
		},
	}
	if r, ok := result.(convert.Result); ok && !r.Success {
		content["isError"] = true
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  content,
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "labelme_convert":
		return s.handleConvert(args)
	case "labelme_scan_labels":
		return s.handleScanLabels(ctx, args)
	case "labelme_scan_label_counts":
		return s.handleScanLabelCounts(ctx, args)
	case "labelme_analyze_format":
		return s.handleAnalyzeFormat(ctx, args)
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
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// emitter returns a progress emitter for event, or nil when the caller did
// not ask for progress.
func (s *Server) emitter(event string) *progress.Emitter {
	if event == "" {
		return nil
	}
	return progress.NewEmitter(event, s.notifier())
}

// === Conversion ===

// requestFields has the fields of convert.Request without its UnmarshalJSON,
// so arguments decode on top of the server's configured defaults.
type requestFields convert.Request

type eventArgs struct {
	Event string `json:"event"`
}

func (s *Server) handleConvert(args json.RawMessage) (interface{}, error) {
	fields := requestFields(s.defaults)
	fields.LabelList = append([]string(nil), s.defaults.LabelList...)
	if err := json.Unmarshal(args, &fields); err != nil {
		return nil, err
	}
	var ev eventArgs
	if err := json.Unmarshal(args, &ev); err != nil {
		return nil, err
	}

	em := s.emitter(ev.Event)
	cfg, err := convert.Request(fields).ToConfig()
	if err != nil {
		em.Error(err.Error())
		return convert.Rejected(err), nil
	}

	opts := []convert.RunOption{
		convert.WithListingCache(s.listings),
		convert.WithDimensionCache(s.dims),
		convert.WithAnalysis(s.analysis),
	}
	if em != nil {
		opts = append(opts, convert.WithProgress(ev.Event, s.notifier()))
	}

	result := convert.Convert(cfg, opts...)
	if result.Success {
		// The new dataset may sit inside a directory whose listing is cached.
		s.listings.Invalidate(result.OutputDir)
	}
	return result, nil
}

// === Scans ===

type scanArgs struct {
	InputDir string `json:"input_dir"`
	Event    string `json:"event"`
}

func parseScanArgs(args json.RawMessage) (scanArgs, error) {
	var a scanArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return a, err
	}
	if a.InputDir == "" {
		return a, fmt.Errorf("input_dir is required")
	}
	return a, nil
}

type labelsResult struct {
	Labels []string `json:"labels"`
	Count  int      `json:"count"`
}

func (s *Server) handleScanLabels(ctx context.Context, args json.RawMessage) (interface{}, error) {
	a, err := parseScanArgs(args)
	if err != nil {
		return nil, err
	}
	labels, err := s.scanner.LabelsAsync(ctx, a.InputDir, s.emitter(a.Event)).Wait(ctx)
	if err != nil {
		return nil, err
	}
	return labelsResult{Labels: labels, Count: len(labels)}, nil
}

type labelCountsResult struct {
	Labels           []scanner.LabelCount `json:"labels"`
	Counts           map[string]int       `json:"counts"`
	TotalAnnotations int                  `json:"total_annotations"`
}

func (s *Server) handleScanLabelCounts(ctx context.Context, args json.RawMessage) (interface{}, error) {
	a, err := parseScanArgs(args)
	if err != nil {
		return nil, err
	}
	counts, err := s.scanner.LabelCountsAsync(ctx, a.InputDir, s.emitter(a.Event)).Wait(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return labelCountsResult{Labels: scanner.Summarize(counts), Counts: counts, TotalAnnotations: total}, nil
}

func (s *Server) handleAnalyzeFormat(ctx context.Context, args json.RawMessage) (interface{}, error) {
	a, err := parseScanArgs(args)
	if err != nil {
		return nil, err
	}
	return s.scanner.AnalyzeFormatAsync(ctx, a.InputDir, s.emitter(a.Event)).Wait(ctx)
}
