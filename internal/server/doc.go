// Package server implements the MCP (Model Context Protocol) server for the
// labelme dataset tools.
//
// The server is a JSON-RPC 2.0 endpoint that lets an MCP client convert labelme
// annotation folders and inspect them before converting.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// tools/call requests run concurrently. A long conversion does not block a
// label scan issued after it; responses may therefore arrive out of order and
// are matched by id.
//
// # Available Tools
//
//   - labelme_convert: Build a YOLO, COCO or labelme dataset from a folder
//   - labelme_scan_labels: Sorted distinct labels
//   - labelme_scan_label_counts: Annotations per label
//   - labelme_analyze_format: Detect 2-point boxes, 4-point boxes or polygons
//
// # Progress
//
// Every tool accepts an optional "event" argument. When present the server
// writes notifications/progress messages while the tool runs:
//
//	{"jsonrpc":"2.0","method":"notifications/progress",
//	 "params":{"event":"scan-1","current":100,"total":250,"percentage":40,"message":"..."}}
//
// The last notification of a successful call has percentage 100.
//
// # Caching
//
// Directory listings are cached for a short TTL and shared by all tools. A
// conversion invalidates the listing of the directory it wrote into. Image
// dimensions probed for COCO output are cached by path for the lifetime of
// the process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A conversion rejected by validation is not a JSON-RPC error. Its result has
// "success": false, lists every problem under "errors", and the MCP content
// carries isError.
//
// # Usage
//
//	srv := server.New(server.Options{Version: version})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
