package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	s := New(Options{})
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.listings == nil {
		t.Fatal("New() did not initialize the listing cache")
	}
	if s.dims == nil {
		t.Fatal("New() did not initialize the dimension cache")
	}
	if s.scanner == nil {
		t.Fatal("New() did not initialize the scanner")
	}
	if s.version != "dev" {
		t.Errorf("version: got %s, want dev", s.version)
	}
	if s.defaults.OutputFormat != "yolo" {
		t.Errorf("default output format: got %s, want yolo", s.defaults.OutputFormat)
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}

			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestMCPResponse_WithError(t *testing.T) {
	resp := MCPResponse{
		JSONRPC: "2.0",
		ID:      1,
		Error: &MCPError{
			Code:    -32601,
			Message: "Method not found",
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if strings.Contains(string(data), `"result"`) {
		t.Errorf("error response should omit result: %s", data)
	}

	var decoded MCPResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if decoded.Error == nil || decoded.Error.Code != -32601 {
		t.Errorf("Error: got %+v, want code -32601", decoded.Error)
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := New(Options{Version: "1.2.3"})
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: "init-1", Method: "initialize"})

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if resp.ID != "init-1" {
		t.Errorf("ID: got %v, want init-1", resp.ID)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}

	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("serverInfo should be a map")
	}
	if serverInfo["name"] != "labelme-tools-mcp" {
		t.Errorf("serverInfo.name: got %v", serverInfo["name"])
	}
	if serverInfo["version"] != "1.2.3" {
		t.Errorf("serverInfo.version: got %v", serverInfo["version"])
	}
}

func TestHandleRequest_Ping(t *testing.T) {
	s := New(Options{})
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: "ping-1", Method: "ping"})

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	if resp.ID != "ping-1" {
		t.Errorf("ID: got %v, want ping-1", resp.ID)
	}
}

func TestHandleRequest_ToolsList(t *testing.T) {
	s := New(Options{})
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	tools, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(tools) != 4 {
		t.Errorf("Expected 4 tools, got %d", len(tools))
	}
}

func TestHandleRequest_NotificationsInitialized(t *testing.T) {
	s := New(Options{})
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"})

	// Notifications don't get responses
	if resp != nil {
		t.Error("notifications/initialized should return nil response")
	}
}

func TestHandleRequest_MethodNotFound(t *testing.T) {
	s := New(Options{})
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "nonexistent/method"})

	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error == nil {
		t.Fatal("Expected error for unknown method")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("Error code: got %d, want -32601", resp.Error.Code)
	}
}

// wireMessage is either a response or a notification read back from RunIO.
type wireMessage struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *MCPError       `json:"error"`
	Params json.RawMessage `json:"params"`
}

func runLines(t *testing.T, s *Server, lines ...string) []wireMessage {
	t.Helper()

	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	if err := s.RunIO(context.Background(), in, &out); err != nil {
		t.Fatalf("RunIO: %v", err)
	}

	var msgs []wireMessage
	sc := bufio.NewScanner(&out)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var m wireMessage
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("output line is not JSON: %q", sc.Text())
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func TestRunIO_Session(t *testing.T) {
	s := New(Options{})
	msgs := runLines(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":4,"method":"resources/list"}`,
	)

	// Requests other than tools/call are answered in order.
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	for i, want := range []float64{1, 2, 3, 4} {
		if msgs[i].ID != want {
			t.Errorf("message %d: id %v, want %v", i, msgs[i].ID, want)
		}
	}
	if msgs[3].Error == nil || msgs[3].Error.Code != -32601 {
		t.Errorf("unknown method: got %+v", msgs[3].Error)
	}

	var list struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(msgs[1].Result, &list); err != nil {
		t.Fatalf("tools/list result: %v", err)
	}
	if len(list.Tools) != 4 {
		t.Errorf("tools/list: got %d tools, want 4", len(list.Tools))
	}
}

func TestRunIO_ToolCallWithProgress(t *testing.T) {
	dir := t.TempDir()
	writeLabelmeFile(t, dir, "a", "cat", "dog")
	writeLabelmeFile(t, dir, "b", "cat")

	s := New(Options{})
	call := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"labelme_scan_labels","arguments":` +
		`{"input_dir":` + quote(dir) + `,"event":"scan-1"}}}`
	msgs := runLines(t, s, call)

	var notes, responses []wireMessage
	for _, m := range msgs {
		if m.Method == "notifications/progress" {
			notes = append(notes, m)
		} else {
			responses = append(responses, m)
		}
	}

	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	// Progress for a call is written before its response.
	if msgs[len(msgs)-1].ID != float64(7) {
		t.Errorf("last message should be the response, got %+v", msgs[len(msgs)-1])
	}
	if len(notes) != 3 {
		t.Fatalf("got %d progress notifications, want 3", len(notes))
	}

	var last struct {
		Event      string  `json:"event"`
		Percentage float64 `json:"percentage"`
	}
	if err := json.Unmarshal(notes[len(notes)-1].Params, &last); err != nil {
		t.Fatal(err)
	}
	if last.Event != "scan-1" || last.Percentage != 100 {
		t.Errorf("last notification: got %+v", last)
	}

	var got labelsResult
	decodeToolText(t, responses[0].Result, &got)
	if got.Count != 2 || got.Labels[0] != "cat" || got.Labels[1] != "dog" {
		t.Errorf("labels: got %+v", got)
	}
}

func TestRunIO_ConcurrentCalls(t *testing.T) {
	dir := t.TempDir()
	writeLabelmeFile(t, dir, "a", "cat")

	s := New(Options{})
	var lines []string
	for i := 1; i <= 5; i++ {
		lines = append(lines, `{"jsonrpc":"2.0","id":`+string(rune('0'+i))+
			`,"method":"tools/call","params":{"name":"labelme_scan_label_counts","arguments":{"input_dir":`+quote(dir)+`}}}`)
	}
	msgs := runLines(t, s, lines...)

	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	seen := map[float64]bool{}
	for _, m := range msgs {
		if m.Error != nil {
			t.Errorf("id %v: unexpected error %+v", m.ID, m.Error)
		}
		seen[m.ID.(float64)] = true
	}
	if len(seen) != 5 {
		t.Errorf("responses for ids %v, want 1..5", seen)
	}
}
