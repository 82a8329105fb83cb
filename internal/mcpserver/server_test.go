package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/munin/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return New(testutil.TestStores(t), "default")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "create_note":
		result, err = srv.createNote(ctx, req)
	case "list_events":
		result, err = srv.listEvents(ctx, req)
	case "create_event":
		result, err = srv.createEvent(ctx, req)
	case "set_reminder":
		result, err = srv.setReminder(ctx, req)
	case "read_memory":
		result, err = srv.readMemory(ctx, req)
	case "update_memory":
		result, err = srv.updateMemory(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadNote(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "create_note", map[string]interface{}{
		"title":   "Groceries",
		"content": "<p>milk</p>",
	})
	if res.IsError {
		t.Fatalf("create_note: %s", resultText(res))
	}
	id := strings.TrimPrefix(resultText(res), "created: ")

	res = callTool(t, srv, "read_note", map[string]interface{}{"id": id})
	if res.IsError {
		t.Fatalf("read_note: %s", resultText(res))
	}
	if resultText(res) != "<p>milk</p>" {
		t.Errorf("content = %q", resultText(res))
	}

	res = callTool(t, srv, "list_notes", nil)
	if !strings.Contains(resultText(res), "Groceries") {
		t.Errorf("list missing note: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "Uncategorized") {
		t.Errorf("default folder missing: %s", resultText(res))
	}
}

func TestReadNoteNotFound(t *testing.T) {
	srv := testServer(t)
	res := callTool(t, srv, "read_note", map[string]interface{}{"id": "missing"})
	if !res.IsError {
		t.Fatal("expected error result")
	}
}

func TestCreateEventValidatesTimes(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "create_event", map[string]interface{}{
		"title": "Standup",
		"start": "not-a-time",
		"end":   "2026-09-01T10:15:00Z",
	})
	if !res.IsError {
		t.Fatal("expected error for bad start")
	}

	res = callTool(t, srv, "create_event", map[string]interface{}{
		"title": "Standup",
		"start": "2026-09-01T10:00:00Z",
		"end":   "2026-09-01T10:15:00Z",
	})
	if res.IsError {
		t.Fatalf("create_event: %s", resultText(res))
	}

	res = callTool(t, srv, "list_events", nil)
	if !strings.Contains(resultText(res), "Standup") {
		t.Errorf("list missing event: %s", resultText(res))
	}
}

func TestSetReminder(t *testing.T) {
	srv := testServer(t)
	res := callTool(t, srv, "set_reminder", map[string]interface{}{
		"title":    "Dentist",
		"datetime": "2026-09-02T09:00:00Z",
	})
	if res.IsError {
		t.Fatalf("set_reminder: %s", resultText(res))
	}

	rems, err := srv.stores.Reminders.All("default")
	if err != nil {
		t.Fatal(err)
	}
	if len(rems) != 1 || rems[0].Title != "Dentist" {
		t.Errorf("reminders = %+v", rems)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "update_memory", map[string]interface{}{
		"key":   "likes",
		"value": "tea",
	})
	if res.IsError {
		t.Fatalf("update_memory: %s", resultText(res))
	}

	res = callTool(t, srv, "read_memory", nil)
	if !strings.Contains(resultText(res), "tea") {
		t.Errorf("memory = %s", resultText(res))
	}
}
