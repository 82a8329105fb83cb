// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Munin tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/store"
)

// Server wraps the MCP server with Munin tools. Tools operate on the same
// persisted collections as the chat pipeline, for the given user.
type Server struct {
	mcp    *server.MCPServer
	stores *store.Stores
	user   string

	now   func() time.Time
	newID func() string
}

// New creates a new MCP server with all Munin tools registered.
func New(stores *store.Stores, user string) *Server {
	s := &Server{
		stores: stores,
		user:   user,
		now:    time.Now,
		newID:  uuid.NewString,
	}

	s.mcp = server.NewMCPServer(
		"Munin",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes with their ids, titles and folders."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full HTML content of a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Content is HTML."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Description("HTML body")),
		mcp.WithString("folder", mcp.Description("Folder name (defaults to Uncategorized)")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("list_events",
		mcp.WithDescription("List all calendar events."),
	), s.listEvents)

	s.mcp.AddTool(mcp.NewTool("create_event",
		mcp.WithDescription("Create a calendar event. Times are RFC 3339 instants."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Event title")),
		mcp.WithString("start", mcp.Required(), mcp.Description("Start instant, RFC 3339")),
		mcp.WithString("end", mcp.Required(), mcp.Description("End instant, RFC 3339")),
		mcp.WithString("description", mcp.Description("Optional description")),
	), s.createEvent)

	s.mcp.AddTool(mcp.NewTool("set_reminder",
		mcp.WithDescription("Create a reminder that fires at the given instant."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
		mcp.WithString("datetime", mcp.Required(), mcp.Description("Fire instant, RFC 3339")),
		mcp.WithString("description", mcp.Description("Optional description")),
	), s.setReminder)

	s.mcp.AddTool(mcp.NewTool("read_memory",
		mcp.WithDescription("Read the full durable memory mapping."),
	), s.readMemory)

	s.mcp.AddTool(mcp.NewTool("update_memory",
		mcp.WithDescription("Store a durable fact or preference under a key."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Memory key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Value to remember")),
	), s.updateMemory)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.stores.Notes.All(s.user)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	type row struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Folder string `json:"folder"`
	}
	rows := make([]row, 0, len(notes))
	for _, n := range notes {
		rows = append(rows, row{ID: n.ID, Title: n.Title, Folder: n.Folder})
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.stores.Notes.All(s.user)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	for _, n := range notes {
		if n.ID == id {
			return mcp.NewToolResultText(n.Content), nil
		}
	}
	return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := req.GetString("content", "")
	folder := req.GetString("folder", models.DefaultFolder)

	now := s.now()
	n := models.Note{
		ID:        s.newID(),
		Title:     title,
		Content:   content,
		Folder:    folder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.stores.Notes.Mutate(s.user, func(notes []models.Note) ([]models.Note, error) {
		return append(notes, n), nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.ID)), nil
}

func (s *Server) listEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.stores.Events.All(s.user)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(events, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	startRaw, err := req.RequireString("start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	endRaw, err := req.RequireString("end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid start: %v", err)), nil
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid end: %v", err)), nil
	}

	now := s.now()
	e := models.Event{
		ID:          s.newID(),
		Title:       title,
		Description: req.GetString("description", ""),
		Start:       start,
		End:         end,
		Color:       models.DefaultEventColor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.stores.Events.Mutate(s.user, func(events []models.Event) ([]models.Event, error) {
		return append(events, e), nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", e.ID)), nil
}

func (s *Server) setReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("datetime")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid datetime: %v", err)), nil
	}

	now := s.now()
	rem := models.Reminder{
		ID:          s.newID(),
		Title:       title,
		Description: req.GetString("description", ""),
		Datetime:    at,
		Color:       models.DefaultReminderColor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.stores.Reminders.Mutate(s.user, func(rs []models.Reminder) ([]models.Reminder, error) {
		return append(rs, rem), nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", rem.ID)), nil
}

func (s *Server) readMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.stores.Memory.All(s.user)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) updateMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.stores.Memory.Set(s.user, key, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("remembered: %s", key)), nil
}
