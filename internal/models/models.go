// Package models defines the domain types for Munin.
package models

import "time"

// DefaultFolder is assigned to notes created without an explicit folder.
const DefaultFolder = "Uncategorized"

// Default accent colors applied when the creating command omits one.
const (
	DefaultEventColor    = "#3b82f6"
	DefaultReminderColor = "#f59e0b"
)

// Note is a rich-text note in the user's notebook.
type Note struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"` // HTML body
	Folder     string    `json:"folder"`
	Background string    `json:"background,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Event is a calendar entry. Start/End are instants; the editor enforces
// Start < End, the interpreter trusts its input.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	IsAllDay    bool      `json:"is_all_day"`
	Color       string    `json:"color"`
	NoteID      string    `json:"note_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Reminder fires a system chat message once its datetime passes.
type Reminder struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Datetime    time.Time `json:"datetime"`
	Color       string    `json:"color"`
	IsCompleted bool      `json:"is_completed"`
	NoteID      string    `json:"note_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SavedApp is a persisted self-contained mini application bundle.
type SavedApp struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	HTML       string    `json:"html"`
	CSS        string    `json:"css"`
	JavaScript string    `json:"javascript"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Window is process-lifetime window geometry for a running app instance.
type Window struct {
	X         int  `json:"x"`
	Y         int  `json:"y"`
	Width     int  `json:"width"`
	Height    int  `json:"height"`
	Z         int  `json:"z"`
	Minimized bool `json:"minimized"`
}

// RunningApp is the ephemeral on-screen instance of a SavedApp. It shares
// the saved app's id and is never persisted.
type RunningApp struct {
	SavedApp
	Window Window `json:"window"`
}

// Timer is an ephemeral countdown. Remaining ticks down once per second;
// at zero the timer emits a completion chat message and removes itself.
type Timer struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Duration  int    `json:"duration_seconds"`
	Remaining int    `json:"remaining_seconds"`
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Chat message kinds.
const (
	ChatKindPlain        = "plain"
	ChatKindCommandGroup = "command_group"
	ChatKindNoteUpdate   = "note_update"
	ChatKindReminder     = "reminder"
	ChatKindTimer        = "timer"
	ChatKindError        = "error"
)

// ChatMessage is one entry in the chat log. Command-group messages carry
// the per-command results of one interpreter invocation plus its elapsed
// time in milliseconds.
type ChatMessage struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Kind      string          `json:"kind"`
	Text      string          `json:"text"`
	Results   []CommandResult `json:"results,omitempty"`
	ElapsedMS int64           `json:"elapsed_ms,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Command result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// CommandResult is the outcome record for one executed command. It exists
// only for the invocation that produced it and is attached to a single
// command-group chat message.
type CommandResult struct {
	Command string `json:"command"`
	Payload any    `json:"payload,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// OK reports whether the result carries a success status.
func (r CommandResult) OK() bool { return r.Status == StatusSuccess }

// PendingAsk is an outstanding ASK_USER confirmation that suspends normal
// chat input until the user picks an option.
type PendingAsk struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// UIState is ephemeral navigation state mutated by view commands.
type UIState struct {
	ActiveView    string    `json:"active_view"`
	FocusedNoteID string    `json:"focused_note_id,omitempty"`
	CalendarDate  time.Time `json:"calendar_date,omitzero"`
}

// Known views for UIState.ActiveView.
const (
	ViewChat     = "chat"
	ViewNotes    = "notes"
	ViewCalendar = "calendar"
)
