package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/munin/internal/models"
)

// ChatRequest is the request body for posting a chat message.
type ChatRequest struct {
	Text string `json:"text"`
}

// Validate implements request validation.
func (r ChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required),
	)
}

// ConfirmRequest resolves a pending confirmation with a chosen option.
type ConfirmRequest struct {
	Option string `json:"option"`
}

// Validate implements request validation.
func (r ConfirmRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Option, validation.Required),
	)
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Folder     string `json:"folder"`
	Background string `json:"background"`
}

// Validate implements request validation.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
	)
}

// UpdateNoteRequest is the request body for updating a note. Nil fields are
// left unchanged.
type UpdateNoteRequest struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	Folder     *string `json:"folder"`
	Background *string `json:"background"`
}

// CreateEventRequest is the request body for creating a calendar event.
type CreateEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	IsAllDay    bool      `json:"is_all_day"`
	Color       string    `json:"color"`
	NoteID      string    `json:"note_id"`
}

// Validate implements request validation.
func (r CreateEventRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Start, validation.Required),
		validation.Field(&r.End, validation.Required, validation.By(func(any) error {
			if !r.End.After(r.Start) {
				return validation.NewError("validation_end_after_start", "end must be after start")
			}
			return nil
		})),
	)
}

// UpdateEventRequest is the request body for updating an event.
type UpdateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
	IsAllDay    *bool      `json:"is_all_day"`
	Color       *string    `json:"color"`
	NoteID      *string    `json:"note_id"`
}

// CreateReminderRequest is the request body for creating a reminder.
type CreateReminderRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Datetime    time.Time `json:"datetime"`
	Color       string    `json:"color"`
	NoteID      string    `json:"note_id"`
}

// Validate implements request validation.
func (r CreateReminderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Datetime, validation.Required),
	)
}

// UpdateReminderRequest is the request body for updating a reminder.
type UpdateReminderRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Datetime    *time.Time `json:"datetime"`
	Color       *string    `json:"color"`
	IsCompleted *bool      `json:"is_completed"`
}

// CreateAppRequest is the request body for saving a mini-app bundle.
type CreateAppRequest struct {
	Title      string `json:"title"`
	HTML       string `json:"html"`
	CSS        string `json:"css"`
	JavaScript string `json:"javascript"`
}

// Validate implements request validation.
func (r CreateAppRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.HTML, validation.Required),
	)
}

// WindowRequest patches a running app's window geometry. Nil fields keep
// the current value.
type WindowRequest struct {
	X         *int  `json:"x"`
	Y         *int  `json:"y"`
	Width     *int  `json:"width"`
	Height    *int  `json:"height"`
	Z         *int  `json:"z"`
	Minimized *bool `json:"minimized"`
}

// MemoryEntryRequest sets one memory key.
type MemoryEntryRequest struct {
	Value any `json:"value"`
}

// StateResponse is the aggregate runtime state for a UI to hydrate from.
type StateResponse struct {
	Ready   bool                `json:"ready"`
	Pending *models.PendingAsk  `json:"pending,omitempty"`
	UI      models.UIState      `json:"ui"`
	Running []models.RunningApp `json:"running"`
	Timers  []models.Timer      `json:"timers"`
}
