package command

import (
	"time"

	"github.com/starford/munin/internal/models"
)

// NoteStore is the interpreter's write access to the notes collection.
type NoteStore interface {
	Append(user string, n models.Note) error
	// Patch applies fn to the note with the given id. It reports
	// found=false without mutating anything when the id is absent.
	Patch(user, id string, fn func(models.Note) models.Note) (models.Note, bool, error)
}

// EventStore is the interpreter's write access to the events collection.
type EventStore interface {
	Append(user string, e models.Event) error
	Patch(user, id string, fn func(models.Event) models.Event) (models.Event, bool, error)
	// Remove deletes by id and returns the removed event for messaging.
	Remove(user, id string) (models.Event, bool, error)
}

// ReminderStore is the interpreter's write access to the reminders collection.
type ReminderStore interface {
	Append(user string, r models.Reminder) error
	Patch(user, id string, fn func(models.Reminder) models.Reminder) (models.Reminder, bool, error)
	Remove(user, id string) (models.Reminder, bool, error)
}

// AppStore is the interpreter's access to the saved mini-app collection.
type AppStore interface {
	Append(user string, a models.SavedApp) error
	Get(user, id string) (models.SavedApp, bool, error)
	Patch(user, id string, fn func(models.SavedApp) models.SavedApp) (models.SavedApp, bool, error)
}

// MemoryStore is the interpreter's write access to the memory mapping.
type MemoryStore interface {
	Set(user, key string, value any) error
}

// EffectSink receives the non-entity side effects of command execution:
// chat output, UI navigation, pending confirmations, timers, running apps,
// and conversation resets. The assistant service implements it.
type EffectSink interface {
	AppendChat(user string, msg models.ChatMessage) error
	Navigate(user string, state models.UIState)
	RaiseAsk(user string, ask models.PendingAsk)
	OpenLink(user, url string)
	StartTimer(user string, t models.Timer)
	// Launch instantiates a running app. A zero win.Z is replaced with
	// current max z-index + 1 by the implementation.
	Launch(user string, app models.SavedApp, win models.Window) models.RunningApp
	// PatchRunning applies fn to a running instance by id, preserving its
	// window geometry. Reports whether an instance was running.
	PatchRunning(user, id string, fn func(models.RunningApp) models.RunningApp) bool
	// ResetConversation clears non-system chat history and re-establishes
	// the upstream AI session. A reinitialization failure is reported as a
	// service status change, never as the calling command's error.
	ResetConversation(user string) error
}

// Env is the interpreter's borrowed read/write access to caller-owned
// stores for the duration of one invocation. Handlers are pure functions
// of (env, payload).
type Env struct {
	User string

	Notes     NoteStore
	Events    EventStore
	Reminders ReminderStore
	Apps      AppStore
	Memory    MemoryStore
	Effects   EffectSink

	// Now and NewID are injected so handlers stay deterministic in tests.
	Now   func() time.Time
	NewID func() string
	// RandInt returns a uniform value in [0, n); used for window offsets.
	RandInt func(n int) int
}
