package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/munin/internal/assistant"
	"github.com/starford/munin/internal/store"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *assistant.Service, stores *store.Stores, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, stores)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Chat pipeline.
	r.Get("/chat/messages", h.ListChat)
	r.Post("/chat/messages", h.PostChat)
	r.Post("/chat/confirm", h.Confirm)
	r.Post("/chat/reset", h.ResetChat)

	// Runtime state for UI hydration.
	r.Get("/state", h.GetState)
	r.Get("/state/keys", h.ListStateKeys)

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Calendar events. The bare /events path carries the SSE stream.
	r.Get("/calendar/events", h.ListEvents)
	r.Post("/calendar/events", h.CreateEvent)
	r.Patch("/calendar/events/{id}", h.UpdateEvent)
	r.Delete("/calendar/events/{id}", h.DeleteEvent)

	// Reminders.
	r.Get("/reminders", h.ListReminders)
	r.Post("/reminders", h.CreateReminder)
	r.Patch("/reminders/{id}", h.UpdateReminder)
	r.Delete("/reminders/{id}", h.DeleteReminder)

	// Mini-apps: saved bundles plus running instances.
	r.Get("/apps", h.ListApps)
	r.Post("/apps", h.CreateApp)
	r.Get("/apps/running", h.ListRunning)
	r.Delete("/apps/running/{id}", h.CloseApp)
	r.Patch("/apps/running/{id}/window", h.PatchWindow)
	r.Get("/apps/{id}", h.GetApp)
	r.Delete("/apps/{id}", h.DeleteApp)
	r.Post("/apps/{id}/launch", h.LaunchApp)

	// Memory.
	r.Get("/memory", h.GetMemory)
	r.Put("/memory/{key}", h.PutMemoryKey)
	r.Delete("/memory/{key}", h.DeleteMemoryKey)

	// UI preferences blob.
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.PutSettings)

	// Timers.
	r.Get("/timers", h.ListTimers)
	r.Delete("/timers/{id}", h.CancelTimer)

	// Full account wipe.
	r.Delete("/data", h.DeleteData)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
