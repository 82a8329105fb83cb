package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/munin/internal/checksum"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/store"
)

// listCollection writes one collection as {"<name>": [...]}.
func listCollection[T any](w http.ResponseWriter, user, name string, col *store.Collection[T]) {
	items, err := col.All(user)
	if err != nil {
		slog.Error("list failed", slog.String("collection", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{name: items})
}

// getByID writes one item from a collection, or 404.
func getByID[T any](w http.ResponseWriter, user, id string, col *store.Collection[T], itemID func(T) string) {
	items, err := col.All(user)
	if err != nil {
		slog.Error("get failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	for _, it := range items {
		if itemID(it) == id {
			writeJSON(w, http.StatusOK, it)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody("not found"))
}

// removeByID deletes one item from a collection, or 404.
func removeByID[T any](w http.ResponseWriter, user, id string, col *store.Collection[T], itemID func(T) string) {
	found := false
	err := col.Mutate(user, func(items []T) ([]T, error) {
		next := items[:0]
		for _, it := range items {
			if !found && itemID(it) == id {
				found = true
				continue
			}
			next = append(next, it)
		}
		return next, nil
	})
	if err != nil {
		slog.Error("delete failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	listCollection(w, userID(r), "notes", h.stores.Notes)
}

// GetNote handles GET /api/notes/{id}. The response carries the content
// checksum as an ETag for optimistic concurrency on updates.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	items, err := h.stores.Notes.All(user)
	if err != nil {
		slog.Error("get note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	id := chi.URLParam(r, "id")
	for _, n := range items {
		if n.ID == id {
			w.Header().Set("ETag", `"`+checksum.SumString(n.Content)+`"`)
			writeJSON(w, http.StatusOK, n)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody("not found"))
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	now := h.now()
	n := models.Note{
		ID:         h.newID(),
		Title:      req.Title,
		Content:    req.Content,
		Folder:     req.Folder,
		Background: req.Background,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if n.Folder == "" {
		n.Folder = models.DefaultFolder
	}
	err := h.stores.Notes.Mutate(userID(r), func(notes []models.Note) ([]models.Note, error) {
		return append(notes, n), nil
	})
	if err != nil {
		slog.Error("create note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// UpdateNote handles PUT /api/notes/{id} with optimistic concurrency: a
// non-empty If-Match must equal the checksum of the stored content.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	var out models.Note
	found := false
	conflict := false
	err := h.stores.Notes.Mutate(userID(r), func(notes []models.Note) ([]models.Note, error) {
		id := chi.URLParam(r, "id")
		for i, n := range notes {
			if n.ID != id {
				continue
			}
			found = true
			if ifMatch != "" && ifMatch != checksum.SumString(n.Content) {
				conflict = true
				return notes, nil
			}
			if req.Title != nil {
				n.Title = *req.Title
			}
			if req.Content != nil {
				n.Content = *req.Content
			}
			if req.Folder != nil {
				n.Folder = *req.Folder
			}
			if req.Background != nil {
				n.Background = *req.Background
			}
			n.UpdatedAt = h.now()
			notes[i] = n
			out = n
			return notes, nil
		}
		return notes, nil
	})
	switch {
	case err != nil:
		slog.Error("update note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	case !found:
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case conflict:
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	default:
		w.Header().Set("ETag", `"`+checksum.SumString(out.Content)+`"`)
		writeJSON(w, http.StatusOK, out)
	}
}

// DeleteNote handles DELETE /api/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	removeByID(w, userID(r), chi.URLParam(r, "id"), h.stores.Notes,
		func(n models.Note) string { return n.ID })
}

// ListEvents handles GET /api/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	listCollection(w, userID(r), "events", h.stores.Events)
}

// CreateEvent handles POST /api/events.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	now := h.now()
	e := models.Event{
		ID:          h.newID(),
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
		IsAllDay:    req.IsAllDay,
		Color:       req.Color,
		NoteID:      req.NoteID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.Color == "" {
		e.Color = models.DefaultEventColor
	}
	err := h.stores.Events.Mutate(userID(r), func(events []models.Event) ([]models.Event, error) {
		return append(events, e), nil
	})
	if err != nil {
		slog.Error("create event failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEvent handles PATCH /api/events/{id}.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req UpdateEventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var out models.Event
	found := false
	err := h.stores.Events.Mutate(userID(r), func(events []models.Event) ([]models.Event, error) {
		id := chi.URLParam(r, "id")
		for i, e := range events {
			if e.ID != id {
				continue
			}
			found = true
			if req.Title != nil {
				e.Title = *req.Title
			}
			if req.Description != nil {
				e.Description = *req.Description
			}
			if req.Start != nil {
				e.Start = *req.Start
			}
			if req.End != nil {
				e.End = *req.End
			}
			if req.IsAllDay != nil {
				e.IsAllDay = *req.IsAllDay
			}
			if req.Color != nil {
				e.Color = *req.Color
			}
			if req.NoteID != nil {
				e.NoteID = *req.NoteID
			}
			e.UpdatedAt = h.now()
			events[i] = e
			out = e
			break
		}
		return events, nil
	})
	switch {
	case err != nil:
		slog.Error("update event failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	case !found:
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		writeJSON(w, http.StatusOK, out)
	}
}

// DeleteEvent handles DELETE /api/events/{id}.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	removeByID(w, userID(r), chi.URLParam(r, "id"), h.stores.Events,
		func(e models.Event) string { return e.ID })
}

// ListReminders handles GET /api/reminders.
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	listCollection(w, userID(r), "reminders", h.stores.Reminders)
}

// CreateReminder handles POST /api/reminders.
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	var req CreateReminderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	now := h.now()
	rem := models.Reminder{
		ID:          h.newID(),
		Title:       req.Title,
		Description: req.Description,
		Datetime:    req.Datetime,
		Color:       req.Color,
		NoteID:      req.NoteID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rem.Color == "" {
		rem.Color = models.DefaultReminderColor
	}
	err := h.stores.Reminders.Mutate(userID(r), func(rs []models.Reminder) ([]models.Reminder, error) {
		return append(rs, rem), nil
	})
	if err != nil {
		slog.Error("create reminder failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

// UpdateReminder handles PATCH /api/reminders/{id}.
func (h *Handler) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	var req UpdateReminderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var out models.Reminder
	found := false
	err := h.stores.Reminders.Mutate(userID(r), func(rs []models.Reminder) ([]models.Reminder, error) {
		id := chi.URLParam(r, "id")
		for i, rem := range rs {
			if rem.ID != id {
				continue
			}
			found = true
			if req.Title != nil {
				rem.Title = *req.Title
			}
			if req.Description != nil {
				rem.Description = *req.Description
			}
			if req.Datetime != nil {
				rem.Datetime = *req.Datetime
			}
			if req.Color != nil {
				rem.Color = *req.Color
			}
			if req.IsCompleted != nil {
				rem.IsCompleted = *req.IsCompleted
			}
			rem.UpdatedAt = h.now()
			rs[i] = rem
			out = rem
			break
		}
		return rs, nil
	})
	switch {
	case err != nil:
		slog.Error("update reminder failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	case !found:
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		writeJSON(w, http.StatusOK, out)
	}
}

// DeleteReminder handles DELETE /api/reminders/{id}.
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	removeByID(w, userID(r), chi.URLParam(r, "id"), h.stores.Reminders,
		func(rem models.Reminder) string { return rem.ID })
}

// ListApps handles GET /api/apps.
func (h *Handler) ListApps(w http.ResponseWriter, r *http.Request) {
	listCollection(w, userID(r), "apps", h.stores.Apps)
}

// GetApp handles GET /api/apps/{id}.
func (h *Handler) GetApp(w http.ResponseWriter, r *http.Request) {
	getByID(w, userID(r), chi.URLParam(r, "id"), h.stores.Apps,
		func(a models.SavedApp) string { return a.ID })
}

// CreateApp handles POST /api/apps.
func (h *Handler) CreateApp(w http.ResponseWriter, r *http.Request) {
	var req CreateAppRequest
	if !decodeBody(w, r, &req) {
		return
	}
	now := h.now()
	a := models.SavedApp{
		ID:         h.newID(),
		Title:      req.Title,
		HTML:       req.HTML,
		CSS:        req.CSS,
		JavaScript: req.JavaScript,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := h.stores.Apps.Mutate(userID(r), func(apps []models.SavedApp) ([]models.SavedApp, error) {
		return append(apps, a), nil
	})
	if err != nil {
		slog.Error("create app failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// DeleteApp handles DELETE /api/apps/{id}. Running instances are closed too.
func (h *Handler) DeleteApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.svc.CloseApp(userID(r), id)
	removeByID(w, userID(r), id, h.stores.Apps,
		func(a models.SavedApp) string { return a.ID })
}

// GetMemory handles GET /api/memory.
func (h *Handler) GetMemory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.stores.Memory.All(userID(r))
	if err != nil {
		slog.Error("get memory failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memory": entries})
}

// PutMemoryKey handles PUT /api/memory/{key}.
func (h *Handler) PutMemoryKey(w http.ResponseWriter, r *http.Request) {
	var req MemoryEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	key := chi.URLParam(r, "key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return
	}
	if err := h.stores.Memory.Set(userID(r), key, req.Value); err != nil {
		slog.Error("set memory failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMemoryKey handles DELETE /api/memory/{key}.
func (h *Handler) DeleteMemoryKey(w http.ResponseWriter, r *http.Request) {
	if err := h.stores.Memory.Delete(userID(r), chi.URLParam(r, "key")); err != nil {
		slog.Error("delete memory failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
