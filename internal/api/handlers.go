package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/munin/internal/apperr"
	"github.com/starford/munin/internal/assistant"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/store"
)

// pathID extracts the {id} route parameter.
func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// Handler holds API route handlers.
type Handler struct {
	svc    *assistant.Service
	stores *store.Stores

	now   func() time.Time
	newID func() string
}

// NewHandler creates a new Handler.
func NewHandler(svc *assistant.Service, stores *store.Stores) *Handler {
	return &Handler{
		svc:    svc,
		stores: stores,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// decodeBody decodes and, when the type implements it, validates a JSON
// request body. It writes the error response itself and reports success.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if v, ok := dst.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

// PostChat handles POST /api/chat/messages: one full pipeline cycle.
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := h.svc.HandleMessage(r.Context(), userID(r), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrBusy):
			writeJSON(w, http.StatusConflict, errorBody("a message is already being processed"))
		case errors.Is(err, apperr.ErrConfirmationPending):
			writeJSON(w, http.StatusConflict, errorBody("a confirmation is pending"))
		case errors.Is(err, apperr.ErrAINotReady):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("assistant is not ready"))
		default:
			slog.Error("chat message failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// ListChat handles GET /api/chat/messages.
func (h *Handler) ListChat(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.stores.Chat.All(userID(r))
	if err != nil {
		slog.Error("list chat failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// Confirm handles POST /api/chat/confirm: resolves a pending ASK_USER.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := h.svc.Confirm(r.Context(), userID(r), req.Option)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("no confirmation pending"))
		case errors.Is(err, apperr.ErrAINotReady):
			writeJSON(w, http.StatusServiceUnavailable, errorBody("assistant is not ready"))
		default:
			slog.Error("confirm failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// ResetChat handles POST /api/chat/reset.
func (h *Handler) ResetChat(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResetConversation(userID(r)); err != nil {
		slog.Error("chat reset failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetState handles GET /api/state: runtime state for UI hydration.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	writeJSON(w, http.StatusOK, StateResponse{
		Ready:   h.svc.Ready(user),
		Pending: h.svc.Pending(user),
		UI:      h.svc.UI(user),
		Running: h.svc.RunningApps(user),
		Timers:  h.svc.Timers(user),
	})
}

// ListStateKeys handles GET /api/state/keys: the persisted keys carrying
// the user's data, mostly useful for debugging and the wipe confirmation UI.
func (h *Handler) ListStateKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.stores.Raw().Keys(userID(r))
	if err != nil {
		slog.Error("list state keys failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// GetSettings handles GET /api/settings: the opaque UI preferences blob.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	raw, err := h.stores.Raw().Get(userID(r), store.KeySettings)
	if err != nil {
		slog.Error("get settings failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw) //nolint:errcheck // response writer
}

// PutSettings handles PUT /api/settings. The server stores the body as-is;
// the shape of the preferences object belongs to the client.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	raw, err := json.Marshal(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.stores.Raw().Put(userID(r), store.KeySettings, raw); err != nil {
		slog.Error("put settings failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteData handles DELETE /api/data: full account wipe.
func (h *Handler) DeleteData(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAllData(userID(r)); err != nil {
		slog.Error("delete data failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTimers handles GET /api/timers.
func (h *Handler) ListTimers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"timers": h.svc.Timers(userID(r))})
}

// CancelTimer handles DELETE /api/timers/{id}.
func (h *Handler) CancelTimer(w http.ResponseWriter, r *http.Request) {
	if !h.svc.CancelTimer(userID(r), pathID(r)) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRunning handles GET /api/apps/running.
func (h *Handler) ListRunning(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"apps": h.svc.RunningApps(userID(r))})
}

// LaunchApp handles POST /api/apps/{id}/launch.
func (h *Handler) LaunchApp(w http.ResponseWriter, r *http.Request) {
	ra, err := h.svc.LaunchSaved(userID(r), pathID(r))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("launch app failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, ra)
}

// CloseApp handles DELETE /api/apps/running/{id}.
func (h *Handler) CloseApp(w http.ResponseWriter, r *http.Request) {
	if !h.svc.CloseApp(userID(r), pathID(r)) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatchWindow handles PATCH /api/apps/running/{id}/window.
func (h *Handler) PatchWindow(w http.ResponseWriter, r *http.Request) {
	var req WindowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ok := h.svc.PatchWindow(userID(r), pathID(r), func(win models.Window) models.Window {
		if req.X != nil {
			win.X = *req.X
		}
		if req.Y != nil {
			win.Y = *req.Y
		}
		if req.Width != nil {
			win.Width = *req.Width
		}
		if req.Height != nil {
			win.Height = *req.Height
		}
		if req.Z != nil {
			win.Z = *req.Z
		}
		if req.Minimized != nil {
			win.Minimized = *req.Minimized
		}
		return win
	})
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
