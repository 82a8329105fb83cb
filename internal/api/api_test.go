package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/munin/internal/assistant"
	"github.com/starford/munin/internal/gateway"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/store"
	"github.com/starford/munin/internal/testutil"
)

// testEnv sets up a temp store, assistant service with a scripted model
// client, and the API router.
// authToken="" means disabled mode; non-empty enables token auth.
func testEnv(t *testing.T, authToken string, replies ...string) (*store.Stores, http.Handler) {
	t.Helper()

	if len(replies) == 0 {
		replies = []string{`{"commands":[]}`}
	}
	prompts, err := gateway.NewPromptSource("")
	if err != nil {
		t.Fatalf("NewPromptSource: %v", err)
	}
	gw := gateway.New(&gateway.ScriptedClient{Replies: replies}, prompts)

	stores := testutil.TestStores(t)
	svc := assistant.New(stores, gw, nil, nil)
	router := NewRouter(svc, stores, authToken != "", authToken, nil)
	return stores, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{"title": "Hello", "content": "<p>World</p>"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID == "" {
		t.Fatal("created note has no id")
	}
	if created.Folder != models.DefaultFolder {
		t.Errorf("folder = %q, want default", created.Folder)
	}

	w = doJSON(t, router, http.MethodGet, "/notes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag on note response")
	}
	var note models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Title != "Hello" {
		t.Errorf("title = %q, want Hello", note.Title)
	}
}

func TestCreateNoteRequiresTitle(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{"content": "<p>no title</p>"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateNoteOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{"title": "Lock", "content": "v1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	var note models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &note)

	// Stale checksum is rejected.
	raw, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/notes/"+note.ID, bytes.NewReader(raw))
	req.Header.Set("If-Match", `"deadbeef"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("stale update = %d, want 409", w.Code)
	}

	// Without If-Match the update goes through.
	w = doJSON(t, router, http.MethodPut, "/notes/"+note.ID, map[string]string{"content": "v2"})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	var updated models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Content != "v2" {
		t.Errorf("content = %q, want v2", updated.Content)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{"title": "Bye"})
	var note models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &note)

	w = doJSON(t, router, http.MethodDelete, "/notes/"+note.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/notes/"+note.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestEventValidation(t *testing.T) {
	_, router := testEnv(t, "")

	// End before start is rejected.
	w := doJSON(t, router, http.MethodPost, "/calendar/events", map[string]any{
		"title": "Backwards",
		"start": "2026-09-01T12:00:00Z",
		"end":   "2026-09-01T10:00:00Z",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("backwards event = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/calendar/events", map[string]any{
		"title": "Standup",
		"start": "2026-09-01T10:00:00Z",
		"end":   "2026-09-01T10:15:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("event create = %d, body = %s", w.Code, w.Body.String())
	}
	var ev models.Event
	_ = json.Unmarshal(w.Body.Bytes(), &ev)
	if ev.Color != models.DefaultEventColor {
		t.Errorf("color = %q, want default", ev.Color)
	}
}

func TestReminderLifecycle(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/reminders", map[string]any{
		"title":    "Dentist",
		"datetime": "2026-09-02T09:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	var rem models.Reminder
	_ = json.Unmarshal(w.Body.Bytes(), &rem)

	w = doJSON(t, router, http.MethodPatch, "/reminders/"+rem.ID, map[string]any{"is_completed": true})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d", w.Code)
	}
	var updated models.Reminder
	_ = json.Unmarshal(w.Body.Bytes(), &updated)
	if !updated.IsCompleted {
		t.Error("reminder not completed")
	}

	w = doJSON(t, router, http.MethodDelete, "/reminders/"+rem.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
}

func TestMemoryEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPut, "/memory/likes", map[string]any{"value": "tea"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("put = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/memory", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var resp struct {
		Memory map[string]any `json:"memory"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Memory["likes"] != "tea" {
		t.Errorf("memory = %v", resp.Memory)
	}

	w = doJSON(t, router, http.MethodDelete, "/memory/likes", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	_, router := testEnv(t, "")

	// Unset settings read back as an empty object.
	w := doJSON(t, router, http.MethodGet, "/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "{}" {
		t.Errorf("empty settings = %q", got)
	}

	w = doJSON(t, router, http.MethodPut, "/settings", map[string]any{"theme": "dark"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("put = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var settings map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &settings)
	if settings["theme"] != "dark" {
		t.Errorf("settings = %v", settings)
	}
}

func TestChatPipelineOverHTTP(t *testing.T) {
	stores, router := testEnv(t, "",
		`{"commands":[{"command":"CREATE_NOTE","payload":{"title":"From chat"}}]}`)

	w := doJSON(t, router, http.MethodPost, "/chat/messages", map[string]string{"text": "make a note"})
	if w.Code != http.StatusOK {
		t.Fatalf("chat = %d, body = %s", w.Code, w.Body.String())
	}
	var summary models.ChatMessage
	_ = json.Unmarshal(w.Body.Bytes(), &summary)
	if summary.Kind != models.ChatKindCommandGroup {
		t.Errorf("kind = %q", summary.Kind)
	}
	if len(summary.Results) != 1 || summary.Results[0].Status != models.StatusSuccess {
		t.Errorf("results = %+v", summary.Results)
	}

	notes, err := stores.Notes.All("default")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(notes))
	}

	w = doJSON(t, router, http.MethodGet, "/chat/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list chat = %d", w.Code)
	}
}

func TestChatRequiresText(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodPost, "/chat/messages", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestStateEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodGet, "/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("state = %d", w.Code)
	}
	var state StateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &state)
	if !state.Ready {
		t.Error("fresh service should be ready")
	}
	if state.UI.ActiveView != models.ViewChat {
		t.Errorf("active view = %q", state.UI.ActiveView)
	}
}

func TestDeleteAllData(t *testing.T) {
	stores, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{"title": "Gone"})
	if w.Code != http.StatusCreated {
		t.Fatal(w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/data", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("wipe = %d", w.Code)
	}
	notes, _ := stores.Notes.All("default")
	if len(notes) != 0 {
		t.Errorf("notes after wipe = %d", len(notes))
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, router := testEnv(t, "secret")

	// No token.
	w := doJSON(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", w.Code)
	}

	// Wrong token.
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req)
	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token = %d, want 401", w2.Code)
	}

	// Correct token.
	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, req)
	if w3.Code != http.StatusOK {
		t.Fatalf("valid token = %d, want 200", w3.Code)
	}
}

func TestUserIsolation(t *testing.T) {
	_, router := testEnv(t, "")

	raw, _ := json.Marshal(map[string]string{"title": "Mine"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(raw))
	req.Header.Set("X-User", "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatal(w.Code)
	}

	// Default user sees nothing.
	w2 := doJSON(t, router, http.MethodGet, "/notes", nil)
	var resp struct {
		Notes []models.Note `json:"notes"`
	}
	_ = json.Unmarshal(w2.Body.Bytes(), &resp)
	if len(resp.Notes) != 0 {
		t.Errorf("default user notes = %d, want 0", len(resp.Notes))
	}
}
