package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/munin/internal/models"
)

// defaultSystemPrompt is used when no prompt file is configured.
const defaultSystemPrompt = `You are Munin, a personal assistant managing the user's notes, calendar events, reminders, memory, and mini-apps.

Respond ONLY with a JSON object of the form {"commands": [{"command": "<NAME>", "payload": {...}}]}.
Use PLAIN_RESPONSE to talk to the user. Use UPDATE_MEMORY to remember durable facts and preferences.
Timestamps are RFC 3339 instants. Reference entities by the ids listed in the state snapshot.`

// PromptSource holds the current system prompt. The backing file can be
// edited at runtime; WatchFile reloads it on change.
type PromptSource struct {
	path string

	mu   sync.RWMutex
	text string
}

// NewPromptSource loads path if non-empty, otherwise falls back to the
// built-in prompt. A configured but unreadable file is an error so a typo
// in the config does not silently change assistant behavior.
func NewPromptSource(path string) (*PromptSource, error) {
	p := &PromptSource{path: path, text: defaultSystemPrompt}
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gateway: read prompt file: %w", err)
	}
	p.text = string(data)
	return p, nil
}

// Current returns the active system prompt.
func (p *PromptSource) Current() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.text
}

func (p *PromptSource) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.text = string(data)
	p.mu.Unlock()
	return nil
}

// WatchFile watches the prompt file's directory and reloads the prompt on
// write or create events until ctx is cancelled. Editors that replace the
// file on save surface as Create, hence watching the parent directory.
func (p *PromptSource) WatchFile(ctx context.Context, logger *slog.Logger) error {
	if p.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(p.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("prompt watcher: started", slog.String("file", p.path))

	// Debounce rapid write bursts from editors.
	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time
	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("prompt watcher: stopped")
			return nil

		case <-reloadCh:
			if err := p.reload(); err != nil {
				logger.Warn("prompt watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("prompt watcher: prompt reloaded", slog.String("file", p.path))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(p.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("prompt watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// Snapshot is the view of current state sent to the model alongside the
// user's message.
type Snapshot struct {
	Now       time.Time
	Notes     []models.Note
	Events    []models.Event
	Reminders []models.Reminder
	Memory    map[string]any
}

// Render formats the snapshot as a compact text block. Note bodies are
// elided; the model references entities by id.
func (s Snapshot) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current time: %s\n", s.Now.Format(time.RFC3339))

	b.WriteString("\nNotes:\n")
	if len(s.Notes) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, n := range s.Notes {
		fmt.Fprintf(&b, "  - id=%s title=%q folder=%q\n", n.ID, n.Title, n.Folder)
	}

	b.WriteString("\nEvents:\n")
	if len(s.Events) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, e := range s.Events {
		fmt.Fprintf(&b, "  - id=%s title=%q start=%s end=%s\n",
			e.ID, e.Title, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
	}

	b.WriteString("\nReminders:\n")
	if len(s.Reminders) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, r := range s.Reminders {
		fmt.Fprintf(&b, "  - id=%s title=%q at=%s completed=%t\n",
			r.ID, r.Title, r.Datetime.Format(time.RFC3339), r.IsCompleted)
	}

	b.WriteString("\nMemory:\n")
	if len(s.Memory) == 0 {
		b.WriteString("  (none)\n")
	}
	for k, v := range s.Memory {
		fmt.Fprintf(&b, "  - %s: %v\n", k, v)
	}

	return b.String()
}
