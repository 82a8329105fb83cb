package command

import (
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/munin/internal/models"
)

// Default window geometry for newly launched mini-apps. Positions are
// randomized within [windowOffsetMin, windowOffsetMin+windowOffsetSpan).
const (
	windowDefaultWidth  = 500
	windowDefaultHeight = 400
	windowOffsetMin     = 40
	windowOffsetSpan    = 120
)

func decode[T any](raw json.RawMessage) (T, error) {
	var p T
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("invalid payload: %v", err)
	}
	return p, nil
}

func parseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q", s)
	}
	return t, nil
}

func defaultWindow(env *Env) models.Window {
	return models.Window{
		X:      windowOffsetMin + env.RandInt(windowOffsetSpan),
		Y:      windowOffsetMin + env.RandInt(windowOffsetSpan),
		Width:  windowDefaultWidth,
		Height: windowDefaultHeight,
	}
}

type plainResponsePayload struct {
	Message string `json:"message"`
}

func handlePlainResponse(env *Env, cmd Command) models.CommandResult {
	p, err := decode[plainResponsePayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	msg := models.ChatMessage{
		ID:        env.NewID(),
		Role:      models.RoleAssistant,
		Kind:      models.ChatKindPlain,
		Text:      p.Message,
		CreatedAt: env.Now(),
	}
	if err := env.Effects.AppendChat(env.User, msg); err != nil {
		return errorResult(cmd, err.Error())
	}
	return successResult(cmd, "Replied to the user.")
}

type createNotePayload struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Folder     string `json:"folder"`
	Background string `json:"background"`
}

func handleCreateNote(env *Env, cmd Command) models.CommandResult {
	p, err := decode[createNotePayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	folder := p.Folder
	if folder == "" {
		folder = models.DefaultFolder
	}
	now := env.Now()
	note := models.Note{
		ID:         env.NewID(),
		Title:      p.Title,
		Content:    p.Content,
		Folder:     folder,
		Background: p.Background,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := env.Notes.Append(env.User, note); err != nil {
		return errorResult(cmd, err.Error())
	}
	env.Effects.Navigate(env.User, models.UIState{ActiveView: models.ViewNotes, FocusedNoteID: note.ID})
	return successResult(cmd, fmt.Sprintf("Created note %q.", note.Title))
}

type updateNotePayload struct {
	ID            string  `json:"id"`
	Title         *string `json:"title"`
	Content       *string `json:"content"`
	AppendContent *string `json:"append_content"`
}

func handleUpdateNote(env *Env, cmd Command) models.CommandResult {
	p, err := decode[updateNotePayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}

	now := env.Now()
	note, found, err := env.Notes.Patch(env.User, p.ID, func(n models.Note) models.Note {
		switch {
		case p.AppendContent != nil:
			// Append wins over replace when both are present; the existing
			// content is untouched except for the new paragraph.
			n.Content = n.Content + "<p>" + *p.AppendContent + "</p>"
		case p.Content != nil:
			n.Content = *p.Content
		}
		if p.Title != nil {
			n.Title = *p.Title
		}
		n.UpdatedAt = now
		return n
	})
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	if !found {
		return errorResult(cmd, fmt.Sprintf("note %s not found", p.ID))
	}

	var summary string
	switch {
	case p.AppendContent != nil:
		summary = fmt.Sprintf("Appended new content to note %q.", note.Title)
	case p.Content != nil:
		summary = fmt.Sprintf("Replaced the content of note %q.", note.Title)
	case p.Title != nil:
		summary = fmt.Sprintf("Renamed note to %q.", note.Title)
	default:
		summary = fmt.Sprintf("Updated note %q.", note.Title)
	}

	notice := models.ChatMessage{
		ID:        env.NewID(),
		Role:      models.RoleAssistant,
		Kind:      models.ChatKindNoteUpdate,
		Text:      summary,
		CreatedAt: now,
	}
	if err := env.Effects.AppendChat(env.User, notice); err != nil {
		return errorResult(cmd, err.Error())
	}
	return successResult(cmd, summary)
}

func handleReadNotes(env *Env, cmd Command) models.CommandResult {
	env.Effects.Navigate(env.User, models.UIState{ActiveView: models.ViewNotes})
	return successResult(cmd, "Opened the notes dashboard.")
}

type updateMemoryPayload struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (p updateMemoryPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Key, validation.Required),
	)
}

func handleUpdateMemory(env *Env, cmd Command) models.CommandResult {
	p, err := decode[updateMemoryPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	if err := p.Validate(); err != nil {
		return errorResult(cmd, err.Error())
	}
	if err := env.Memory.Set(env.User, p.Key, p.Value); err != nil {
		return errorResult(cmd, err.Error())
	}
	return successResult(cmd, fmt.Sprintf("Remembered %q.", p.Key))
}

type askUserPayload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func (p askUserPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Question, validation.Required),
	)
}

func handleAskUser(env *Env, cmd Command) models.CommandResult {
	p, err := decode[askUserPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	if err := p.Validate(); err != nil {
		return errorResult(cmd, err.Error())
	}
	env.Effects.RaiseAsk(env.User, models.PendingAsk{Question: p.Question, Options: p.Options})
	return successResult(cmd, "Asked the user for confirmation.")
}

type openLinkPayload struct {
	URL string `json:"url"`
}

func (p openLinkPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.URL, validation.Required),
	)
}

func handleOpenLink(env *Env, cmd Command) models.CommandResult {
	p, err := decode[openLinkPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	if err := p.Validate(); err != nil {
		return errorResult(cmd, err.Error())
	}
	env.Effects.OpenLink(env.User, p.URL)
	return successResult(cmd, fmt.Sprintf("Opened %s.", p.URL))
}

type setTimerPayload struct {
	DurationSeconds int    `json:"duration_seconds"`
	Label           string `json:"label"`
}

func (p setTimerPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DurationSeconds, validation.Required, validation.Min(1)),
	)
}

func handleSetTimer(env *Env, cmd Command) models.CommandResult {
	p, err := decode[setTimerPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	if err := p.Validate(); err != nil {
		return errorResult(cmd, err.Error())
	}
	t := models.Timer{
		ID:        env.NewID(),
		Label:     p.Label,
		Duration:  p.DurationSeconds,
		Remaining: p.DurationSeconds,
	}
	env.Effects.StartTimer(env.User, t)
	return successResult(cmd, fmt.Sprintf("Started a %ds timer.", p.DurationSeconds))
}

type setReminderPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Datetime    string `json:"datetime"`
	Color       string `json:"color"`
	NoteID      string `json:"note_id"`
}

func handleSetReminder(env *Env, cmd Command) models.CommandResult {
	p, err := decode[setReminderPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	at, err := parseInstant(p.Datetime)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	color := p.Color
	if color == "" {
		color = models.DefaultReminderColor
	}
	now := env.Now()
	rem := models.Reminder{
		ID:          env.NewID(),
		Title:       p.Title,
		Description: p.Description,
		Datetime:    at,
		Color:       color,
		NoteID:      p.NoteID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := env.Reminders.Append(env.User, rem); err != nil {
		return errorResult(cmd, err.Error())
	}
	return successResult(cmd, fmt.Sprintf("Set reminder %q.", rem.Title))
}

type updateReminderPayload struct {
	ID          string  `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Datetime    *string `json:"datetime"`
	Color       *string `json:"color"`
	IsCompleted *bool   `json:"is_completed"`
	NoteID      *string `json:"note_id"`
}

func handleUpdateReminder(env *Env, cmd Command) models.CommandResult {
	p, err := decode[updateReminderPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	var at time.Time
	if p.Datetime != nil {
		if at, err = parseInstant(*p.Datetime); err != nil {
			return errorResult(cmd, err.Error())
		}
	}
	now := env.Now()
	rem, found, err := env.Reminders.Patch(env.User, p.ID, func(r models.Reminder) models.Reminder {
		if p.Title != nil {
			r.Title = *p.Title
		}
		if p.Description != nil {
			r.Description = *p.Description
		}
		if p.Datetime != nil {
			r.Datetime = at
		}
		if p.Color != nil {
			r.Color = *p.Color
		}
		if p.IsCompleted != nil {
			r.IsCompleted = *p.IsCompleted
		}
		if p.NoteID != nil {
			r.NoteID = *p.NoteID
		}
		r.UpdatedAt = now
		return r
	})
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	if !found {
		return errorResult(cmd, fmt.Sprintf("reminder %s not found", p.ID))
	}
	return successResult(cmd, fmt.Sprintf("Updated reminder %q.", rem.Title))
}

type deleteByIDPayload struct {
	ID string `json:"id"`
}

func handleDeleteReminder(env *Env, cmd Command) models.CommandResult {
	p, err := decode[deleteByIDPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	rem, found, err := env.Reminders.Remove(env.User, p.ID)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	if !found {
		return errorResult(cmd, fmt.Sprintf("reminder %s not found", p.ID))
	}
	return successResult(cmd, fmt.Sprintf("Deleted reminder %q.", rem.Title))
}

type createEventPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	IsAllDay    bool   `json:"is_all_day"`
	Color       string `json:"color"`
	NoteID      string `json:"note_id"`
}

func handleCreateEvent(env *Env, cmd Command) models.CommandResult {
	p, err := decode[createEventPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	start, err := parseInstant(p.Start)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	end, err := parseInstant(p.End)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	color := p.Color
	if color == "" {
		color = models.DefaultEventColor
	}
	now := env.Now()
	ev := models.Event{
		ID:          env.NewID(),
		Title:       p.Title,
		Description: p.Description,
		Start:       start,
		End:         end,
		IsAllDay:    p.IsAllDay,
		Color:       color,
		NoteID:      p.NoteID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := env.Events.Append(env.User, ev); err != nil {
		return errorResult(cmd, err.Error())
	}
	return successResult(cmd, fmt.Sprintf("Created event %q.", ev.Title))
}

type updateEventPayload struct {
	ID          string  `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	IsAllDay    *bool   `json:"is_all_day"`
	Color       *string `json:"color"`
	NoteID      *string `json:"note_id"`
}

func handleUpdateEvent(env *Env, cmd Command) models.CommandResult {
	p, err := decode[updateEventPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	var start, end time.Time
	if p.Start != nil {
		if start, err = parseInstant(*p.Start); err != nil {
			return errorResult(cmd, err.Error())
		}
	}
	if p.End != nil {
		if end, err = parseInstant(*p.End); err != nil {
			return errorResult(cmd, err.Error())
		}
	}
	now := env.Now()
	ev, found, err := env.Events.Patch(env.User, p.ID, func(e models.Event) models.Event {
		if p.Title != nil {
			e.Title = *p.Title
		}
		if p.Description != nil {
			e.Description = *p.Description
		}
		if p.Start != nil {
			e.Start = start
		}
		if p.End != nil {
			e.End = end
		}
		if p.IsAllDay != nil {
			e.IsAllDay = *p.IsAllDay
		}
		if p.Color != nil {
			e.Color = *p.Color
		}
		if p.NoteID != nil {
			e.NoteID = *p.NoteID
		}
		e.UpdatedAt = now
		return e
	})
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	if !found {
		return errorResult(cmd, fmt.Sprintf("event %s not found", p.ID))
	}
	return successResult(cmd, fmt.Sprintf("Updated event %q.", ev.Title))
}

func handleDeleteEvent(env *Env, cmd Command) models.CommandResult {
	p, err := decode[deleteByIDPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	ev, found, err := env.Events.Remove(env.User, p.ID)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	if !found {
		return errorResult(cmd, fmt.Sprintf("event %s not found", p.ID))
	}
	return successResult(cmd, fmt.Sprintf("Deleted event %q.", ev.Title))
}

type executeScriptPayload struct {
	Title      string `json:"title"`
	HTML       string `json:"html"`
	CSS        string `json:"css"`
	JavaScript string `json:"javascript"`
}

func handleExecuteScript(env *Env, cmd Command) models.CommandResult {
	p, err := decode[executeScriptPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	now := env.Now()
	app := models.SavedApp{
		ID:         env.NewID(),
		Title:      p.Title,
		HTML:       p.HTML,
		CSS:        p.CSS,
		JavaScript: p.JavaScript,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := env.Apps.Append(env.User, app); err != nil {
		return errorResult(cmd, err.Error())
	}
	env.Effects.Launch(env.User, app, defaultWindow(env))
	return successResult(cmd, fmt.Sprintf("Launched app %q.", app.Title))
}

type updateScriptPayload struct {
	ID         string  `json:"id"`
	Title      *string `json:"title"`
	HTML       *string `json:"html"`
	CSS        *string `json:"css"`
	JavaScript *string `json:"javascript"`
}

func handleUpdateScript(env *Env, cmd Command) models.CommandResult {
	p, err := decode[updateScriptPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}

	now := env.Now()
	apply := func(title, html, css, js string) (string, string, string, string) {
		if p.Title != nil {
			title = *p.Title
		}
		if p.HTML != nil {
			html = *p.HTML
		}
		if p.CSS != nil {
			css = *p.CSS
		}
		if p.JavaScript != nil {
			js = *p.JavaScript
		}
		return title, html, css, js
	}

	saved, savedFound, err := env.Apps.Patch(env.User, p.ID, func(a models.SavedApp) models.SavedApp {
		a.Title, a.HTML, a.CSS, a.JavaScript = apply(a.Title, a.HTML, a.CSS, a.JavaScript)
		a.UpdatedAt = now
		return a
	})
	if err != nil {
		return errorResult(cmd, err.Error())
	}

	// Running instances are patched in place; window geometry is preserved.
	var runningTitle string
	runningFound := env.Effects.PatchRunning(env.User, p.ID, func(ra models.RunningApp) models.RunningApp {
		ra.Title, ra.HTML, ra.CSS, ra.JavaScript = apply(ra.Title, ra.HTML, ra.CSS, ra.JavaScript)
		ra.UpdatedAt = now
		runningTitle = ra.Title
		return ra
	})

	if !savedFound && !runningFound {
		return errorResult(cmd, fmt.Sprintf("app %s not found", p.ID))
	}

	title := saved.Title
	if title == "" {
		title = runningTitle
	}
	return successResult(cmd, fmt.Sprintf("Updated app %q.", title))
}

func handleOpenApp(env *Env, cmd Command) models.CommandResult {
	p, err := decode[deleteByIDPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	app, found, err := env.Apps.Get(env.User, p.ID)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	if !found {
		return errorResult(cmd, fmt.Sprintf("app %s not found", p.ID))
	}
	env.Effects.Launch(env.User, app, defaultWindow(env))
	return successResult(cmd, fmt.Sprintf("Opened app %q.", app.Title))
}

type openCalendarPayload struct {
	Date string `json:"date"`
}

func handleOpenCalendar(env *Env, cmd Command) models.CommandResult {
	p, err := decode[openCalendarPayload](cmd.Payload)
	if err != nil {
		return errorResult(cmd, err.Error())
	}
	state := models.UIState{ActiveView: models.ViewCalendar}
	if p.Date != "" {
		at, err := parseInstant(p.Date)
		if err != nil {
			// Bare dates are common in calendar payloads.
			if at, err = time.Parse(time.DateOnly, p.Date); err != nil {
				return errorResult(cmd, fmt.Sprintf("invalid date %q", p.Date))
			}
		}
		state.CalendarDate = at
	}
	env.Effects.Navigate(env.User, state)
	return successResult(cmd, "Opened the calendar.")
}

func handleResetContext(env *Env, cmd Command) models.CommandResult {
	if err := env.Effects.ResetConversation(env.User); err != nil {
		return errorResult(cmd, err.Error())
	}
	return successResult(cmd, "Cleared the conversation.")
}
