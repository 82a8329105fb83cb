// Package assistant orchestrates the chat pipeline: user message to AI
// gateway to command interpreter to chat log, plus the ephemeral runtime
// state (running apps, timers, pending confirmations, UI navigation) that
// is never persisted.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/starford/munin/internal/apperr"
	"github.com/starford/munin/internal/command"
	"github.com/starford/munin/internal/gateway"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/sse"
	"github.com/starford/munin/internal/store"
)

// badResponseText is shown when the upstream reply cannot be parsed as a
// command batch or the request fails outright.
const badResponseText = "Sorry, I could not process the assistant's response. Please try again."

// Service runs the pipeline over caller-owned stores. One invocation per
// user is in flight at a time; the busy flag plays the role of the UI
// loading state that disables input.
type Service struct {
	stores *store.Stores
	gw     *gateway.Gateway
	interp *command.Interpreter
	broker *sse.Broker
	logger *slog.Logger

	now     func() time.Time
	newID   func() string
	randInt func(n int) int

	mu    sync.Mutex
	users map[string]*userState
}

type userState struct {
	busy    bool
	aiReady bool
	pending *models.PendingAsk
	ui      models.UIState
	running []models.RunningApp
	timers  map[string]*countdown
}

// New creates a Service. broker may be nil in tests.
func New(stores *store.Stores, gw *gateway.Gateway, broker *sse.Broker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		stores:  stores,
		gw:      gw,
		interp:  command.New(),
		broker:  broker,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		randInt: rand.Intn,
		users:   make(map[string]*userState),
	}
}

// state returns the runtime state for user, creating it on first touch.
// Callers must hold s.mu.
func (s *Service) state(user string) *userState {
	us, ok := s.users[user]
	if !ok {
		us = &userState{aiReady: true, ui: models.UIState{ActiveView: models.ViewChat}, timers: map[string]*countdown{}}
		s.users[user] = us
	}
	return us
}

// HandleMessage runs one full pipeline cycle for a user message. It
// returns the aggregate command-group message when the batch produced
// results, or nil when the turn ended with a plain chat message (bad
// response fallback included).
func (s *Service) HandleMessage(ctx context.Context, user, text string) (*models.ChatMessage, error) {
	s.mu.Lock()
	us := s.state(user)
	switch {
	case !us.aiReady:
		s.mu.Unlock()
		return nil, apperr.ErrAINotReady
	case us.pending != nil:
		s.mu.Unlock()
		return nil, apperr.ErrConfirmationPending
	case us.busy:
		s.mu.Unlock()
		return nil, apperr.ErrBusy
	}
	us.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		us.busy = false
		s.mu.Unlock()
	}()

	if err := s.AppendChat(user, models.ChatMessage{
		ID:        s.newID(),
		Role:      models.RoleUser,
		Kind:      models.ChatKindPlain,
		Text:      text,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, err
	}

	snap, err := s.snapshot(user)
	if err != nil {
		return nil, err
	}

	batch, err := s.gw.Generate(ctx, user, text, snap)
	if err != nil {
		// Upstream faults never reach the interpreter; a single generic
		// message is shown and input is re-enabled.
		s.logger.Warn("gateway request failed", slog.String("user", user), slog.String("error", err.Error()))
		if !errors.Is(err, gateway.ErrBadResponse) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		appendErr := s.AppendChat(user, models.ChatMessage{
			ID:        s.newID(),
			Role:      models.RoleAssistant,
			Kind:      models.ChatKindError,
			Text:      badResponseText,
			CreatedAt: s.now(),
		})
		return nil, appendErr
	}

	results, elapsed := s.interp.Run(s.env(user), batch)
	if len(results) == 0 {
		return nil, nil
	}

	summary := command.Summary(s.newID(), results, elapsed, s.now())
	if err := s.AppendChat(user, summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Confirm resolves a pending ASK_USER confirmation and re-invokes the
// pipeline with a synthesized user message.
func (s *Service) Confirm(ctx context.Context, user, option string) (*models.ChatMessage, error) {
	s.mu.Lock()
	us := s.state(user)
	if us.pending == nil {
		s.mu.Unlock()
		return nil, apperr.ErrNotFound
	}
	us.pending = nil
	s.mu.Unlock()

	return s.HandleMessage(ctx, user, fmt.Sprintf("I have chosen: %s", option))
}

// Pending returns the outstanding confirmation, if any.
func (s *Service) Pending(user string) *models.PendingAsk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(user).pending
}

// UI returns the current ephemeral navigation state.
func (s *Service) UI(user string) models.UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(user).ui
}

// Ready reports whether the upstream AI session is usable.
func (s *Service) Ready(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(user).aiReady
}

// env builds the interpreter's borrowed access for one invocation.
func (s *Service) env(user string) *command.Env {
	return &command.Env{
		User:      user,
		Notes:     noteAdapter(s.stores),
		Events:    eventAdapter(s.stores),
		Reminders: reminderAdapter(s.stores),
		Apps:      appAdapter(s.stores),
		Memory:    s.stores.Memory,
		Effects:   s,
		Now:       s.now,
		NewID:     s.newID,
		RandInt:   s.randInt,
	}
}

func (s *Service) snapshot(user string) (gateway.Snapshot, error) {
	notes, err := s.stores.Notes.All(user)
	if err != nil {
		return gateway.Snapshot{}, err
	}
	events, err := s.stores.Events.All(user)
	if err != nil {
		return gateway.Snapshot{}, err
	}
	reminders, err := s.stores.Reminders.All(user)
	if err != nil {
		return gateway.Snapshot{}, err
	}
	memory, err := s.stores.Memory.All(user)
	if err != nil {
		return gateway.Snapshot{}, err
	}
	return gateway.Snapshot{
		Now:       s.now(),
		Notes:     notes,
		Events:    events,
		Reminders: reminders,
		Memory:    memory,
	}, nil
}

// publish forwards an event to the broker when one is attached.
func (s *Service) publish(event sse.Event, entity bool) {
	if s.broker == nil {
		return
	}
	if entity {
		s.broker.PublishEntity(event)
		return
	}
	s.broker.Publish(event)
}

// AppendChat persists a chat message and notifies listeners. It is part
// of the interpreter's effect surface.
func (s *Service) AppendChat(user string, msg models.ChatMessage) error {
	err := s.stores.Chat.Mutate(user, func(msgs []models.ChatMessage) ([]models.ChatMessage, error) {
		return append(msgs, msg), nil
	})
	if err != nil {
		return err
	}
	s.publish(sse.Event{Type: sse.TypeChatMessage, Data: msg}, true)
	return nil
}

// Navigate records ephemeral UI navigation state.
func (s *Service) Navigate(user string, state models.UIState) {
	s.mu.Lock()
	s.state(user).ui = state
	s.mu.Unlock()
	s.publish(sse.Event{Type: sse.TypeNavigate, Data: state}, false)
}

// RaiseAsk suspends normal input behind a confirmation request.
func (s *Service) RaiseAsk(user string, ask models.PendingAsk) {
	s.mu.Lock()
	s.state(user).pending = &ask
	s.mu.Unlock()
	s.publish(sse.Event{Type: sse.TypeAskRaised, Data: ask}, false)
}

// OpenLink asks connected UIs to open a URL in a new browsing context.
func (s *Service) OpenLink(user, url string) {
	s.publish(sse.Event{Type: sse.TypeLinkOpen, Data: map[string]string{"url": url}}, false)
}

// Launch instantiates a running app from a saved bundle. A zero Z is
// replaced with the current max z-index plus one.
func (s *Service) Launch(user string, app models.SavedApp, win models.Window) models.RunningApp {
	s.mu.Lock()
	us := s.state(user)
	if win.Z == 0 {
		maxZ := 0
		for _, ra := range us.running {
			if ra.Window.Z > maxZ {
				maxZ = ra.Window.Z
			}
		}
		win.Z = maxZ + 1
	}
	ra := models.RunningApp{SavedApp: app, Window: win}
	us.running = append(us.running, ra)
	s.mu.Unlock()

	s.publish(sse.Event{Type: sse.TypeAppLaunched, Data: ra}, false)
	return ra
}

// PatchRunning applies fn to a running instance by id. Window geometry is
// preserved across the patch.
func (s *Service) PatchRunning(user, id string, fn func(models.RunningApp) models.RunningApp) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	us := s.state(user)
	for i, ra := range us.running {
		if ra.ID == id {
			win := ra.Window
			next := fn(ra)
			next.Window = win
			us.running[i] = next
			return true
		}
	}
	return false
}

// RunningApps returns a snapshot of the user's running instances.
func (s *Service) RunningApps(user string) []models.RunningApp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RunningApp{}, s.state(user).running...)
}

// CloseApp removes a running instance. The saved bundle is untouched.
func (s *Service) CloseApp(user, id string) bool {
	s.mu.Lock()
	us := s.state(user)
	before := len(us.running)
	us.running = lo.Reject(us.running, func(ra models.RunningApp, _ int) bool { return ra.ID == id })
	closed := len(us.running) < before
	s.mu.Unlock()

	if closed {
		s.publish(sse.Event{Type: sse.TypeAppClosed, Data: map[string]string{"id": id}}, false)
	}
	return closed
}

// PatchWindow updates a running instance's window geometry.
func (s *Service) PatchWindow(user, id string, fn func(models.Window) models.Window) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	us := s.state(user)
	for i, ra := range us.running {
		if ra.ID == id {
			us.running[i].Window = fn(ra.Window)
			return true
		}
	}
	return false
}

// LaunchSaved instantiates a saved app by id with default window
// placement, for the manual (non-AI) launch path.
func (s *Service) LaunchSaved(user, id string) (models.RunningApp, error) {
	app, found, err := appAdapter(s.stores).Get(user, id)
	if err != nil {
		return models.RunningApp{}, err
	}
	if !found {
		return models.RunningApp{}, apperr.ErrNotFound
	}
	win := models.Window{
		X:      40 + s.randInt(120),
		Y:      40 + s.randInt(120),
		Width:  500,
		Height: 400,
	}
	return s.Launch(user, app, win), nil
}

// ResetConversation clears non-system chat history and re-establishes the
// upstream AI session. Reinitialization failure is reported by flipping
// the ready flag, never as the calling command's error.
func (s *Service) ResetConversation(user string) error {
	err := s.stores.Chat.Mutate(user, func(msgs []models.ChatMessage) ([]models.ChatMessage, error) {
		return lo.Filter(msgs, func(m models.ChatMessage, _ int) bool {
			return m.Role == models.RoleSystem
		}), nil
	})
	if err != nil {
		return err
	}

	ready := true
	if resetErr := s.gw.Reset(user); resetErr != nil {
		s.logger.Error("ai session reinit failed", slog.String("user", user), slog.String("error", resetErr.Error()))
		ready = false
	}
	s.mu.Lock()
	s.state(user).aiReady = ready
	s.mu.Unlock()

	s.publish(sse.Event{Type: sse.TypeStateUpdated, Data: map[string]string{}}, false)
	return nil
}

// DeleteAllData removes every persisted key carrying the user's id and
// resets runtime state.
func (s *Service) DeleteAllData(user string) error {
	if err := s.stores.Raw().DeleteUserData(user); err != nil {
		return err
	}

	s.mu.Lock()
	us := s.state(user)
	for _, c := range us.timers {
		c.stop()
	}
	us.timers = map[string]*countdown{}
	us.running = nil
	us.pending = nil
	us.ui = models.UIState{ActiveView: models.ViewChat}
	s.mu.Unlock()

	s.publish(sse.Event{Type: sse.TypeStateUpdated, Data: map[string]string{}}, false)
	return nil
}

// Compile-time check: Service is the interpreter's effect surface.
var _ command.EffectSink = (*Service)(nil)
