package assistant

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/sse"
)

// countdown is one running timer goroutine. Timers are process-lifetime
// only; a restart drops them.
type countdown struct {
	timer  models.Timer
	cancel chan struct{}
}

func (c *countdown) stop() {
	select {
	case <-c.cancel:
	default:
		close(c.cancel)
	}
}

// StartTimer begins a one-second countdown that ticks over SSE and posts a
// completion chat message when it reaches zero.
func (s *Service) StartTimer(user string, t models.Timer) {
	c := &countdown{timer: t, cancel: make(chan struct{})}

	s.mu.Lock()
	us := s.state(user)
	if old, ok := us.timers[t.ID]; ok {
		old.stop()
	}
	us.timers[t.ID] = c
	s.mu.Unlock()

	go s.runCountdown(user, c)
}

func (s *Service) runCountdown(user string, c *countdown) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.cancel:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		c.timer.Remaining--
		remaining := c.timer.Remaining
		s.mu.Unlock()

		if remaining > 0 {
			s.publish(sse.Event{Type: sse.TypeTimerTick, Data: c.timer}, false)
			continue
		}

		s.finishTimer(user, c)
		return
	}
}

func (s *Service) finishTimer(user string, c *countdown) {
	s.mu.Lock()
	us := s.state(user)
	if cur, ok := us.timers[c.timer.ID]; ok && cur == c {
		delete(us.timers, c.timer.ID)
	}
	s.mu.Unlock()

	label := c.timer.Label
	if label == "" {
		label = fmt.Sprintf("%d second timer", c.timer.Duration)
	}
	if err := s.AppendChat(user, models.ChatMessage{
		ID:        s.newID(),
		Role:      models.RoleSystem,
		Kind:      models.ChatKindTimer,
		Text:      fmt.Sprintf("Timer finished: %s", label),
		CreatedAt: s.now(),
	}); err != nil {
		s.logger.Error("timer completion message failed", "user", user, "error", err.Error())
	}
	s.publish(sse.Event{Type: sse.TypeTimerFinished, Data: c.timer}, false)
}

// Timers returns a snapshot of the user's running countdowns.
func (s *Service) Timers(user string) []models.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(lo.Values(s.state(user).timers), func(c *countdown, _ int) models.Timer {
		return c.timer
	})
}

// CancelTimer stops a running countdown without a completion message.
func (s *Service) CancelTimer(user, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	us := s.state(user)
	c, ok := us.timers[id]
	if !ok {
		return false
	}
	c.stop()
	delete(us.timers, id)
	return true
}
