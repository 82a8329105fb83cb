package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/sse"
)

// reminderPollInterval bounds how late a reminder can fire.
const reminderPollInterval = 15 * time.Second

// RunReminderLoop polls for due reminders until ctx is cancelled. A
// reminder fires at most once: firing is deduplicated against the chat
// log itself, so a restart between fire and completion does not repeat it.
func (s *Service) RunReminderLoop(ctx context.Context) error {
	ticker := time.NewTicker(reminderPollInterval)
	defer ticker.Stop()

	s.logger.Info("reminder loop: started", slog.Duration("interval", reminderPollInterval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder loop: stopped")
			return nil
		case <-ticker.C:
			if err := s.fireDueReminders(); err != nil {
				s.logger.Error("reminder loop: poll failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Service) fireDueReminders() error {
	users, err := s.stores.Raw().Users()
	if err != nil {
		return err
	}
	for _, user := range users {
		if err := s.fireDueRemindersFor(user); err != nil {
			s.logger.Error("reminder loop: user poll failed",
				slog.String("user", user), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Service) fireDueRemindersFor(user string) error {
	reminders, err := s.stores.Reminders.All(user)
	if err != nil {
		return err
	}
	now := s.now()
	due := lo.Filter(reminders, func(r models.Reminder, _ int) bool {
		return !r.IsCompleted && !r.Datetime.After(now)
	})
	if len(due) == 0 {
		return nil
	}

	chat, err := s.stores.Chat.All(user)
	if err != nil {
		return err
	}

	for _, r := range due {
		if alreadyFired(chat, r) {
			continue
		}
		text := fmt.Sprintf("Reminder: %s", r.Title)
		if r.Description != "" {
			text += " (" + r.Description + ")"
		}
		if err := s.AppendChat(user, models.ChatMessage{
			ID:        s.newID(),
			Role:      models.RoleSystem,
			Kind:      models.ChatKindReminder,
			Text:      text,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		s.publish(sse.Event{Type: sse.TypeReminderFired, Data: r}, false)
	}
	return nil
}

// alreadyFired reports whether the chat log already carries the fired
// notification for this reminder.
func alreadyFired(chat []models.ChatMessage, r models.Reminder) bool {
	return lo.ContainsBy(chat, func(m models.ChatMessage) bool {
		return m.Kind == models.ChatKindReminder && strings.Contains(m.Text, r.Title)
	})
}
