package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/starford/munin/internal/command"
)

// ErrBadResponse marks an upstream reply that is not a valid command
// batch. The caller surfaces a single generic chat message and never
// invokes the interpreter.
var ErrBadResponse = errors.New("gateway: bad response")

// Gateway owns the per-user conversation with the model: it builds the
// system prompt from the prompt source plus a state snapshot, sends the
// conversation, and parses the reply into a command batch.
type Gateway struct {
	client  Client
	prompts *PromptSource

	mu       sync.Mutex
	sessions map[string][]Message
}

// New creates a Gateway.
func New(client Client, prompts *PromptSource) *Gateway {
	return &Gateway{
		client:   client,
		prompts:  prompts,
		sessions: make(map[string][]Message),
	}
}

// Generate sends the user's message with the current snapshot and returns
// the parsed command batch. The user turn and the model reply are recorded
// in the conversation session either way; a reply that does not parse as a
// command batch returns ErrBadResponse.
func (g *Gateway) Generate(ctx context.Context, user, text string, snap Snapshot) (command.Batch, error) {
	system := g.prompts.Current() + "\n\n# Current state\n\n" + snap.Render()

	g.mu.Lock()
	history := append([]Message{}, g.sessions[user]...)
	g.mu.Unlock()
	history = append(history, Message{Role: "user", Content: text})

	reply, err := g.client.Complete(ctx, system, history)
	if err != nil {
		return command.Batch{}, fmt.Errorf("gateway: complete: %w", err)
	}

	g.mu.Lock()
	g.sessions[user] = append(g.sessions[user],
		Message{Role: "user", Content: text},
		Message{Role: "assistant", Content: reply})
	g.mu.Unlock()

	batch, err := command.ParseBatch([]byte(extractJSON(reply)))
	if err != nil {
		return command.Batch{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return batch, nil
}

// Reset discards the user's conversation and re-establishes a fresh
// session. It fails when the prompt source cannot produce a system prompt,
// which leaves the assistant in a not-ready state until a later reset
// succeeds.
func (g *Gateway) Reset(user string) error {
	g.mu.Lock()
	delete(g.sessions, user)
	g.mu.Unlock()

	if strings.TrimSpace(g.prompts.Current()) == "" {
		return fmt.Errorf("gateway: reset: empty system prompt")
	}
	return nil
}

// extractJSON strips markdown code fences and surrounding prose from a
// model reply, keeping the outermost JSON object. Models habitually wrap
// structured output in fences even when told not to.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
