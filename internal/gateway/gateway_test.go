package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/munin/internal/command"
	"github.com/starford/munin/internal/models"
)

func testGateway(client Client) *Gateway {
	prompts, _ := NewPromptSource("")
	return New(client, prompts)
}

func TestGenerateParsesBatch(t *testing.T) {
	sc := &ScriptedClient{Replies: []string{
		`{"commands":[{"command":"PLAIN_RESPONSE","payload":{"message":"hi"}}]}`,
	}}
	g := testGateway(sc)

	batch, err := g.Generate(context.Background(), "u1", "hello", Snapshot{Now: time.Now()})
	require.NoError(t, err)
	require.Len(t, batch.Commands, 1)
	assert.Equal(t, command.KindPlainResponse, batch.Commands[0].Name)

	// System prompt carries the state snapshot.
	assert.Contains(t, sc.LastSystem, "# Current state")
	require.Len(t, sc.LastMessages, 1)
	assert.Equal(t, "hello", sc.LastMessages[0].Content)
}

func TestGenerateStripsCodeFences(t *testing.T) {
	sc := &ScriptedClient{Replies: []string{
		"```json\n{\"commands\":[]}\n```",
	}}
	g := testGateway(sc)

	batch, err := g.Generate(context.Background(), "u1", "hi", Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, batch.Commands)
}

func TestGenerateBadResponse(t *testing.T) {
	sc := &ScriptedClient{Replies: []string{"sure, here is some prose"}}
	g := testGateway(sc)

	_, err := g.Generate(context.Background(), "u1", "hi", Snapshot{})
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestGenerateMissingCommandsKey(t *testing.T) {
	sc := &ScriptedClient{Replies: []string{`{"message":"just an object"}`}}
	g := testGateway(sc)

	_, err := g.Generate(context.Background(), "u1", "hi", Snapshot{})
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestGenerateClientError(t *testing.T) {
	sc := &ScriptedClient{Err: errors.New("upstream down")}
	g := testGateway(sc)

	_, err := g.Generate(context.Background(), "u1", "hi", Snapshot{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadResponse)
}

func TestSessionAccumulatesAndResets(t *testing.T) {
	sc := &ScriptedClient{Replies: []string{`{"commands":[]}`}}
	g := testGateway(sc)

	_, err := g.Generate(context.Background(), "u1", "first", Snapshot{})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "u1", "second", Snapshot{})
	require.NoError(t, err)

	// Second call sees the prior user turn and the model reply.
	require.Len(t, sc.LastMessages, 3)
	assert.Equal(t, "first", sc.LastMessages[0].Content)
	assert.Equal(t, "second", sc.LastMessages[2].Content)

	require.NoError(t, g.Reset("u1"))
	_, err = g.Generate(context.Background(), "u1", "fresh", Snapshot{})
	require.NoError(t, err)
	require.Len(t, sc.LastMessages, 1)
	assert.Equal(t, "fresh", sc.LastMessages[0].Content)
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"commands":[]}`, `{"commands":[]}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`Here you go: {"a":1} hope that helps`, `{"a":1}`},
		{"no json at all", "no json at all"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractJSON(tc.in), "input %q", tc.in)
	}
}

func TestSnapshotRender(t *testing.T) {
	snap := Snapshot{
		Now:   time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		Notes: []models.Note{{ID: "n1", Title: "Groceries", Folder: "Home"}},
		Reminders: []models.Reminder{
			{ID: "r1", Title: "Dentist", Datetime: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)},
		},
		Memory: map[string]any{"likes": "tea"},
	}
	out := snap.Render()
	assert.Contains(t, out, "id=n1")
	assert.Contains(t, out, `title="Groceries"`)
	assert.Contains(t, out, "id=r1")
	assert.Contains(t, out, "likes: tea")
	assert.Contains(t, out, "Events:\n  (none)")
}

func TestPromptSourceMissingFile(t *testing.T) {
	_, err := NewPromptSource("/nonexistent/prompt.txt")
	assert.Error(t, err)
}
