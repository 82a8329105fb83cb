// Package command implements the typed command batch produced by the AI
// gateway and the interpreter that applies it against the entity stores.
package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// Kind tags one command in a batch.
type Kind string

// The recognized command set. Anything else yields a per-command error
// naming the unrecognized kind.
const (
	KindPlainResponse  Kind = "PLAIN_RESPONSE"
	KindCreateNote     Kind = "CREATE_NOTE"
	KindUpdateNote     Kind = "UPDATE_NOTE"
	KindReadNotes      Kind = "READ_NOTES"
	KindUpdateMemory   Kind = "UPDATE_MEMORY"
	KindAskUser        Kind = "ASK_USER"
	KindOpenLink       Kind = "OPEN_LINK"
	KindSetTimer       Kind = "SET_TIMER"
	KindSetReminder    Kind = "SET_REMINDER"
	KindUpdateReminder Kind = "UPDATE_REMINDER"
	KindDeleteReminder Kind = "DELETE_REMINDER"
	KindCreateEvent    Kind = "CREATE_EVENT"
	KindUpdateEvent    Kind = "UPDATE_EVENT"
	KindDeleteEvent    Kind = "DELETE_EVENT"
	KindExecuteScript  Kind = "EXECUTE_SCRIPT"
	KindUpdateScript   Kind = "UPDATE_SCRIPT"
	KindOpenApp        Kind = "OPEN_APP"
	KindOpenCalendar   Kind = "OPEN_CALENDAR"
	KindResetContext   Kind = "RESET_CONTEXT"
)

// Command is a single instruction from the AI: a kind plus its
// kind-specific payload, decoded lazily by the matching handler.
type Command struct {
	Name    Kind            `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// Batch is an ordered sequence of commands delivered in one AI response.
type Batch struct {
	Commands []Command `json:"commands"`
}

// ErrMissingCommands marks an upstream payload without a commands array.
// The interpreter is never invoked for such payloads.
var ErrMissingCommands = errors.New("payload has no commands array")

// ParseBatch decodes an upstream JSON payload. Only an object carrying a
// `commands` array is accepted; any other shape is rejected so the caller
// can surface the generic bad-response message instead.
func ParseBatch(data []byte) (Batch, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Batch{}, fmt.Errorf("command: parse batch: %w", err)
	}
	rawList, ok := probe["commands"]
	if !ok {
		return Batch{}, ErrMissingCommands
	}
	var cmds []Command
	if err := json.Unmarshal(rawList, &cmds); err != nil {
		return Batch{}, fmt.Errorf("command: parse commands: %w", err)
	}
	return Batch{Commands: cmds}, nil
}

// indexed pairs a command with its position in the original batch so
// results can be reported in input order regardless of execution order.
type indexed struct {
	cmd Command
	pos int
}

// partition resorts the batch so UPDATE_MEMORY commands execute before
// everything else. It is a stable single-pass split: relative order is
// preserved within each group.
func partition(cmds []Command) []indexed {
	all := make([]indexed, len(cmds))
	for i, c := range cmds {
		all[i] = indexed{cmd: c, pos: i}
	}
	memory := lo.Filter(all, func(ic indexed, _ int) bool { return ic.cmd.Name == KindUpdateMemory })
	rest := lo.Filter(all, func(ic indexed, _ int) bool { return ic.cmd.Name != KindUpdateMemory })
	return append(memory, rest...)
}

// echoPayload decodes the raw payload for inclusion in a CommandResult.
// Malformed payloads echo as their raw string rather than failing the echo.
func echoPayload(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
