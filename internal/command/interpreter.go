package command

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/starford/munin/internal/models"
)

// Interpreter applies command batches against the entity stores. It holds
// no state of its own; everything it touches is borrowed through Env.
type Interpreter struct{}

// New creates an Interpreter.
func New() *Interpreter { return &Interpreter{} }

// Run executes the batch and returns one result per command, in the
// batch's original order, plus the total wall-clock duration. Execution
// order differs from result order only in that UPDATE_MEMORY commands run
// first. A command failure never aborts the batch.
func (in *Interpreter) Run(env *Env, batch Batch) ([]models.CommandResult, time.Duration) {
	started := time.Now()

	results := make([]models.CommandResult, len(batch.Commands))
	for _, ic := range partition(batch.Commands) {
		results[ic.pos] = in.execute(env, ic.cmd)
	}
	return results, time.Since(started)
}

// execute dispatches a single command inside its own recovery boundary.
// A handler panic becomes a per-command error result and the batch
// continues with the next command.
func (in *Interpreter) execute(env *Env, cmd Command) (res models.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			res = errorResult(cmd, fmt.Sprintf("%v", r))
		}
	}()

	switch cmd.Name {
	case KindPlainResponse:
		return handlePlainResponse(env, cmd)
	case KindCreateNote:
		return handleCreateNote(env, cmd)
	case KindUpdateNote:
		return handleUpdateNote(env, cmd)
	case KindReadNotes:
		return handleReadNotes(env, cmd)
	case KindUpdateMemory:
		return handleUpdateMemory(env, cmd)
	case KindAskUser:
		return handleAskUser(env, cmd)
	case KindOpenLink:
		return handleOpenLink(env, cmd)
	case KindSetTimer:
		return handleSetTimer(env, cmd)
	case KindSetReminder:
		return handleSetReminder(env, cmd)
	case KindUpdateReminder:
		return handleUpdateReminder(env, cmd)
	case KindDeleteReminder:
		return handleDeleteReminder(env, cmd)
	case KindCreateEvent:
		return handleCreateEvent(env, cmd)
	case KindUpdateEvent:
		return handleUpdateEvent(env, cmd)
	case KindDeleteEvent:
		return handleDeleteEvent(env, cmd)
	case KindExecuteScript:
		return handleExecuteScript(env, cmd)
	case KindUpdateScript:
		return handleUpdateScript(env, cmd)
	case KindOpenApp:
		return handleOpenApp(env, cmd)
	case KindOpenCalendar:
		return handleOpenCalendar(env, cmd)
	case KindResetContext:
		return handleResetContext(env, cmd)
	default:
		return errorResult(cmd, fmt.Sprintf("unrecognized command %q", string(cmd.Name)))
	}
}

// Summary builds the aggregate command-group chat message for one
// invocation: succeeded/total counts plus elapsed milliseconds, with the
// individual outcomes attached.
func Summary(id string, results []models.CommandResult, elapsed time.Duration, at time.Time) models.ChatMessage {
	succeeded := lo.CountBy(results, func(r models.CommandResult) bool { return r.OK() })
	return models.ChatMessage{
		ID:        id,
		Role:      models.RoleAssistant,
		Kind:      models.ChatKindCommandGroup,
		Text:      fmt.Sprintf("%d/%d commands executed", succeeded, len(results)),
		Results:   results,
		ElapsedMS: elapsed.Milliseconds(),
		CreatedAt: at,
	}
}

func successResult(cmd Command, message string) models.CommandResult {
	return models.CommandResult{
		Command: string(cmd.Name),
		Payload: echoPayload(cmd.Payload),
		Status:  models.StatusSuccess,
		Message: message,
	}
}

func errorResult(cmd Command, message string) models.CommandResult {
	return models.CommandResult{
		Command: string(cmd.Name),
		Payload: echoPayload(cmd.Payload),
		Status:  models.StatusError,
		Message: message,
	}
}
