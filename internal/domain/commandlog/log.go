package commandlog

import (
	"context"
	"sort"
	"sync"

	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/domain/simtime"
)

// LoggedCommand is one entry in the command stream: the tick it targets,
// the originating client (0 for the local/authoritative origin), and the
// command itself.
type LoggedCommand struct {
	Tick     simtime.Tick
	OriginID uint64
	Command  common.Request
}

// CommandLog queues incoming commands, applies them through a Mediator in
// deterministic order, and optionally records every applied command for
// later replay (spec.md §4.10). Live application (ApplyTick) and Replay
// both send each command through the mediator, so they are the same code
// path.
type CommandLog struct {
	mediator common.Mediator

	mu      sync.Mutex
	pending []LoggedCommand
	replay  bool
	entries []LoggedCommand
}

// New builds a CommandLog dispatching through mediator, which must already
// have every command type registered (see Handlers.Register).
func New(mediator common.Mediator) *CommandLog {
	return &CommandLog{mediator: mediator}
}

// EnableReplay turns on recording of applied commands into the in-memory
// replay log (spec.md §4.10: "if enabled at Init"). Disabling clears
// nothing already recorded.
func (l *CommandLog) EnableReplay(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replay = enabled
}

// Push enqueues cmd to be applied no earlier than the given tick. Network
// input delivery and local UI actions both call this; ApplyTick later
// drains and orders everything queued for a tick.
func (l *CommandLog) Push(tick simtime.Tick, originID uint64, cmd common.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, LoggedCommand{Tick: tick, OriginID: originID, Command: cmd})
}

// drainLocked removes and returns every pending entry with Tick <= upto,
// sorted by (Tick, OriginID) ascending (spec.md §4.10, §5 rule 3).
func (l *CommandLog) drainLocked(upto simtime.Tick) []LoggedCommand {
	var due, kept []LoggedCommand
	for _, e := range l.pending {
		if e.Tick <= upto {
			due = append(due, e)
		} else {
			kept = append(kept, e)
		}
	}
	l.pending = kept
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Tick != due[j].Tick {
			return due[i].Tick < due[j].Tick
		}
		return due[i].OriginID < due[j].OriginID
	})
	return due
}

// ApplyTick drains every command due by tick, applies each in order through
// the mediator, and records them to the replay log if recording is on. It
// returns one error per failed command, in application order; a failure
// does not stop later commands from applying (spec.md §4.10 commands are
// independent, idempotent intents).
func (l *CommandLog) ApplyTick(ctx context.Context, tick simtime.Tick) []error {
	l.mu.Lock()
	due := l.drainLocked(tick)
	recording := l.replay
	l.mu.Unlock()

	var errs []error
	for _, entry := range due {
		if _, err := l.mediator.Send(ctx, entry.Command); err != nil {
			errs = append(errs, err)
			continue
		}
		if recording {
			l.mu.Lock()
			l.entries = append(l.entries, entry)
			l.mu.Unlock()
		}
	}
	return errs
}

// HasInstantOnly reports whether every command queued for tick is instant
// (spec.md §4.10: "instant commands... skip the full scheduler"), letting a
// caller decide whether advancing past tick needs a scheduler pass.
func (l *CommandLog) HasInstantOnly(tick simtime.Tick) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	found := false
	for _, e := range l.pending {
		if e.Tick != tick {
			continue
		}
		found = true
		if !IsInstant(e.Command) {
			return false
		}
	}
	return found
}

// Entries returns the recorded replay log in application order.
func (l *CommandLog) Entries() []LoggedCommand {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LoggedCommand, len(l.entries))
	copy(out, l.entries)
	return out
}

// Replay re-applies every recorded entry through the mediator in its
// original order, calling onTick before the first entry of each new tick
// (including the very first entry) so the caller can advance its own scheduler/clock to
// match (spec.md §4.10: "re-applied in order, advancing ticks to match").
// Replay does not re-record into the log it is reading from.
func Replay(ctx context.Context, mediator common.Mediator, entries []LoggedCommand, onTick func(simtime.Tick)) []error {
	var errs []error
	var lastTick simtime.Tick
	first := true
	for _, entry := range entries {
		if first || entry.Tick != lastTick {
			if onTick != nil {
				onTick(entry.Tick)
			}
			lastTick = entry.Tick
			first = false
		}
		if _, err := mediator.Send(ctx, entry.Command); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
