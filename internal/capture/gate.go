// Package capture decides whether a shell invocation is worth recording and,
// if it is, runs the command and records its outcome.
//
// The decision sequence, in order, each step short-circuiting the rest:
//  1. stdout is not a terminal: reject, no state update
//  2. the command name is on the denylist: reject, no state update
//  3. the full text equals the last captured text: reject
//  4. less than the debounce window since the last capture: reject
//  5. save the new debounce state (before running the command)
//  6. run the command, measuring wall-clock time and exit status
//  7. insert the event
//
// A rejected invocation is still executed; only the recording is skipped.
package capture

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/blackwell-systems/ctx/internal/config"
	"github.com/blackwell-systems/ctx/internal/store"
)

// Decision is the outcome of the gate checks.
type Decision int

const (
	Accepted Decision = iota
	RejectedNotTTY
	RejectedDenylisted
	RejectedDuplicate
	RejectedDebounce
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case RejectedNotTTY:
		return "not_tty"
	case RejectedDenylisted:
		return "denylisted"
	case RejectedDuplicate:
		return "duplicate"
	case RejectedDebounce:
		return "debounce"
	default:
		return "unknown"
	}
}

// EventSink receives accepted events.
type EventSink interface {
	Insert(ctx context.Context, event *store.CommandEvent) error
}

// Result reports what the gate did with one invocation.
type Result struct {
	Decision Decision
	ExitCode int32
	Event    *store.CommandEvent // nil unless accepted and the command ran
	Stored   bool                // the event reached Store or Fallback
}

// Gate applies the capture rules. Zero-valued hooks fall back to the real
// terminal, clock, working directory and UUID generator.
type Gate struct {
	Store          EventSink
	Fallback       EventSink // receives events Store rejected; optional
	State          StateStore
	Runner         Runner
	Denylist       []string
	DebounceWindow time.Duration

	IsTerminal func() bool
	Now        func() time.Time
	Getwd      func() (string, error)
	NewID      func() string
	Logger     zerolog.Logger
}

// NewGate returns a Gate with the default denylist and debounce window.
func NewGate(sink EventSink, state StateStore, runner Runner) *Gate {
	return &Gate{
		Store:          sink,
		State:          state,
		Runner:         runner,
		Denylist:       append([]string(nil), config.DefaultDenylist...),
		DebounceWindow: config.DefaultDebounceWindow,
		Logger:         zerolog.Nop(),
	}
}

// Decide runs checks 1–5 for argv. It writes the debounce state only when
// the invocation is accepted. An empty argv has no name to record and is
// rejected as denylisted.
func (g *Gate) Decide(ctx context.Context, argv []string) Decision {
	if len(argv) == 0 {
		return RejectedDenylisted
	}
	return g.decide(ctx, argv[0], strings.Join(argv, " "))
}

// DecideLine is Decide for a command line as the shell hook sees it. The
// first whitespace-separated field is the command name and the whole line,
// unmodified, is compared against the previous command.
func (g *Gate) DecideLine(ctx context.Context, line string) Decision {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return RejectedDenylisted
	}
	return g.decide(ctx, fields[0], line)
}

func (g *Gate) decide(ctx context.Context, name, text string) Decision {
	if !g.isTerminal() {
		return RejectedNotTTY
	}
	if g.denied(name) {
		return RejectedDenylisted
	}

	now := g.now()

	state, err := g.State.Load(ctx)
	if err != nil {
		g.Logger.Warn().Err(err).Msg("debounce state unreadable, treating as empty")
		state = State{}
	}

	if state.LastCommand != "" && text == state.LastCommand {
		return RejectedDuplicate
	}

	// A last attempt in the future (clock stepped back) is treated as stale.
	if !state.LastAttempt.IsZero() {
		elapsed := now.Sub(state.LastAttempt)
		if elapsed >= 0 && elapsed < g.DebounceWindow {
			return RejectedDebounce
		}
	}

	if err := g.State.Save(ctx, State{LastCommand: text, LastAttempt: now}); err != nil {
		g.Logger.Warn().Err(err).Msg("debounce state not saved")
	}
	return Accepted
}

// Run executes argv and records it when Decide accepts it. The returned
// error is non-nil only when the command could not be started.
func (g *Gate) Run(ctx context.Context, argv []string) (Result, error) {
	if len(argv) == 0 {
		return Result{ExitCode: UnknownExitCode}, &ExecError{Err: errEmptyCommand}
	}

	decision := g.Decide(ctx, argv)
	log := g.Logger.With().Str("command", argv[0]).Str("decision", decision.String()).Logger()

	cwd, err := g.getwd()
	if err != nil {
		log.Warn().Err(err).Msg("working directory unavailable")
	}

	run, err := g.Runner.Run(ctx, argv, cwd)
	result := Result{Decision: decision, ExitCode: run.ExitCode}
	if err != nil {
		log.Error().Err(err).Msg("wrapped command failed to start")
		return result, err
	}
	if decision != Accepted {
		log.Debug().Msg("invocation not recorded")
		return result, nil
	}

	event := &store.CommandEvent{
		ID:               g.newID(),
		Timestamp:        g.now(),
		WorkingDirectory: cwd,
		CommandText:      strings.Join(argv, " "),
		ExitCode:         run.ExitCode,
		DurationSeconds:  run.Duration.Seconds(),
	}
	result.Event = event
	result.Stored = g.emit(ctx, log, event)
	return result, nil
}

func (g *Gate) emit(ctx context.Context, log zerolog.Logger, event *store.CommandEvent) bool {
	err := g.Store.Insert(ctx, event)
	if err == nil {
		log.Debug().Str("id", event.ID).Msg("event recorded")
		return true
	}
	log.Warn().Err(err).Str("id", event.ID).Msg("event insert failed")

	if g.Fallback == nil {
		return false
	}
	if err := g.Fallback.Insert(ctx, event); err != nil {
		log.Error().Err(err).Str("id", event.ID).Msg("event dropped")
		return false
	}
	return true
}

func (g *Gate) denied(name string) bool {
	for _, d := range g.Denylist {
		if name == d {
			return true
		}
	}
	return false
}

func (g *Gate) isTerminal() bool {
	if g.IsTerminal != nil {
		return g.IsTerminal()
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gate) getwd() (string, error) {
	if g.Getwd != nil {
		return g.Getwd()
	}
	return os.Getwd()
}

func (g *Gate) newID() string {
	if g.NewID != nil {
		return g.NewID()
	}
	return uuid.New().String()
}
