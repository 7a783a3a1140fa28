package capture

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/blackwell-systems/ctx/internal/store"
)

type memState struct {
	state   State
	loadErr error
	saveErr error
	saves   int
}

func (m *memState) Load(context.Context) (State, error) {
	if m.loadErr != nil {
		return State{}, m.loadErr
	}
	return m.state, nil
}

func (m *memState) Save(_ context.Context, s State) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = s
	return nil
}

type memSink struct {
	events []*store.CommandEvent
	err    error
}

func (m *memSink) Insert(_ context.Context, e *store.CommandEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

type fakeRunner struct {
	result RunResult
	err    error
	calls  [][]string
}

func (f *fakeRunner) Run(_ context.Context, argv []string, _ string) (RunResult, error) {
	f.calls = append(f.calls, argv)
	return f.result, f.err
}

type fixture struct {
	gate   *Gate
	state  *memState
	sink   *memSink
	runner *fakeRunner
	now    time.Time
	tty    bool
}

func newFixture() *fixture {
	f := &fixture{
		state:  &memState{},
		sink:   &memSink{},
		runner: &fakeRunner{result: RunResult{ExitCode: 0, Duration: 1500 * time.Millisecond}},
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		tty:    true,
	}
	f.gate = NewGate(f.sink, f.state, f.runner)
	f.gate.IsTerminal = func() bool { return f.tty }
	f.gate.Now = func() time.Time { return f.now }
	f.gate.Getwd = func() (string, error) { return "/work/repo", nil }
	f.gate.NewID = func() string { return "id-1" }
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestGate_AcceptsAndRecords(t *testing.T) {
	f := newFixture()
	f.runner.result = RunResult{ExitCode: 2, Duration: 1500 * time.Millisecond}

	res, err := f.gate.Run(context.Background(), []string{"make", "test"})
	require.NoError(t, err)

	assert.Equal(t, Accepted, res.Decision)
	assert.Equal(t, int32(2), res.ExitCode)
	assert.True(t, res.Stored)
	require.Len(t, f.sink.events, 1)

	e := f.sink.events[0]
	assert.Equal(t, "id-1", e.ID)
	assert.Equal(t, "make test", e.CommandText)
	assert.Equal(t, "/work/repo", e.WorkingDirectory)
	assert.Equal(t, int32(2), e.ExitCode)
	assert.InDelta(t, 1.5, e.DurationSeconds, 1e-9)
	assert.Equal(t, f.now, e.Timestamp)

	assert.Equal(t, "make test", f.state.state.LastCommand)
	assert.Equal(t, f.now, f.state.state.LastAttempt)
}

func TestGate_NotTTY(t *testing.T) {
	f := newFixture()
	f.tty = false

	res, err := f.gate.Run(context.Background(), []string{"make"})
	require.NoError(t, err)

	assert.Equal(t, RejectedNotTTY, res.Decision)
	assert.Empty(t, f.sink.events)
	assert.Zero(t, f.state.saves)
	assert.Len(t, f.runner.calls, 1, "rejected commands still run")
}

func TestGate_DenylistNeverTouchesState(t *testing.T) {
	for _, name := range []string{"ls", "clear", "pwd", "history", "exit"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			f.state.state = State{LastCommand: "old", LastAttempt: f.now.Add(-time.Hour)}

			res, err := f.gate.Run(context.Background(), []string{name, "-la"})
			require.NoError(t, err)

			assert.Equal(t, RejectedDenylisted, res.Decision)
			assert.Empty(t, f.sink.events)
			assert.Zero(t, f.state.saves)
			assert.Equal(t, "old", f.state.state.LastCommand)
		})
	}
}

func TestGate_DenylistIsExactMatch(t *testing.T) {
	f := newFixture()

	res, err := f.gate.Run(context.Background(), []string{"lsof", "-i"})
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Decision)
}

func TestGate_DuplicateRejectedRegardlessOfTime(t *testing.T) {
	f := newFixture()

	_, err := f.gate.Run(context.Background(), []string{"git", "status"})
	require.NoError(t, err)

	f.advance(10 * time.Hour)
	res, err := f.gate.Run(context.Background(), []string{"git", "status"})
	require.NoError(t, err)

	assert.Equal(t, RejectedDuplicate, res.Decision)
	assert.Len(t, f.sink.events, 1)
	assert.Equal(t, 1, f.state.saves)
}

func TestGate_DebounceBoundary(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    Decision
	}{
		{"just under window", 499 * time.Millisecond, RejectedDebounce},
		{"exactly at window", 500 * time.Millisecond, Accepted},
		{"well past window", 3 * time.Second, Accepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.gate.Run(context.Background(), []string{"echo", "a"})
			require.NoError(t, err)

			f.advance(tt.elapsed)
			res, err := f.gate.Run(context.Background(), []string{"echo", "b"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Decision)
		})
	}
}

func TestGate_DebounceRejectionKeepsState(t *testing.T) {
	f := newFixture()
	_, err := f.gate.Run(context.Background(), []string{"echo", "a"})
	require.NoError(t, err)
	first := f.state.state

	f.advance(100 * time.Millisecond)
	_, err = f.gate.Run(context.Background(), []string{"echo", "b"})
	require.NoError(t, err)

	assert.Equal(t, first, f.state.state)
}

func TestGate_StateSavedBeforeCommandRuns(t *testing.T) {
	f := newFixture()
	var savedBeforeRun bool
	f.gate.Runner = runnerFunc(func(context.Context, []string, string) (RunResult, error) {
		savedBeforeRun = f.state.state.LastCommand == "sleep 60"
		return RunResult{}, nil
	})

	_, err := f.gate.Run(context.Background(), []string{"sleep", "60"})
	require.NoError(t, err)
	assert.True(t, savedBeforeRun)
}

func TestGate_StateErrorsDegradeToEmpty(t *testing.T) {
	f := newFixture()
	f.state.loadErr = &StateIOError{Op: "read", Path: "/x", Err: errors.New("permission denied")}
	f.state.saveErr = &StateIOError{Op: "write", Path: "/x", Err: errors.New("read-only fs")}

	res, err := f.gate.Run(context.Background(), []string{"cargo", "build"})
	require.NoError(t, err)

	assert.Equal(t, Accepted, res.Decision)
	assert.Len(t, f.sink.events, 1)
}

func TestGate_ClockSteppedBack(t *testing.T) {
	f := newFixture()
	f.state.state = State{LastCommand: "other", LastAttempt: f.now.Add(time.Minute)}

	res, err := f.gate.Run(context.Background(), []string{"make"})
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.Decision)
}

func TestGate_ExecFailure(t *testing.T) {
	f := newFixture()
	f.runner.result = RunResult{ExitCode: UnknownExitCode}
	f.runner.err = &ExecError{Command: "nosuchcmd", NotFound: true, Err: errors.New("not found")}

	res, err := f.gate.Run(context.Background(), []string{"nosuchcmd"})
	require.Error(t, err)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 127, execErr.ExitStatus())
	assert.Empty(t, f.sink.events)
	assert.Equal(t, int32(UnknownExitCode), res.ExitCode)
}

func TestGate_InsertFailureUsesFallback(t *testing.T) {
	f := newFixture()
	f.sink.err = &store.WriteError{Op: "insert", Err: errors.New("database is locked")}
	fallback := &memSink{}
	f.gate.Fallback = fallback

	res, err := f.gate.Run(context.Background(), []string{"npm", "install"})
	require.NoError(t, err)

	assert.True(t, res.Stored)
	require.Len(t, fallback.events, 1)
	assert.Equal(t, "npm install", fallback.events[0].CommandText)
}

func TestGate_InsertFailureWithoutFallback(t *testing.T) {
	f := newFixture()
	f.sink.err = errors.New("disk full")

	res, err := f.gate.Run(context.Background(), []string{"npm", "install"})
	require.NoError(t, err, "store failures never fail the wrapped command")
	assert.False(t, res.Stored)
	assert.NotNil(t, res.Event)
}

func TestGate_EmptyArgv(t *testing.T) {
	f := newFixture()
	_, err := f.gate.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, f.runner.calls)
}

func TestGate_DecideEmptyInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.Equal(t, RejectedDenylisted, f.gate.Decide(ctx, nil))
	assert.Equal(t, RejectedDenylisted, f.gate.Decide(ctx, []string{}))
	assert.Equal(t, RejectedDenylisted, f.gate.DecideLine(ctx, "   "))
	assert.Zero(t, f.state.saves)
}

func TestGate_DecideLine(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	assert.Equal(t, RejectedDenylisted, f.gate.DecideLine(ctx, "ls -la"))
	assert.Equal(t, RejectedDenylisted, f.gate.DecideLine(ctx, "  exit"))
	assert.Equal(t, Accepted, f.gate.DecideLine(ctx, "git  status"))
	assert.Equal(t, "git  status", f.state.state.LastCommand, "line stored as typed")

	f.advance(time.Second)
	assert.Equal(t, RejectedDuplicate, f.gate.DecideLine(ctx, "git  status"))

	f.advance(100 * time.Millisecond)
	assert.Equal(t, Accepted, f.gate.DecideLine(ctx, "git status"), "different spacing is a different line")

	f.advance(100 * time.Millisecond)
	assert.Equal(t, RejectedDebounce, f.gate.DecideLine(ctx, "make"))

	f.tty = false
	f.advance(time.Hour)
	assert.Equal(t, RejectedNotTTY, f.gate.DecideLine(ctx, "make"))
}

// Two distinct commands: the second is accepted exactly when the gap is at
// least the debounce window.
func TestGate_DebounceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture()
		gapMs := rapid.Int64Range(0, 2000).Draw(rt, "gapMs")
		a := rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, "a")
		b := rapid.StringMatching(`[a-z]{1,6}`).Draw(rt, "b")
		if a == b || f.gate.denied(a) || f.gate.denied(b) {
			rt.Skip("need two distinct, allowed commands")
		}

		if d := f.gate.Decide(context.Background(), []string{a}); d != Accepted {
			rt.Fatalf("first command %q: got %v", a, d)
		}
		f.advance(time.Duration(gapMs) * time.Millisecond)
		got := f.gate.Decide(context.Background(), []string{b})

		want := Accepted
		if gapMs < 500 {
			want = RejectedDebounce
		}
		if got != want {
			rt.Fatalf("gap %dms: got %v, want %v", gapMs, got, want)
		}
	})
}

func TestDecision_String(t *testing.T) {
	for d, want := range map[Decision]string{
		Accepted:           "accepted",
		RejectedNotTTY:     "not_tty",
		RejectedDenylisted: "denylisted",
		RejectedDuplicate:  "duplicate",
		RejectedDebounce:   "debounce",
		Decision(99):       "unknown",
	} {
		assert.Equal(t, want, d.String(), fmt.Sprintf("Decision(%d)", int(d)))
	}
}

type runnerFunc func(ctx context.Context, argv []string, dir string) (RunResult, error)

func (f runnerFunc) Run(ctx context.Context, argv []string, dir string) (RunResult, error) {
	return f(ctx, argv, dir)
}
