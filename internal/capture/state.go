package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// State is the debounce record shared by every ctx-wrap process. It holds
// only the most recent captured attempt.
type State struct {
	LastCommand string
	LastAttempt time.Time
}

// StateStore loads and saves the debounce State.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// StateIOError reports that the debounce file could not be read or written.
// The gate treats it as empty state and never fails because of it.
type StateIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StateIOError) Error() string {
	return fmt.Sprintf("debounce state %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StateIOError) Unwrap() error { return e.Err }

// FileStateStore keeps State in a two-line text file: the command text, then
// the attempt time as Unix epoch seconds. Concurrent shells read and write
// it without locking; a lost update only lets a duplicate through.
type FileStateStore struct {
	path string
}

// NewFileStateStore returns a store backed by the file at path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Load reads the state file. A missing file yields the zero State and no error.
func (s *FileStateStore) Load(_ context.Context) (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, nil
		}
		return State{}, &StateIOError{Op: "read", Path: s.path, Err: err}
	}

	state, err := parseState(string(data))
	if err != nil {
		return State{}, &StateIOError{Op: "parse", Path: s.path, Err: err}
	}
	return state, nil
}

// Save overwrites the state file.
func (s *FileStateStore) Save(_ context.Context, state State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return &StateIOError{Op: "mkdir", Path: s.path, Err: err}
	}
	if err := os.WriteFile(s.path, []byte(formatState(state)), 0o600); err != nil {
		return &StateIOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

func formatState(state State) string {
	secs := float64(state.LastAttempt.UnixNano()) / float64(time.Second)
	return state.LastCommand + "\n" + strconv.FormatFloat(secs, 'f', 3, 64) + "\n"
}

// parseState accepts integer or fractional epoch seconds on the last line.
// Everything before it is the command text, which may itself span lines.
func parseState(content string) (State, error) {
	content = strings.TrimRight(content, "\n")
	idx := strings.LastIndexByte(content, '\n')
	if idx < 0 {
		return State{}, fmt.Errorf("expected two lines, got %q", content)
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(content[idx+1:]), 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return State{}, fmt.Errorf("invalid epoch %q", content[idx+1:])
	}

	whole, frac := math.Modf(secs)
	return State{
		LastCommand: content[:idx],
		LastAttempt: time.Unix(int64(whole), int64(frac*float64(time.Second))),
	}, nil
}
