package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

var errEmptyCommand = errors.New("empty command")

// UnknownExitCode is recorded when the wrapped process's exit status cannot
// be determined (for example, it was killed by a signal).
const UnknownExitCode = -1

// RunResult describes a finished wrapped command. A non-zero ExitCode is
// data, not an error.
type RunResult struct {
	ExitCode int32
	Duration time.Duration
}

// Runner executes the user's command.
type Runner interface {
	Run(ctx context.Context, argv []string, dir string) (RunResult, error)
}

// ExecError reports that the wrapped command could not be started at all.
type ExecError struct {
	Command  string
	NotFound bool
	Err      error
}

func (e *ExecError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("%s: command not found", e.Command)
	}
	return fmt.Sprintf("%s: failed to start: %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// ExitStatus is the conventional shell status for a start failure.
func (e *ExecError) ExitStatus() int {
	if e.NotFound {
		return 127
	}
	return 126
}

// ExecRunner runs commands with the terminal's stdio attached.
type ExecRunner struct{}

// Run executes argv in dir and waits for it to finish.
func (ExecRunner) Run(ctx context.Context, argv []string, dir string) (RunResult, error) {
	if len(argv) == 0 {
		return RunResult{ExitCode: UnknownExitCode}, &ExecError{Err: errEmptyCommand}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	startedAt := time.Now()
	err := cmd.Run()
	result := RunResult{Duration: time.Since(startedAt), ExitCode: UnknownExitCode}

	if cmd.ProcessState != nil {
		result.ExitCode = int32(cmd.ProcessState.ExitCode())
	}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, nil
	}

	return result, &ExecError{
		Command:  argv[0],
		NotFound: isNotFound(err),
		Err:      err,
	}
}

func isNotFound(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return true
	}

	// On some platforms the underlying error may be a PathError.
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && (errors.Is(pathErr.Err, exec.ErrNotFound) || errors.Is(pathErr.Err, os.ErrNotExist)) {
		return true
	}
	return false
}
