// Package shell generates and installs the hook that reports each
// interactive command to `ctx log-cmd`.
package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Marker precedes the installed snippet and makes Install idempotent.
const Marker = "# ctx shell integration"

// Shell is a supported shell family.
type Shell string

const (
	Bash Shell = "bash"
	Zsh  Shell = "zsh"
	Fish Shell = "fish"
)

// Parse maps a shell name or path ("/usr/bin/zsh", "fish") to a Shell.
func Parse(name string) (Shell, error) {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.TrimPrefix(base, "-") // login shells show up as "-zsh"
	switch {
	case strings.Contains(base, "zsh"):
		return Zsh, nil
	case strings.Contains(base, "fish"):
		return Fish, nil
	case strings.Contains(base, "bash"):
		return Bash, nil
	}
	return "", fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish)", name)
}

// env abstracts the process environment for detection.
type env struct {
	getenv   func(string) string
	readFile func(string) ([]byte, error)
	ppid     int
}

// Detect guesses the user's interactive shell. Shell-specific version
// variables win, then the parent process name, then $SHELL. Bash is the
// fallback.
func Detect() Shell {
	return detect(env{getenv: os.Getenv, readFile: os.ReadFile, ppid: os.Getppid()})
}

func detect(e env) Shell {
	if e.getenv("ZSH_VERSION") != "" {
		return Zsh
	}
	if e.getenv("FISH_VERSION") != "" {
		return Fish
	}
	if e.ppid > 0 {
		if comm, err := e.readFile("/proc/" + strconv.Itoa(e.ppid) + "/comm"); err == nil {
			if sh, err := Parse(string(comm)); err == nil {
				return sh
			}
		}
	}
	if sh, err := Parse(e.getenv("SHELL")); err == nil {
		return sh
	}
	return Bash
}

// RCFile returns the startup file the hook is installed into.
func RCFile(sh Shell, home string) string {
	switch sh {
	case Zsh:
		return filepath.Join(home, ".zshrc")
	case Fish:
		return filepath.Join(home, ".config", "fish", "config.fish")
	default:
		return filepath.Join(home, ".bashrc")
	}
}

// timeCommand prints the current time in nanoseconds. BSD date has no %N,
// so macOS gets second resolution scaled to nanoseconds.
func timeCommand() string {
	if runtime.GOOS == "darwin" {
		return "date +%s000000000"
	}
	return "date +%s%N"
}

// Snippet returns the hook for sh, invoking the binary named self.
func Snippet(sh Shell, self string) (string, error) {
	tmpl, ok := templates[sh]
	if !ok {
		return "", fmt.Errorf("no hook template for shell %q", sh)
	}
	r := strings.NewReplacer("{{self}}", self, "{{time}}", timeCommand())
	return r.Replace(tmpl), nil
}

// Install appends snippet to rcPath under Marker. It reports false without
// writing when the marker is already present.
func Install(rcPath, snippet string) (added bool, err error) {
	existing, readErr := os.ReadFile(rcPath)
	if readErr == nil && strings.Contains(string(existing), Marker) {
		return false, nil
	}

	// Ensure the parent directory exists (needed for the fish config path).
	if err := os.MkdirAll(filepath.Dir(rcPath), 0755); err != nil {
		return false, fmt.Errorf("cannot create config directory %s: %w", filepath.Dir(rcPath), err)
	}

	f, err := os.OpenFile(rcPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return false, fmt.Errorf("cannot open config file %s: %w", rcPath, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "\n%s\n%s", Marker, snippet); err != nil {
		return false, fmt.Errorf("cannot write to config file %s: %w", rcPath, err)
	}
	return true, nil
}
