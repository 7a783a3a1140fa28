// Package logging configures the zerolog logger shared by ctx commands.
//
// ctx runs inside the user's prompt, so diagnostics go to a log file in the
// data directory rather than to the terminal. With debug enabled they are
// mirrored to stderr as well.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup opens (or creates) the log file at path and returns a logger writing
// to it. The returned closer releases the file. If the file cannot be opened
// the logger falls back to stderr at warn level so failures are not silent.
func Setup(path, level string, debug bool) (zerolog.Logger, io.Closer) {
	lvl := ParseLevel(level)
	if debug {
		lvl = zerolog.DebugLevel
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err == nil {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600); err == nil {
			writers = append(writers, f)
			closer = f
		}
	}

	if debug {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true, TimeFormat: time.Kitchen})
	}

	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
		if lvl < zerolog.WarnLevel {
			lvl = zerolog.WarnLevel
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()
	return logger, closer
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
