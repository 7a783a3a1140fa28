// Package spool holds command events that could not be written to the store
// (usually because another shell held the database lock) and replays them
// later.
//
// Spool format (one JSON object per line):
//
//	{"id":"…","timestamp":"2025-06-01T12:00:00.000000000Z","cwd":"/src","command":"make","exit_code":0,"duration_secs":1.5}
//
// Replay progress is kept as a byte offset in a sibling ".offset" file,
// advanced only after the batch insert commits. Appends and truncation hold
// an exclusive flock on the spool file, so a line written while a drain is
// finishing is never truncated away.
package spool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/blackwell-systems/ctx/internal/store"
)

const maxLinesPerDrain = 10_000

// Replayer writes many events in one transaction, skipping any whose ID is
// already stored. A drain interrupted between commit and offset update is
// therefore safe to repeat.
type Replayer interface {
	ReplayBatch(ctx context.Context, events []*store.CommandEvent) (int64, error)
}

type record struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	CWD       string  `json:"cwd"`
	Command   string  `json:"command"`
	ExitCode  int32   `json:"exit_code"`
	Duration  float64 `json:"duration_secs"`
}

// Spool is an append-only JSONL file of pending events.
type Spool struct {
	path       string
	offsetPath string
	logger     zerolog.Logger

	// beforeAdvance runs after a replay commits and before the offset moves.
	beforeAdvance func()
}

// New returns a spool at path. The file is created on first Append.
func New(path string, logger zerolog.Logger) *Spool {
	return &Spool{
		path:       path,
		offsetPath: path + ".offset",
		logger:     logger,
	}
}

// Insert appends event to the spool. It satisfies capture.EventSink.
func (s *Spool) Insert(_ context.Context, event *store.CommandEvent) error {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	line, err := json.Marshal(record{
		ID:        event.ID,
		Timestamp: store.FormatTimestamp(ts),
		CWD:       event.WorkingDirectory,
		Command:   event.CommandText,
		ExitCode:  event.ExitCode,
		Duration:  event.DurationSeconds,
	})
	if err != nil {
		return fmt.Errorf("spool: marshal event: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("spool: create directory: %w", err)
	}

	// O_APPEND with a single write keeps concurrent appenders from interleaving.
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("spool: open: %w", err)
	}
	defer f.Close()

	if err := lock(f); err != nil {
		return fmt.Errorf("spool: lock: %w", err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("spool: append: %w", err)
	}
	return nil
}

// Drain replays pending events into st and returns how many were written.
// A missing spool is not an error. Malformed lines are logged and skipped.
func (s *Spool) Drain(ctx context.Context, st Replayer) (int, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	offset, err := readOffset(s.offsetPath)
	if err != nil {
		return 0, fmt.Errorf("spool: read offset: %w", err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return 0, fmt.Errorf("spool: open: %w", err)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			s.logger.Warn().Err(err).Int64("offset", offset).Msg("spool seek failed, replaying from start")
			offset = 0
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return 0, fmt.Errorf("spool: seek reset: %w", err)
			}
		}
	}

	// Read whole lines only; a partially written trailing line stays for the
	// next drain.
	var events []*store.CommandEvent
	consumed := offset
	reader := bufio.NewReader(f)
	for len(events) < maxLinesPerDrain {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, fmt.Errorf("spool: read: %w", err)
		}
		consumed += int64(len(line))

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		event, ok := parseLine(text)
		if !ok {
			s.logger.Warn().Str("line", text).Msg("spool: skipping malformed line")
			continue
		}
		events = append(events, event)
	}

	if consumed == offset {
		return 0, nil
	}

	written, err := st.ReplayBatch(ctx, events)
	if err != nil {
		return 0, fmt.Errorf("spool: replay: %w", err)
	}

	if s.beforeAdvance != nil {
		s.beforeAdvance()
	}

	// Only advance the offset after a successful commit.
	if err := s.advance(consumed); err != nil {
		return int(written), err
	}
	s.logger.Debug().Int64("written", written).Int("read", len(events)).Msg("spool drained")
	return int(written), nil
}

// Pending returns the number of spooled bytes not yet replayed.
func (s *Spool) Pending() (int64, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("spool: stat: %w", err)
	}
	offset, err := readOffset(s.offsetPath)
	if err != nil {
		return 0, fmt.Errorf("spool: read offset: %w", err)
	}
	if offset > info.Size() {
		return 0, nil
	}
	return info.Size() - offset, nil
}

// Discard drops every spooled event. The file is truncated under the lock
// rather than removed so a waiting appender never writes to an unlinked file.
func (s *Spool) Discard() error {
	f, err := os.OpenFile(s.path, os.O_WRONLY, 0)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("spool: open: %w", err)
	}
	if err == nil {
		defer f.Close()
		if err := lock(f); err != nil {
			return fmt.Errorf("spool: lock: %w", err)
		}
		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("spool: truncate: %w", err)
		}
	}
	if err := os.Remove(s.offsetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("spool: remove offset: %w", err)
	}
	return nil
}

// advance records the new offset, or truncates the spool once everything in
// it has been replayed. The size check and the truncate happen under the
// spool lock, so no append can land between them.
func (s *Spool) advance(consumed int64) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("spool: open: %w", err)
	}
	defer f.Close()

	if err := lock(f); err != nil {
		return fmt.Errorf("spool: lock: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("spool: stat: %w", err)
	}
	if info.Size() != consumed {
		return writeOffsetAtomic(s.offsetPath, consumed)
	}

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("spool: truncate: %w", err)
	}
	if err := os.Remove(s.offsetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("spool: remove offset: %w", err)
	}
	return nil
}

func parseLine(line string) (*store.CommandEvent, bool) {
	var r record
	if err := json.Unmarshal([]byte(line), &r); err != nil {
		return nil, false
	}
	if r.ID == "" || r.Command == "" {
		return nil, false
	}
	ts, err := store.ParseTimestamp(r.Timestamp)
	if err != nil {
		return nil, false
	}
	return &store.CommandEvent{
		ID:               r.ID,
		Timestamp:        ts,
		WorkingDirectory: r.CWD,
		CommandText:      r.Command,
		ExitCode:         r.ExitCode,
		DurationSeconds:  r.Duration,
	}, true
}

// readOffset reads the byte offset from the offset tracking file.
// Returns 0 if the file does not exist.
func readOffset(offsetPath string) (int64, error) {
	data, err := os.ReadFile(offsetPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return 0, nil
	}
	offset, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse offset %q: %w", v, err)
	}
	return offset, nil
}

// writeOffsetAtomic writes offset via a temp-file rename so a crash never
// leaves a half-written value.
func writeOffsetAtomic(offsetPath string, offset int64) error {
	tmpPath := offsetPath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(strconv.FormatInt(offset, 10)), 0o600); err != nil {
		return fmt.Errorf("spool: write temp offset: %w", err)
	}
	if err := os.Rename(tmpPath, offsetPath); err != nil {
		return fmt.Errorf("spool: rename offset: %w", err)
	}
	return nil
}
