package store

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
)

const selectColumns = `id, timestamp, cwd, command, exit_code, duration_secs, self_invocation`

// Insert appends one event. A missing ID or timestamp is filled in; negative
// durations are clamped to zero. The self-invocation tag is always recomputed.
func (s *Store) Insert(ctx context.Context, event *CommandEvent) error {
	s.prepare(event)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO command_logs (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, insertArgs(event)...)
	if err != nil {
		return &WriteError{Op: fmt.Sprintf("insert event %s", event.ID), Err: classify(err)}
	}
	return nil
}

// InsertBatch appends events in a single transaction. Either all rows are
// written or none are.
func (s *Store) InsertBatch(ctx context.Context, events []*CommandEvent) error {
	_, err := s.insertBatch(ctx, events, "INSERT")
	return err
}

// ReplayBatch is InsertBatch for events that may already be stored: rows
// whose ID exists are skipped instead of failing the batch. It returns the
// number of rows actually written.
func (s *Store) ReplayBatch(ctx context.Context, events []*CommandEvent) (int64, error) {
	return s.insertBatch(ctx, events, "INSERT OR IGNORE")
}

func (s *Store) insertBatch(ctx context.Context, events []*CommandEvent, verb string) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &WriteError{Op: "begin transaction", Err: classify(err)}
	}

	stmt, err := tx.PrepareContext(ctx, verb+` INTO command_logs (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, &WriteError{Op: "prepare batch insert", Err: classify(err)}
	}
	defer stmt.Close()

	var written int64
	for _, e := range events {
		s.prepare(e)
		result, err := stmt.ExecContext(ctx, insertArgs(e)...)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, &WriteError{Op: fmt.Sprintf("insert event %s", e.ID), Err: err}
		}
		if n, err := result.RowsAffected(); err == nil {
			written += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &WriteError{Op: "commit batch", Err: err}
	}
	return written, nil
}

func (s *Store) prepare(event *CommandEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.DurationSeconds < 0 {
		event.DurationSeconds = 0
	}
	event.SelfInvocation = IsSelfInvocation(s.selfName, event.CommandText)
}

func insertArgs(e *CommandEvent) []any {
	return []any{
		e.ID,
		FormatTimestamp(e.Timestamp),
		e.WorkingDirectory,
		e.CommandText,
		e.ExitCode,
		e.DurationSeconds,
		e.SelfInvocation,
	}
}

// Scan returns a lazy, one-shot sequence of events matching opts. The query
// runs when iteration starts. A row with an unparsable timestamp is yielded
// as a CorruptRowError and iteration continues; any other error is yielded
// as a ReadError and ends the sequence.
func (s *Store) Scan(ctx context.Context, opts ScanOptions) iter.Seq2[*CommandEvent, error] {
	return func(yield func(*CommandEvent, error) bool) {
		where, args := opts.where()
		query := `SELECT ` + selectColumns + ` FROM command_logs` + where +
			` ORDER BY timestamp ` + opts.Order.sql() + `, rowid ` + opts.Order.sql()

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, &ReadError{Op: "scan events", Err: classify(err)})
			return
		}
		defer rows.Close()

		for rows.Next() {
			var event CommandEvent
			var timestamp string
			if err := rows.Scan(
				&event.ID,
				&timestamp,
				&event.WorkingDirectory,
				&event.CommandText,
				&event.ExitCode,
				&event.DurationSeconds,
				&event.SelfInvocation,
			); err != nil {
				yield(nil, &ReadError{Op: "scan event row", Err: err})
				return
			}

			event.Timestamp, err = ParseTimestamp(timestamp)
			if err != nil {
				if !yield(nil, &CorruptRowError{ID: event.ID, Timestamp: timestamp, Err: err}) {
					return
				}
				continue
			}

			if !yield(&event, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, &ReadError{Op: "iterate events", Err: err})
		}
	}
}

func (o ScanOptions) where() (string, []any) {
	var clauses []string
	var args []any

	if !o.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, FormatTimestamp(o.Since))
	}
	if o.DirContains != "" {
		clauses = append(clauses, "instr(cwd, ?) > 0")
		args = append(args, o.DirContains)
	}
	if o.CommandContains != "" {
		clauses = append(clauses, "instr(command, ?) > 0")
		args = append(args, o.CommandContains)
	}
	if o.ExcludeSelf {
		clauses = append(clauses, "self_invocation = 0")
	}

	return joinWhere(clauses), args
}

func (f Filter) where() (string, []any) {
	return ScanOptions{DirContains: f.DirContains, ExcludeSelf: f.ExcludeSelf}.where()
}

func joinWhere(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

// Aggregate computes count, sum, min, max and average of duration_secs over
// the filtered rows inside SQLite.
func (s *Store) Aggregate(ctx context.Context, f Filter) (Aggregate, error) {
	where, args := f.where()
	query := `
		SELECT COUNT(*), SUM(duration_secs), MIN(duration_secs), MAX(duration_secs), AVG(duration_secs)
		FROM command_logs` + where

	var agg Aggregate
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&agg.Count,
		&agg.Sum,
		&agg.Min,
		&agg.Max,
		&agg.Avg,
	)
	if err != nil {
		return Aggregate{}, &ReadError{Op: "aggregate durations", Err: classify(err)}
	}
	return agg, nil
}

// GroupByCommand counts events per exact command text, highest first. Ties
// are ordered by first appearance, then by text. A limit <= 0 returns every
// group.
func (s *Store) GroupByCommand(ctx context.Context, limit int, excludeSelf bool) ([]CommandCount, error) {
	where, args := ScanOptions{ExcludeSelf: excludeSelf}.where()
	query := `
		SELECT command, COUNT(*) AS cnt
		FROM command_logs` + where + `
		GROUP BY command
		ORDER BY cnt DESC, MIN(timestamp) ASC, command ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ReadError{Op: "group by command", Err: classify(err)}
	}
	defer rows.Close()

	var counts []CommandCount
	for rows.Next() {
		var c CommandCount
		if err := rows.Scan(&c.Command, &c.Count); err != nil {
			return nil, &ReadError{Op: "scan command count", Err: err}
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &ReadError{Op: "iterate command counts", Err: err}
	}
	return counts, nil
}

// GroupByDirectory returns per-directory event counts and summed durations,
// ordered by count descending.
func (s *Store) GroupByDirectory(ctx context.Context, excludeSelf bool) ([]DirectoryStats, error) {
	where, args := ScanOptions{ExcludeSelf: excludeSelf}.where()
	query := `
		SELECT cwd, COUNT(*) AS cnt, COALESCE(SUM(duration_secs), 0)
		FROM command_logs` + where + `
		GROUP BY cwd
		ORDER BY cnt DESC, MIN(timestamp) ASC, cwd ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ReadError{Op: "group by directory", Err: classify(err)}
	}
	defer rows.Close()

	var dirs []DirectoryStats
	for rows.Next() {
		var d DirectoryStats
		if err := rows.Scan(&d.Directory, &d.Count, &d.TotalDuration); err != nil {
			return nil, &ReadError{Op: "scan directory stats", Err: err}
		}
		dirs = append(dirs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, &ReadError{Op: "iterate directory stats", Err: err}
	}
	return dirs, nil
}

// PurgeAll deletes every event and returns how many rows were removed.
func (s *Store) PurgeAll(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM command_logs`)
	if err != nil {
		return 0, &WriteError{Op: "purge events", Err: classify(err)}
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, &WriteError{Op: "count purged rows", Err: err}
	}
	return n, nil
}

// Count returns the total number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM command_logs`).Scan(&n); err != nil {
		return 0, &ReadError{Op: "count events", Err: classify(err)}
	}
	return n, nil
}

// classify maps SQLite's missing-table error onto ErrNotInitialized.
func classify(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	return err
}
