package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultSelfName is the invocation name of the ctx binary. Commands that are
// ctx's own invocations are tagged at insert time and left out of analytics.
const DefaultSelfName = "ctx"

// Store provides SQLite persistence for command events.
type Store struct {
	db       *sql.DB
	selfName string
}

// Option configures a Store.
type Option func(*Store)

// WithSelfName overrides the tool name used for self-invocation tagging.
func WithSelfName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.selfName = name
		}
	}
}

// New creates a new Store with the specified database path.
// Use ":memory:" for in-memory databases (useful for testing).
func New(dbPath string, opts ...Option) (*Store, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, &InitError{Op: "create data directory", Err: err}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &InitError{Op: "open database", Err: err}
	}

	// SQLite only allows one writer at a time. Other shells writing to the
	// same file wait on busy_timeout instead of failing immediately.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, &InitError{Op: "enable WAL mode", Err: err}
		}
	}

	s := &Store{db: db, selfName: DefaultSelfName}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s != nil && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SelfName returns the tool name used for self-invocation tagging.
func (s *Store) SelfName() string {
	return s.selfName
}

// Initialize creates the command_logs table and its indexes. It is safe to
// call on every startup. A table written by earlier ctx releases, which lacks
// the self_invocation column, is migrated in place.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, tableSchema); err != nil {
		return &InitError{Op: "create schema", Err: err}
	}
	if err := s.migrateLegacy(ctx); err != nil {
		return &InitError{Op: "migrate legacy table", Err: err}
	}
	if _, err := s.db.ExecContext(ctx, indexSchema); err != nil {
		return &InitError{Op: "create indexes", Err: err}
	}
	return nil
}

// migrateLegacy adds the self_invocation column, tags existing rows and
// rewrites their timestamps into TimestampLayout, all in one transaction.
// Timestamps that do not parse are left alone and surface as corrupt rows.
func (s *Store) migrateLegacy(ctx context.Context) error {
	ok, err := hasColumn(ctx, s.db, "command_logs", "self_invocation")
	if err != nil || ok {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `ALTER TABLE command_logs ADD COLUMN self_invocation BOOLEAN NOT NULL DEFAULT 0`); err != nil {
		// Another process may have migrated between the check and the ALTER.
		// The transaction holds the only connection, so release it first.
		tx.Rollback()
		if ok, checkErr := hasColumn(ctx, s.db, "command_logs", "self_invocation"); checkErr == nil && ok {
			return nil
		}
		return fmt.Errorf("failed to add self_invocation column: %w", err)
	}

	type legacyRow struct {
		id, timestamp, command string
	}
	rows, err := tx.QueryContext(ctx, `SELECT id, timestamp, command FROM command_logs`)
	if err != nil {
		return fmt.Errorf("failed to read legacy rows: %w", err)
	}
	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.id, &r.timestamp, &r.command); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan legacy row: %w", err)
		}
		legacy = append(legacy, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read legacy rows: %w", err)
	}
	rows.Close()

	stmt, err := tx.PrepareContext(ctx, `UPDATE command_logs SET timestamp = ?, self_invocation = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare migration: %w", err)
	}
	defer stmt.Close()

	for _, r := range legacy {
		ts := r.timestamp
		if parsed, err := ParseTimestamp(r.timestamp); err == nil {
			ts = FormatTimestamp(parsed)
		}
		if _, err := stmt.ExecContext(ctx, ts, IsSelfInvocation(s.selfName, r.command), r.id); err != nil {
			return fmt.Errorf("failed to migrate row %s: %w", r.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// hasColumn reports whether table has a column named column.
func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan column info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
