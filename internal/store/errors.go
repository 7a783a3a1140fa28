package store

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when the command_logs table does not exist.
var ErrNotInitialized = errors.New("database not initialized: run any ctx command to create it")

// InitError reports that the schema could not be opened or created.
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("storage init: %s: %v", e.Op, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// WriteError reports a failed insert or purge.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage write: %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports a failed scan or aggregate. Stored data is untouched.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("storage read: %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// CorruptRowError reports a stored row whose timestamp cannot be parsed.
// Scans yield it and keep going.
type CorruptRowError struct {
	ID        string
	Timestamp string
	Err       error
}

func (e *CorruptRowError) Error() string {
	return fmt.Sprintf("corrupt row %s: bad timestamp %q: %v", e.ID, e.Timestamp, e.Err)
}

func (e *CorruptRowError) Unwrap() error { return e.Err }

// IsCorruptRow reports whether err is a CorruptRowError.
func IsCorruptRow(err error) bool {
	var c *CorruptRowError
	return errors.As(err, &c)
}
