package store

import (
	"database/sql"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// TimestampLayout is the on-disk timestamp format. Timestamps are always
// written in UTC with fixed-width nanoseconds so that string comparison in
// SQL matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CommandEvent is one observed shell invocation.
type CommandEvent struct {
	ID               string
	Timestamp        time.Time
	WorkingDirectory string
	CommandText      string
	ExitCode         int32 // -1 when the exit status could not be determined
	DurationSeconds  float64
	SelfInvocation   bool // set by Insert; true for ctx's own commands
}

// Order selects the timestamp ordering of a scan.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) sql() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}

// ScanOptions narrows a Scan. The zero value scans every event in ascending
// order. Substring filters are literal and case-sensitive.
type ScanOptions struct {
	Since           time.Time
	Order           Order
	DirContains     string
	CommandContains string
	ExcludeSelf     bool
}

// Filter narrows an Aggregate.
type Filter struct {
	DirContains string
	ExcludeSelf bool
}

// Aggregate holds store-side duration statistics over a filtered set.
// When Count is zero the remaining fields are not Valid.
type Aggregate struct {
	Count int64
	Sum   sql.NullFloat64
	Min   sql.NullFloat64
	Max   sql.NullFloat64
	Avg   sql.NullFloat64
}

// CommandCount is one row of a group-by-command query.
type CommandCount struct {
	Command string
	Count   int64
}

// DirectoryStats is one row of a group-by-directory query.
type DirectoryStats struct {
	Directory     string
	Count         int64
	TotalDuration float64
}

// IsSelfInvocation reports whether command, after trimming leading
// whitespace, is name itself or name followed by whitespace.
func IsSelfInvocation(name, command string) bool {
	if name == "" {
		return false
	}
	trimmed := strings.TrimLeftFunc(command, unicode.IsSpace)
	if !strings.HasPrefix(trimmed, name) {
		return false
	}
	rest := trimmed[len(name):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsSpace(r)
}

// FormatTimestamp renders t in the on-disk format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an on-disk timestamp. Any RFC 3339 value is accepted
// so rows written with a local offset still load.
func ParseTimestamp(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}
