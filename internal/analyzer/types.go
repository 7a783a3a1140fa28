package analyzer

import (
	"errors"
	"time"

	"github.com/blackwell-systems/ctx/internal/store"
)

// ErrNegativeLimit is returned by TopCommands for n < 0.
var ErrNegativeLimit = errors.New("limit must be zero or greater")

// digestSize is how many folders and commands a window digest ranks.
const digestSize = 3

// WindowSpec parameterizes a trailing-window report.
type WindowSpec struct {
	Name  string        // "Today", "Weekly"
	Span  time.Duration // events with timestamp >= now-Span are included
	Order store.Order   // ordering of the raw listing
}

var (
	TodayWindow  = WindowSpec{Name: "Today", Span: 24 * time.Hour, Order: store.Ascending}
	WeeklyWindow = WindowSpec{Name: "Weekly", Span: 7 * 24 * time.Hour, Order: store.Descending}
)

// FolderTime is a folder and the summed duration of commands run in it.
type FolderTime struct {
	Folder  string
	Seconds float64
}

// CommandTally is a command text and how often it was run.
type CommandTally struct {
	Command string
	Count   int64
}

// WindowReport is the result of one trailing-window scan. It carries both
// the digest values and the raw events so either rendering can be produced.
type WindowReport struct {
	Name          string
	Since         time.Time
	Total         int
	TotalDuration float64
	First         time.Time
	Last          time.Time
	Uptime        int64 // whole seconds between First and Last
	HasUptime     bool  // false when fewer than two events were seen
	TopFolders    []FolderTime
	TopCommands   []CommandTally
	Events        []*store.CommandEvent // ordered per WindowSpec.Order
	Skipped       int
}

// Listing is a sequence of events plus how many corrupt rows were skipped.
type Listing struct {
	Events  []*store.CommandEvent
	Skipped int
}

// ProjectStats is one row of the projects report.
type ProjectStats struct {
	Directory     string
	Count         int64
	TotalDuration float64
}

// FolderSummary is the result of a folder substring query. Found is false
// when no event matched, which is distinct from matches totalling zero
// seconds.
type FolderSummary struct {
	Folder        string
	Found         bool
	Count         int64
	TotalDuration float64
}

// Stats are the global duration statistics. When Count is zero the other
// fields are zero and HasData is false.
type Stats struct {
	Count         int64
	TotalDuration float64
	Shortest      float64
	Longest       float64
	Average       float64
	HasData       bool
}
