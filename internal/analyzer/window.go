package analyzer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/blackwell-systems/ctx/internal/store"
)

// Today reports on the last 24 hours.
func (a *Analyzer) Today(ctx context.Context) (*WindowReport, error) {
	return a.Window(ctx, TodayWindow)
}

// Weekly reports on the last 7 days.
func (a *Analyzer) Weekly(ctx context.Context) (*WindowReport, error) {
	return a.Window(ctx, WeeklyWindow)
}

// Window scans events newer than now-spec.Span once, ascending, excluding
// the tool's own invocations, and derives the digest from that single pass.
func (a *Analyzer) Window(ctx context.Context, spec WindowSpec) (*WindowReport, error) {
	if spec.Span <= 0 {
		return nil, fmt.Errorf("window %q: span must be positive", spec.Name)
	}

	report := &WindowReport{
		Name:  spec.Name,
		Since: a.now().Add(-spec.Span),
	}

	// Encounter order is kept alongside the maps for tie-breaking.
	folderTime := make(map[string]float64)
	var folderOrder []string
	commandCount := make(map[string]int64)
	var commandOrder []string

	skipped, err := a.scan(ctx, store.ScanOptions{
		Since:       report.Since,
		Order:       store.Ascending,
		ExcludeSelf: true,
	}, func(e *store.CommandEvent) {
		if report.Total == 0 || e.Timestamp.Before(report.First) {
			report.First = e.Timestamp
		}
		if report.Total == 0 || e.Timestamp.After(report.Last) {
			report.Last = e.Timestamp
		}
		report.Total++
		report.TotalDuration += e.DurationSeconds

		if _, ok := folderTime[e.WorkingDirectory]; !ok {
			folderOrder = append(folderOrder, e.WorkingDirectory)
		}
		folderTime[e.WorkingDirectory] += e.DurationSeconds

		if _, ok := commandCount[e.CommandText]; !ok {
			commandOrder = append(commandOrder, e.CommandText)
		}
		commandCount[e.CommandText]++

		report.Events = append(report.Events, e)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s window: %w", spec.Name, err)
	}
	report.Skipped = skipped

	if report.Total >= 2 {
		report.Uptime = int64(report.Last.Sub(report.First).Seconds())
		report.HasUptime = true
	}

	report.TopFolders = topFolders(folderOrder, folderTime, digestSize)
	report.TopCommands = topCommands(commandOrder, commandCount, digestSize)

	if spec.Order == store.Descending {
		slices.Reverse(report.Events)
	}
	return report, nil
}

func topFolders(order []string, totals map[string]float64, n int) []FolderTime {
	folders := make([]FolderTime, 0, len(order))
	for _, f := range order {
		folders = append(folders, FolderTime{Folder: f, Seconds: totals[f]})
	}
	// Stable sort keeps encounter order among equal totals.
	sort.SliceStable(folders, func(i, j int) bool {
		return folders[i].Seconds > folders[j].Seconds
	})
	if len(folders) > n {
		folders = folders[:n]
	}
	return folders
}

func topCommands(order []string, counts map[string]int64, n int) []CommandTally {
	commands := make([]CommandTally, 0, len(order))
	for _, c := range order {
		commands = append(commands, CommandTally{Command: c, Count: counts[c]})
	}
	sort.SliceStable(commands, func(i, j int) bool {
		return commands[i].Count > commands[j].Count
	})
	if len(commands) > n {
		commands = commands[:n]
	}
	return commands
}

func asCorrupt(err error) (*store.CorruptRowError, bool) {
	var corrupt *store.CorruptRowError
	if errors.As(err, &corrupt) {
		return corrupt, true
	}
	return nil, false
}
