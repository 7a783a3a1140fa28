// Package output renders ctx reports for the terminal.
//
// Every Render function is pure: it takes analyzer results and returns the
// text to print. Headings are styled with lipgloss when color is enabled;
// otherwise output is plain text suitable for piping or pasting.
package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/ctx/internal/analyzer"
	"github.com/blackwell-systems/ctx/internal/store"
)

// TimestampLayout is how event times are shown in listings.
const TimestampLayout = "2006-01-02 15:04:05 -07:00"

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	commandStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
)

// IsColorEnabled returns true if styled output should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// style applies s to text if color is enabled, otherwise returns the plain text.
func style(s lipgloss.Style, text string) string {
	if IsColorEnabled() {
		return s.Render(text)
	}
	return text
}

// RenderEvents renders a chronological listing of events.
func RenderEvents(events []*store.CommandEvent) string {
	if len(events) == 0 {
		return "No commands logged.\n"
	}

	var sb strings.Builder
	for _, e := range events {
		writeEvent(&sb, e)
	}
	return sb.String()
}

func writeEvent(sb *strings.Builder, e *store.CommandEvent) {
	exit := fmt.Sprintf("%d", e.ExitCode)
	if e.ExitCode != 0 {
		exit = style(failStyle, exit)
	}
	fmt.Fprintf(sb, "[%s] %s\n", style(dimStyle, e.Timestamp.Local().Format(TimestampLayout)), style(commandStyle, e.CommandText))
	fmt.Fprintf(sb, "  Dir: %s\n", e.WorkingDirectory)
	fmt.Fprintf(sb, "  Exit: %s | Duration: %.2fs\n\n", exit, e.DurationSeconds)
}

// RenderDigest renders the summary of a window report, either as plain text
// or as Markdown. Both forms carry the same values.
func RenderDigest(r *analyzer.WindowReport, markdown bool) string {
	if markdown {
		return renderDigestMarkdown(r)
	}

	var sb strings.Builder
	sb.WriteString(style(headingStyle, fmt.Sprintf("Productivity Summary (%s):", r.Name)))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Total commands: %d\n", r.Total)
	fmt.Fprintf(&sb, "Total terminal time: %.2f seconds\n", r.TotalDuration)
	if r.HasUptime {
		fmt.Fprintf(&sb, "Total terminal uptime: %d seconds\n", r.Uptime)
	} else {
		sb.WriteString("Total terminal uptime: N/A\n")
	}
	sb.WriteString("Top 3 most worked folders:\n")
	for i, f := range r.TopFolders {
		fmt.Fprintf(&sb, "  %d. %s (%.2f seconds)\n", i+1, f.Folder, f.Seconds)
	}
	sb.WriteString("Top 3 most used commands:\n")
	for i, c := range r.TopCommands {
		fmt.Fprintf(&sb, "  %d. %s (%d times)\n", i+1, c.Command, c.Count)
	}
	writeSkipped(&sb, r.Skipped)
	return sb.String()
}

func renderDigestMarkdown(r *analyzer.WindowReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Productivity Summary (%s)\n", r.Name)
	fmt.Fprintf(&sb, "- **Total commands:** %d\n", r.Total)
	fmt.Fprintf(&sb, "- **Total terminal time:** %.2f seconds\n", r.TotalDuration)
	if r.HasUptime {
		fmt.Fprintf(&sb, "- **Total terminal uptime:** %d seconds\n", r.Uptime)
	} else {
		sb.WriteString("- **Total terminal uptime:** N/A\n")
	}
	sb.WriteString("- **Top 3 most worked folders:**\n")
	for i, f := range r.TopFolders {
		fmt.Fprintf(&sb, "  %d. %s (`%.2f` seconds)\n", i+1, f.Folder, f.Seconds)
	}
	sb.WriteString("- **Top 3 most used commands:**\n")
	for i, c := range r.TopCommands {
		fmt.Fprintf(&sb, "  %d. `%s` (%d times)\n", i+1, c.Command, c.Count)
	}
	if r.Skipped > 0 {
		fmt.Fprintf(&sb, "\n_%d unreadable entries skipped._\n", r.Skipped)
	}
	return sb.String()
}

// RenderTop renders a top-N command ranking.
func RenderTop(n int, tallies []analyzer.CommandTally) string {
	var sb strings.Builder
	sb.WriteString(style(headingStyle, fmt.Sprintf("Top %d most used commands:", n)))
	sb.WriteString("\n")
	for i, c := range tallies {
		fmt.Fprintf(&sb, "  %d. %s (%d times)\n", i+1, c.Command, c.Count)
	}
	return sb.String()
}

// RenderProjects renders the per-folder rollup.
func RenderProjects(projects []analyzer.ProjectStats) string {
	var sb strings.Builder
	sb.WriteString(style(headingStyle, "Project folders:"))
	sb.WriteString("\n")
	for i, p := range projects {
		fmt.Fprintf(&sb, "  %d. %s (%d commands, %.2f seconds)\n", i+1, p.Directory, p.Count, p.TotalDuration)
	}
	return sb.String()
}

// RenderSearch renders search results for pattern.
func RenderSearch(pattern string, listing *analyzer.Listing) string {
	var sb strings.Builder
	sb.WriteString(style(headingStyle, fmt.Sprintf("Search results for '%s':", pattern)))
	sb.WriteString("\n")
	for _, e := range listing.Events {
		writeEvent(&sb, e)
	}
	writeSkipped(&sb, listing.Skipped)
	return sb.String()
}

// RenderFolderSummary renders a folder summary, or a "no data" message when
// nothing matched.
func RenderFolderSummary(s *analyzer.FolderSummary) string {
	if !s.Found {
		return fmt.Sprintf("No data found for project/folder '%s'.\n", s.Folder)
	}
	return fmt.Sprintf("%s\n  Commands run: %d\n  Total time spent: %.2f seconds\n",
		style(headingStyle, fmt.Sprintf("Summary for '%s':", s.Folder)), s.Count, s.TotalDuration)
}

// RenderStats renders the global statistics. An empty store prints a zero
// count and N/A for the duration figures.
func RenderStats(s *analyzer.Stats) string {
	var sb strings.Builder
	sb.WriteString(style(headingStyle, "Overall Productivity Stats:"))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  Total commands: %d\n", s.Count)
	fmt.Fprintf(&sb, "  Total terminal time: %.2f seconds\n", s.TotalDuration)
	if !s.HasData {
		sb.WriteString("  Shortest command: N/A\n")
		sb.WriteString("  Longest command: N/A\n")
		sb.WriteString("  Average command duration: N/A\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "  Shortest command: %.2f seconds\n", s.Shortest)
	fmt.Fprintf(&sb, "  Longest command: %.2f seconds\n", s.Longest)
	fmt.Fprintf(&sb, "  Average command duration: %.2f seconds\n", s.Average)
	return sb.String()
}

// RenderSkipped renders a notice about unreadable entries, or nothing.
func RenderSkipped(n int) string {
	var sb strings.Builder
	writeSkipped(&sb, n)
	return sb.String()
}

func writeSkipped(sb *strings.Builder, n int) {
	if n == 0 {
		return
	}
	noun := "entries"
	if n == 1 {
		noun = "entry"
	}
	sb.WriteString(style(dimStyle, fmt.Sprintf("(%d unreadable %s skipped)", n, noun)))
	sb.WriteString("\n")
}
