package analyzer

import (
	"context"
	"fmt"

	"github.com/blackwell-systems/ctx/internal/store"
)

// TopCommands returns the n most frequent command texts, excluding the
// tool's own invocations. n == 0 yields an empty ranking.
func (a *Analyzer) TopCommands(ctx context.Context, n int) ([]CommandTally, error) {
	if n < 0 {
		return nil, fmt.Errorf("top commands: %w (got %d)", ErrNegativeLimit, n)
	}
	if n == 0 {
		return []CommandTally{}, nil
	}

	counts, err := a.store.GroupByCommand(ctx, n, true)
	if err != nil {
		return nil, fmt.Errorf("failed to rank commands: %w", err)
	}

	tallies := make([]CommandTally, 0, len(counts))
	for _, c := range counts {
		tallies = append(tallies, CommandTally{Command: c.Command, Count: c.Count})
	}
	return tallies, nil
}

// Projects returns every working directory with its command count and
// summed duration, busiest first.
func (a *Analyzer) Projects(ctx context.Context) ([]ProjectStats, error) {
	dirs, err := a.store.GroupByDirectory(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to group by directory: %w", err)
	}

	projects := make([]ProjectStats, 0, len(dirs))
	for _, d := range dirs {
		projects = append(projects, ProjectStats{
			Directory:     d.Directory,
			Count:         d.Count,
			TotalDuration: d.TotalDuration,
		})
	}
	return projects, nil
}

// Search returns events whose command text contains pattern, oldest first.
// Matching is literal and case-sensitive.
func (a *Analyzer) Search(ctx context.Context, pattern string) (*Listing, error) {
	return a.list(ctx, store.ScanOptions{
		CommandContains: pattern,
		Order:           store.Ascending,
		ExcludeSelf:     true,
	})
}

// Log returns every stored event in chronological order, or newest first
// when reverse is set. The tool's own invocations are included.
func (a *Analyzer) Log(ctx context.Context, reverse bool) (*Listing, error) {
	order := store.Ascending
	if reverse {
		order = store.Descending
	}
	return a.list(ctx, store.ScanOptions{Order: order})
}

func (a *Analyzer) list(ctx context.Context, opts store.ScanOptions) (*Listing, error) {
	listing := &Listing{}
	skipped, err := a.scan(ctx, opts, func(e *store.CommandEvent) {
		listing.Events = append(listing.Events, e)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	listing.Skipped = skipped
	return listing, nil
}

// FolderSummary totals every event whose working directory contains folder.
// The tool's own invocations are counted too.
func (a *Analyzer) FolderSummary(ctx context.Context, folder string) (*FolderSummary, error) {
	agg, err := a.store.Aggregate(ctx, store.Filter{DirContains: folder})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %q: %w", folder, err)
	}

	summary := &FolderSummary{Folder: folder}
	if agg.Count == 0 {
		return summary, nil
	}
	summary.Found = true
	summary.Count = agg.Count
	summary.TotalDuration = agg.Sum.Float64
	return summary, nil
}

// Stats computes duration statistics across the whole store, excluding the
// tool's own invocations.
func (a *Analyzer) Stats(ctx context.Context) (*Stats, error) {
	agg, err := a.store.Aggregate(ctx, store.Filter{ExcludeSelf: true})
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	stats := &Stats{Count: agg.Count}
	if agg.Count == 0 {
		return stats, nil
	}
	stats.HasData = true
	stats.TotalDuration = agg.Sum.Float64
	stats.Shortest = agg.Min.Float64
	stats.Longest = agg.Max.Float64
	stats.Average = agg.Avg.Float64
	return stats, nil
}
