package analyzer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/ctx/internal/store"
)

// Analyzer turns stored command events into reports. Every call reads the
// store afresh; nothing is cached between calls.
type Analyzer struct {
	store  *store.Store
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the wall clock used to compute report windows.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithLogger sets the logger that receives corrupt-row warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// New creates a new Analyzer instance with the given store.
func New(st *store.Store, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:  st,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// scan walks the store with opts and calls fn for each readable event.
// Rows with corrupt timestamps are logged and counted, never fatal.
func (a *Analyzer) scan(ctx context.Context, opts store.ScanOptions, fn func(*store.CommandEvent)) (skipped int, err error) {
	for event, err := range a.store.Scan(ctx, opts) {
		if err != nil {
			if corrupt, ok := asCorrupt(err); ok {
				a.logger.Warn().
					Str("id", corrupt.ID).
					Str("timestamp", corrupt.Timestamp).
					Err(corrupt.Err).
					Msg("skipping event with unparsable timestamp")
				skipped++
				continue
			}
			return skipped, err
		}
		fn(event)
	}
	return skipped, nil
}
