// Command ctx-wrap runs a command and records it through the capture gate.
//
//	ctx-wrap git push origin main
//
// The command always runs with the terminal's stdio attached. It is recorded
// only when stdout is a terminal, its name is not on the denylist, and it is
// neither a repeat of the previous command nor within the debounce window.
// ctx-wrap exits with the command's own status; a command that cannot be
// started exits 127 (not found) or 126.
//
// Recording never blocks the user's command: a database that cannot be
// opened sends the event to the spool, and config errors fall back to
// defaults.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/ctx/internal/capture"
	"github.com/blackwell-systems/ctx/internal/config"
	"github.com/blackwell-systems/ctx/internal/logging"
	"github.com/blackwell-systems/ctx/internal/spool"
	"github.com/blackwell-systems/ctx/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ctx-wrap <command> [args...]")
		return 2
	}
	ctx := context.Background()

	cfg := loadConfig()
	logger, logClose := logging.Setup(cfg.LogPath, cfg.LogLevel, os.Getenv("CTX_DEBUG") != "")
	defer logClose.Close()

	sp := spool.New(cfg.SpoolPath, logger)
	st := openStore(ctx, cfg.DBPath, logger)

	gate := capture.NewGate(sp, capture.NewFileStateStore(cfg.StatePath), capture.ExecRunner{})
	if st != nil {
		defer st.Close()
		gate.Store = st
		gate.Fallback = sp
	}
	gate.Denylist = cfg.Denylist
	gate.DebounceWindow = cfg.DebounceWindow
	gate.Logger = logger

	// Interrupts reach the child through the terminal's process group; the
	// wrapper stays alive to record the result.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	result, err := gate.Run(ctx, argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctx-wrap: %v\n", err)
		var execErr *capture.ExecError
		if errors.As(err, &execErr) {
			return execErr.ExitStatus()
		}
		return 1
	}

	if st != nil && result.Stored {
		if _, err := sp.Drain(ctx, st); err != nil {
			logger.Warn().Err(err).Msg("spool drain failed")
		}
	}

	if result.ExitCode < 0 {
		return 1
	}
	return int(result.ExitCode)
}

// loadConfig returns the user's config, or defaults when it cannot be read.
func loadConfig() config.Config {
	dir, err := config.Dir()
	if err != nil {
		dir = ".context"
	}
	cfg, err := config.Load(dir, filepath.Join(dir, "config.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctx-wrap: %v (using defaults)\n", err)
		cfg = config.Defaults()
		cfg.Resolve(dir)
	}
	return cfg
}

// openStore returns an initialized store, or nil if it is unavailable.
func openStore(ctx context.Context, path string, logger zerolog.Logger) *store.Store {
	st, err := store.New(path)
	if err != nil {
		logger.Warn().Err(err).Msg("store unavailable, events will be spooled")
		return nil
	}
	if err := st.Initialize(ctx); err != nil {
		st.Close()
		logger.Warn().Err(err).Msg("store not initialized, events will be spooled")
		return nil
	}
	return st
}
