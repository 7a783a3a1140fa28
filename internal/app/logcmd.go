package app

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/capture"
	"github.com/blackwell-systems/ctx/internal/logging"
	"github.com/blackwell-systems/ctx/internal/spool"
	"github.com/blackwell-systems/ctx/internal/store"
)

var logCmdCmd = &cobra.Command{
	Use:   "log-cmd <command> <cwd> <exit_code> <duration_secs>",
	Short: "Record one command (called by the shell hook)",
	Long: `Records a single command event. This is called by the hook that
'ctx init' installs; you should not need to run it yourself.

log-cmd never fails the calling shell: if the database cannot be written
the event is queued in the spool file and replayed by the next successful
call. Problems are written to the ctx log file.`,
	Args:   cobra.ExactArgs(4),
	Hidden: true,
	RunE:   runLogCmd,
}

func init() {
	RootCmd.AddCommand(logCmdCmd)
}

func runLogCmd(cmd *cobra.Command, args []string) error {
	event := parseLogCmdArgs(args, time.Now())
	if strings.TrimSpace(event.CommandText) == "" {
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		// No usable config means no log file either; stay silent.
		return nil
	}
	logger, logClose := logging.Setup(cfg.LogPath, cfg.LogLevel, debug)
	defer logClose.Close()

	recordEvent(cmd.Context(), cfg.DBPath, spool.New(cfg.SpoolPath, logger), logger, event)
	return nil
}

// recordEvent inserts event, falling back to the spool when the store is
// unavailable. After a successful insert any spooled events are replayed.
func recordEvent(ctx context.Context, dbPath string, sp *spool.Spool, logger zerolog.Logger, event *store.CommandEvent) {
	log := logger.With().Str("id", event.ID).Logger()

	st, err := store.New(dbPath, store.WithSelfName(selfName))
	if err == nil {
		defer st.Close()
		err = st.Initialize(ctx)
	}
	if err == nil {
		err = st.Insert(ctx, event)
	}
	if err != nil {
		log.Warn().Err(err).Msg("insert failed, spooling event")
		if spoolErr := sp.Insert(ctx, event); spoolErr != nil {
			log.Error().Err(spoolErr).Msg("event dropped")
		}
		return
	}

	n, err := sp.Drain(ctx, st)
	if err != nil {
		log.Warn().Err(err).Msg("spool drain failed")
		return
	}
	if n > 0 {
		log.Info().Int("events", n).Msg("replayed spooled events")
	}
}

// parseLogCmdArgs builds an event from the hook's positional arguments.
// Unparsable exit codes become capture.UnknownExitCode and unparsable
// durations become zero, so a malformed hook call still records the command.
func parseLogCmdArgs(args []string, now time.Time) *store.CommandEvent {
	exitCode := int32(capture.UnknownExitCode)
	if v, err := strconv.ParseInt(strings.TrimSpace(args[2]), 10, 32); err == nil {
		exitCode = int32(v)
	}

	var duration float64
	if v, err := strconv.ParseFloat(strings.TrimSpace(args[3]), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 {
		duration = v
	}

	return &store.CommandEvent{
		ID:               uuid.New().String(),
		Timestamp:        now,
		WorkingDirectory: args[1],
		CommandText:      args[0],
		ExitCode:         exitCode,
		DurationSeconds:  duration,
	}
}
