package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/capture"
	"github.com/blackwell-systems/ctx/internal/logging"
)

// Test seams for the gate command; nil means the real terminal and clock.
var (
	gateIsTerminal func() bool
	gateNow        func() time.Time
)

var gateCmd = &cobra.Command{
	Use:   "gate <command line>",
	Short: "Decide whether a command should be logged (called by the shell hook)",
	Long: `Applies the capture rules to a command line before it runs and exits 0
when it should be logged, 1 when it should not. The shell hook calls this
from its preexec function and only passes accepted commands to 'ctx log-cmd'.

A command is rejected when stdout is not a terminal, its name is on the
denylist, it repeats the previous command, or it arrives within the debounce
window of the previous accepted one. Accepting a command updates the
debounce state file.`,
	Args:   cobra.ExactArgs(1),
	Hidden: true,
	RunE:   runGate,
}

func init() {
	RootCmd.AddCommand(gateCmd)
}

func runGate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return &ExitError{Code: 1}
	}
	logger, logClose := logging.Setup(cfg.LogPath, cfg.LogLevel, debug)
	defer logClose.Close()

	gate := capture.NewGate(nil, capture.NewFileStateStore(cfg.StatePath), nil)
	gate.Denylist = cfg.Denylist
	gate.DebounceWindow = cfg.DebounceWindow
	gate.Logger = logger
	gate.IsTerminal = gateIsTerminal
	gate.Now = gateNow

	decision := gate.DecideLine(cmd.Context(), args[0])
	logger.Debug().Str("decision", decision.String()).Msg("gate")
	if decision != capture.Accepted {
		return &ExitError{Code: 1}
	}
	return nil
}

// ExitError ends the process with Code and prints nothing.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
