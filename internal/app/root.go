package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
	debug      bool

	// RootCmd is the root command for ctx
	RootCmd = &cobra.Command{
		Use:   "ctx",
		Short: "Personal shell activity logger",
		Long: `ctx records every interactive shell command with its working directory,
exit status and duration, and turns the history into productivity reports.

Commands are reported by a small hook installed into your shell's startup
file. Nothing leaves your machine; events live in a local SQLite database
under ~/.context (override with CTX_HOME).

Quick Start:
  1. ctx init --install
  2. Open a new shell and work as usual
  3. ctx today --export

Examples:
  # What did I do in the last 24 hours?
  ctx today --export

  # Weekly digest as Markdown for a standup note
  ctx weekly --markdown

  # Most used commands
  ctx top --n 20

  # Find that long docker command from last week
  ctx search "docker run"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadConfig()
			if err == nil {
				if _, statErr := os.Stat(cfg.DBPath); os.IsNotExist(statErr) {
					fmt.Fprintln(out, "ctx: personal shell activity logger")
					fmt.Fprintln(out)
					fmt.Fprintln(out, "Run 'ctx init --install' to start logging commands.")
					fmt.Fprintln(out, "Run 'ctx --help' for the full reference.")
					return nil
				}
			}
			fmt.Fprintln(out, "ctx: personal shell activity logger")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Tip: Run 'ctx today --export' for today's summary.")
			fmt.Fprintln(out, "     Run 'ctx doctor' to check that logging works.")
			fmt.Fprintln(out, "     Run 'ctx --help' for all commands.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.context/ctx.sqlite)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.context/config.yaml)")
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log diagnostics to stderr")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
