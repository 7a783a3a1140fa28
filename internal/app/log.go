package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/output"
)

var (
	logReverse bool
	logLess    bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List every recorded command",
	Long: `Lists every recorded command in chronological order, including ctx's
own invocations. Use --reverse for newest first and --less to page the
output (the pager can be changed with the 'pager' config key or $PAGER).`,
	Example: `  ctx log
  ctx log --reverse --less`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	logCmd.Flags().BoolVar(&logReverse, "reverse", false, "Show newest commands first")
	logCmd.Flags().BoolVar(&logLess, "less", false, "Page output through a pager")

	RootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	listing, err := s.analyzer().Log(cmd.Context(), logReverse)
	if err != nil {
		return err
	}

	text := output.RenderEvents(listing.Events) + output.RenderSkipped(listing.Skipped)
	if logLess {
		return output.Page(cmd.OutOrStdout(), text, s.cfg.Pager)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), text)
	return err
}
