package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/analyzer"
	"github.com/blackwell-systems/ctx/internal/output"
)

var (
	todayCmd  = newWindowCmd("today", "the last 24 hours", analyzer.TodayWindow)
	weeklyCmd = newWindowCmd("weekly", "the last 7 days", analyzer.WeeklyWindow)
)

func init() {
	RootCmd.AddCommand(todayCmd)
	RootCmd.AddCommand(weeklyCmd)
}

// newWindowCmd builds a trailing-window report command. Without flags it
// lists the window's commands; --export or --markdown print the digest.
func newWindowCmd(name, span string, spec analyzer.WindowSpec) *cobra.Command {
	var export, markdown bool

	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Commands from %s", span),
		Long: fmt.Sprintf(`Shows commands recorded in %s, excluding ctx's own invocations.

With --export, prints a digest instead: total commands, total time, terminal
uptime (time between the first and last command), and the top 3 folders
and commands. --markdown prints the same digest as Markdown.`, span),
		Example: fmt.Sprintf(`  ctx %[1]s
  ctx %[1]s --export
  ctx %[1]s --markdown > %[1]s.md`, name),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.analyzer().Window(cmd.Context(), spec)
			if err != nil {
				return err
			}

			var text string
			if export || markdown {
				text = output.RenderDigest(report, markdown)
			} else {
				text = output.RenderEvents(report.Events) + output.RenderSkipped(report.Skipped)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}

	cmd.Flags().BoolVar(&export, "export", false, "Print a summary digest")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Print the digest as Markdown")
	return cmd
}
