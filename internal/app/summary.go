package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/output"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <folder>",
	Short: "Totals for commands run in a folder",
	Long: `Counts commands whose working directory contains <folder> and sums their
duration. The match is a literal, case-sensitive substring, so "api" covers
both ~/src/api and ~/src/api/internal. ctx's own invocations are included.`,
	Example: `  ctx summary ~/src/api
  ctx summary api`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

func init() {
	RootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.analyzer().FolderSummary(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output.RenderFolderSummary(summary))
	return err
}
