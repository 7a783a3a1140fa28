package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Overall command statistics",
	Long: `Shows the number of recorded commands and the total, shortest, longest
and average duration across the whole history, excluding ctx's own
invocations.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	// Register with root command
	RootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.analyzer().Stats(cmd.Context())
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output.RenderStats(stats))
	return err
}
