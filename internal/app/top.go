package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/output"
)

var topN int

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Most frequently used commands",
	Long: `Ranks command lines by how often they were run, excluding ctx's own
invocations. Commands are compared by their full text, so "git status" and
"git status -s" are counted separately.`,
	Example: `  ctx top
  ctx top --n 25`,
	Args: cobra.NoArgs,
	RunE: runTop,
}

func init() {
	topCmd.Flags().IntVarP(&topN, "n", "n", 10, "Number of commands to show")

	RootCmd.AddCommand(topCmd)
}

func runTop(cmd *cobra.Command, args []string) error {
	if topN < 0 {
		return fmt.Errorf("invalid --n: %d (must be zero or greater)", topN)
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	tallies, err := s.analyzer().TopCommands(cmd.Context(), topN)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output.RenderTop(topN, tallies))
	return err
}
