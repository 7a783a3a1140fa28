package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/output"
)

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Find commands containing a string",
	Long: `Lists commands whose text contains <pattern>, oldest first. The match is
literal and case-sensitive: '%' and '_' have no special meaning.`,
	Example: `  ctx search git
  ctx search "docker run"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	RootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	listing, err := s.analyzer().Search(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output.RenderSearch(args[0], listing))
	return err
}
