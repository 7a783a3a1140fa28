package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/output"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Command counts and time per folder",
	Args:  cobra.NoArgs,
	RunE:  runProjects,
}

func init() {
	RootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	projects, err := s.analyzer().Projects(cmd.Context())
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output.RenderProjects(projects))
	return err
}
