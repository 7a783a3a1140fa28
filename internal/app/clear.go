package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded commands",
	Long: `Deletes every recorded command, including events still waiting in the
spool. Asks for confirmation unless --yes is given. This cannot be undone.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Skip confirmation prompt")

	RootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if !clearYes && !confirmClear(cmd.InOrStdin(), out) {
		fmt.Fprintln(out, "Aborted. No logs were cleared.")
		return nil
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.store.PurgeAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to clear logs: %w", err)
	}
	if err := s.spool().Discard(); err != nil {
		return fmt.Errorf("failed to clear spool: %w", err)
	}
	s.logger.Info().Int64("events", n).Msg("logs cleared")

	fmt.Fprintln(out, "All logs have been cleared.")
	return nil
}

// confirmClear prompts on out and reads one line from in.
// Accepts "y" or "yes" in any case.
func confirmClear(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "Are you sure you want to clear all logs? [y/N]: ")

	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
