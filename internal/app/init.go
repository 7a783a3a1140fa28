package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/shell"
)

var (
	initInstall bool
	initShell   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Print or install the shell hook",
	Long: `Prints the hook that reports each interactive command to ctx. With
--install the hook is appended to your shell's startup file (~/.bashrc,
~/.zshrc or ~/.config/fish/config.fish). Installing twice is a no-op.

The shell is detected automatically; use --shell to override it.
Bash additionally needs bash-preexec (https://github.com/rcaloras/bash-preexec)
installed at ~/.bash-preexec.sh.`,
	Example: `  ctx init
  ctx init --install
  ctx init --shell fish --install`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initInstall, "install", false, "Append the hook to your shell startup file")
	initCmd.Flags().StringVar(&initShell, "shell", "", "Shell to generate the hook for (bash, zsh, fish)")

	RootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	sh := shell.Detect()
	if initShell != "" {
		parsed, err := shell.Parse(initShell)
		if err != nil {
			return err
		}
		sh = parsed
	}

	snippet, err := shell.Snippet(sh, selfName)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "# The following snippet will enable ctx logging for %s:\n\n%s", sh, snippet)
	if !initInstall {
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}
	rc := shell.RCFile(sh, home)

	added, err := shell.Install(rc, snippet)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	if !added {
		fmt.Fprintf(out, "ctx is already set up in %s.\n", rc)
		return nil
	}
	fmt.Fprintf(out, "Appended to %s!\n", rc)
	fmt.Fprintf(out, "\nTo activate ctx logging, run: source %s\n", rc)
	return nil
}
