package output

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-isatty"
)

// DefaultPager is used when neither the config nor $PAGER names one.
const DefaultPager = "less"

// Page writes text through pager when stdout is a terminal, and straight to
// w otherwise. pager may carry arguments ("less -R"); an empty value falls
// back to $PAGER, then DefaultPager.
func Page(w io.Writer, text, pager string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		_, err := io.WriteString(w, text)
		return err
	}

	if pager == "" {
		pager = os.Getenv("PAGER")
	}
	args := strings.Fields(pager)
	if len(args) == 0 {
		pager = DefaultPager
		args = []string{DefaultPager}
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stdout = w
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pager %q: %w", pager, err)
	}
	return nil
}
