package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ctx/internal/logging"
	"github.com/blackwell-systems/ctx/internal/shell"
	"github.com/blackwell-systems/ctx/internal/spool"
	"github.com/blackwell-systems/ctx/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues with command logging",
	Long: `Runs diagnostic checks on your ctx installation.

Checks:
  • Config file parses
  • Database exists and is readable
  • Commands are being recorded
  • No events are stuck in the spool
  • The shell hook is installed
  • ctx is on PATH (the hook calls it by name)`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running ctx diagnostics...")
	fmt.Fprintln(out)

	// Critical issues fail the command; warnings only inform.
	criticalIssues := 0
	warningIssues := 0

	// Check 1: Config
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(out, "✗ Config error:", err)
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Found 1 critical issue(s) and 0 warning(s).\n")
		return fmt.Errorf("diagnostics failed")
	}
	fmt.Fprintln(out, "✓ Config loaded")

	logger, logClose := logging.Setup(cfg.LogPath, cfg.LogLevel, debug)
	defer logClose.Close()

	// Check 2-3: Database and events
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "⚠ Database not created yet:", cfg.DBPath)
		fmt.Fprintln(out, "  It is created when the first command is logged.")
		warningIssues++
	} else {
		c, w := checkDatabase(cmd.Context(), out, cfg.DBPath)
		criticalIssues += c
		warningIssues += w
	}

	// Check 4: Spool backlog (warning only)
	pending, err := spool.New(cfg.SpoolPath, logger).Pending()
	switch {
	case err != nil:
		fmt.Fprintln(out, "⚠ Cannot read spool:", err)
		warningIssues++
	case pending > 0:
		fmt.Fprintf(out, "⚠ %d bytes of events waiting in %s\n", pending, cfg.SpoolPath)
		fmt.Fprintln(out, "  They are replayed on the next successfully logged command.")
		warningIssues++
	default:
		fmt.Fprintln(out, "✓ Spool empty")
	}

	// Check 5: Shell hook (warning only)
	sh := shell.Detect()
	if home, err := os.UserHomeDir(); err != nil {
		fmt.Fprintln(out, "⚠ Cannot determine home directory:", err)
		warningIssues++
	} else {
		rc := shell.RCFile(sh, home)
		data, err := os.ReadFile(rc)
		if err != nil || !strings.Contains(string(data), shell.Marker) {
			fmt.Fprintf(out, "⚠ Shell hook not found in %s\n", rc)
			fmt.Fprintln(out, "  Action: Run 'ctx init --install'")
			warningIssues++
		} else {
			fmt.Fprintf(out, "✓ Shell hook installed (%s)\n", rc)
		}
	}

	// Check 6: Binary on PATH (critical, the hook cannot run without it)
	if path, err := exec.LookPath(selfName); err != nil {
		fmt.Fprintf(out, "✗ %s not found on PATH: the shell hook cannot record commands\n", selfName)
		criticalIssues++
	} else {
		fmt.Fprintln(out, "✓ Binary found:", path)
	}

	fmt.Fprintln(out)
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Fprintln(out, "✓ All checks passed!")
		return nil
	}
	if criticalIssues > 0 {
		fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}
	fmt.Fprintf(out, "Found %d warning(s). Logging works but is not fully configured.\n", warningIssues)
	return nil
}

// checkDatabase opens the store read-mostly and reports the event count.
func checkDatabase(ctx context.Context, out io.Writer, path string) (critical, warnings int) {
	st, err := store.New(path, store.WithSelfName(selfName))
	if err != nil {
		fmt.Fprintln(out, "✗ Cannot open database:", err)
		return 1, 0
	}
	defer st.Close()

	count, err := st.Count(ctx)
	if err != nil {
		fmt.Fprintln(out, "✗ Cannot read events:", err)
		return 1, 0
	}
	fmt.Fprintln(out, "✓ Database found:", path)

	if count == 0 {
		fmt.Fprintln(out, "⚠ No commands recorded yet")
		fmt.Fprintln(out, "  This is normal right after installing the hook")
		return 0, 1
	}
	fmt.Fprintf(out, "✓ %d commands recorded\n", count)
	return 0, 0
}
