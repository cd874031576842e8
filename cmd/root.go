// Package cmd implements the offstage command-line surface: a single cobra
// command that wires flags into a workflow.Driver and runs it against the
// current directory's git repository.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/yarlson/offstage/internal/gitrepo"
	"github.com/yarlson/offstage/internal/shellrun"
	"github.com/yarlson/offstage/internal/ui"
	"github.com/yarlson/offstage/internal/workflow"
)

var (
	filterPattern string
	shellPath     string
	quiet         bool
)

var rootCmd = &cobra.Command{
	Use:           "offstage -- <command> [args...]",
	Short:         "Run a command against staged files without disturbing the rest of the working tree",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.MinimumNArgs(1),
	Long: `offstage snapshots the working tree around a command run against the
currently staged files: the staged paths are appended to the command, the
unstaged hunks of partially-staged files are hidden while it runs, the
command's edits are folded back into the index on success, and the working
tree is rolled back on failure.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVarP(&filterPattern, "filter", "f", "", "glob restricting which staged files the command sees")
	rootCmd.Flags().StringVarP(&shellPath, "shell", "s", "", "shell used to run the command (default: $SHELL, falling back to /bin/sh)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress offstage's own diagnostic banners")

	// The command to run may itself start with a dash ("-w", "--fix", ...);
	// stop parsing offstage's own flags at the first positional argument so
	// such flags reach the child command untouched.
	rootCmd.Flags().SetInterspersed(false)
}

// Execute runs the root command and exits the process with a non-zero
// status on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	repo, err := gitrepo.Open(ctx)
	if err != nil {
		return err
	}

	var opts []workflow.Option

	shell := shellPath
	if shell == "" {
		shell = shellrun.DefaultShell()
	}
	opts = append(opts, workflow.WithShell(shell))

	if filterPattern != "" {
		g, err := glob.Compile(filterPattern, '/')
		if err != nil {
			return fmt.Errorf("invalid --filter pattern %q: %w", filterPattern, err)
		}
		opts = append(opts, workflow.WithFilter(g))
	}

	diag := os.Stderr
	opts = append(opts, workflow.WithOutput(os.Stdout, os.Stderr))
	opts = append(opts, workflow.WithDiagnostics(ui.NewDiagWriter(diag, !quiet && ui.IsTerminal(diag))))
	opts = append(opts, workflow.WithQuiet(quiet))

	driver := workflow.NewDriver(repo, opts...)
	return driver.Run(ctx, args)
}
