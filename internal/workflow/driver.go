// Package workflow orchestrates the prepare -> run -> finalize phases of
// the safe-snapshot workflow around the snapshot and apply engines.
package workflow

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gobwas/glob"

	"github.com/yarlson/offstage/internal/apply"
	"github.com/yarlson/offstage/internal/gitrepo"
	"github.com/yarlson/offstage/internal/shellrun"
	"github.com/yarlson/offstage/internal/snapshot"
)

// RestoreFailureError reports that a disposition failed AND the subsequent
// restore attempt also failed; both are surfaced so neither is masked.
type RestoreFailureError struct {
	Original error
	Restore  error
}

func (e *RestoreFailureError) Error() string {
	return fmt.Sprintf("%v (additionally, restore failed: %v)", e.Original, e.Restore)
}

func (e *RestoreFailureError) Unwrap() []error {
	return []error{e.Original, e.Restore}
}

// Driver orchestrates a single invocation of the safe-snapshot workflow.
type Driver struct {
	repo    *gitrepo.Repository
	engine  *snapshot.Engine
	shell   string
	filter  glob.Glob
	stdout  io.Writer
	stderr  io.Writer
	diag    io.Writer
	quiet   bool
}

// Option configures optional Driver behavior.
type Option func(*Driver)

// WithShell overrides the shell executable used to run the user command.
func WithShell(shell string) Option {
	return func(d *Driver) { d.shell = shell }
}

// WithFilter restricts staged files to those matching the glob pattern.
// The pattern arrives already compiled; cmd/root.go compiles it and reports
// an invalid pattern before a Driver is built. Without a filter every
// staged file is used.
func WithFilter(g glob.Glob) Option {
	return func(d *Driver) { d.filter = g }
}

// WithOutput sets the writers the user command's stdout/stderr stream to.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(d *Driver) {
		d.stdout = stdout
		d.stderr = stderr
	}
}

// WithDiagnostics sets the writer for the driver's own progress banners.
func WithDiagnostics(w io.Writer) Option {
	return func(d *Driver) { d.diag = w }
}

// WithQuiet suppresses the driver's own progress banners.
func WithQuiet(quiet bool) Option {
	return func(d *Driver) { d.quiet = quiet }
}

// NewDriver creates a Driver for repo.
func NewDriver(repo *gitrepo.Repository, opts ...Option) *Driver {
	d := &Driver{
		repo:   repo,
		engine: snapshot.New(repo),
		shell:  shellrun.DefaultShell(),
		stdout: os.Stdout,
		stderr: os.Stderr,
		diag:   os.Stderr,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes the prepare -> run -> finalize phases for the given command
// tokens, implementing spec §4.3 step for step.
func (d *Driver) Run(ctx context.Context, command []string) error {
	staged, err := d.repo.StagedFiles(ctx)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	filtered := d.applyFilter(staged)
	if len(filtered) == 0 {
		return nil
	}

	snap, err := d.engine.Save(ctx, filtered)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	d.printf("offstage: running against %d staged file(s)\n", len(filtered))

	cmdStr := shellrun.BuildCommand(command, filtered)
	runErr := shellrun.Run(ctx, d.shell, cmdStr, d.repo.Dir(), d.stdout, d.stderr)

	var dispositionErr error
	if runErr != nil {
		dispositionErr = fmt.Errorf("command: %w", runErr)
	} else if err := apply.Modifications(ctx, d.repo, snap); err != nil {
		dispositionErr = err
	}

	if dispositionErr != nil {
		if restoreErr := d.engine.Restore(ctx, snap); restoreErr != nil {
			dispositionErr = &RestoreFailureError{Original: dispositionErr, Restore: restoreErr}
		}
	}

	if cleanErr := d.engine.Clean(ctx, snap); cleanErr != nil {
		fmt.Fprintf(d.diag, "offstage: %v\n", cleanErr)
	}

	return dispositionErr
}

func (d *Driver) applyFilter(paths []string) []string {
	if d.filter == nil {
		return paths
	}
	filtered := make([]string, 0, len(paths))
	for _, p := range paths {
		if d.filter.Match(p) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func (d *Driver) printf(format string, args ...any) {
	if d.quiet {
		return
	}
	fmt.Fprintf(d.diag, format, args...)
}
