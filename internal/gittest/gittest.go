// Package gittest provides real-git-repository fixtures shared by the
// gitrepo, snapshot, apply, and workflow package tests. It shells out to
// the system git binary, matching the rest of the module.
package gittest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Init creates a git repository in dir with one initial commit containing
// README.md and LICENSE.
func Init(t *testing.T, dir string) {
	t.Helper()
	Run(t, dir, "init", "-b", "main")
	Run(t, dir, "config", "user.email", "offstage-test@example.com")
	Run(t, dir, "config", "user.name", "offstage tests")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# init\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LICENSE"), []byte("MIT\n"), 0o600))
	Run(t, dir, "add", ".")
	Run(t, dir, "commit", "-m", "initial commit")
}

// InitEmpty creates a git repository in dir with no commits at all.
func InitEmpty(t *testing.T, dir string) {
	t.Helper()
	Run(t, dir, "init", "-b", "main")
	Run(t, dir, "config", "user.email", "offstage-test@example.com")
	Run(t, dir, "config", "user.name", "offstage tests")
}

// Run executes a git subcommand in dir, failing the test on error.
func Run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.CommandContext(context.Background(), "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=offstage tests",
		"GIT_AUTHOR_EMAIL=offstage-test@example.com",
		"GIT_COMMITTER_NAME=offstage tests",
		"GIT_COMMITTER_EMAIL=offstage-test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
}

// Output executes a git subcommand in dir and returns trimmed stdout,
// failing the test on error.
func Output(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.CommandContext(context.Background(), "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return strings.TrimSpace(string(out))
}

// StashList returns the stash reflog entries for the repo at dir, most
// recent first.
func StashList(t *testing.T, dir string) []string {
	t.Helper()
	out := Output(t, dir, "stash", "list")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

// Stage runs `git add` for path relative to dir.
func Stage(t *testing.T, dir, path string) {
	t.Helper()
	Run(t, dir, "add", "--", path)
}

// WriteFile writes content to path relative to dir.
func WriteFile(t *testing.T, dir, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, path), []byte(content), 0o600))
}

// ReadFile reads path relative to dir.
func ReadFile(t *testing.T, dir, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, path))
	require.NoError(t, err)
	return string(data)
}
