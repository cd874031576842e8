// Package gitrepo wraps the git plumbing and porcelain commands the
// snapshot workflow needs. It is the version-control library collaborator:
// everything here shells out to a real git binary rather than reimplementing
// git's object model.
package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// EmptyTreeHash is git's well-known hash of the empty tree object, used to
// diff against when HEAD does not exist yet (no commits).
const EmptyTreeHash = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// StashMessage is the fixed marker every backup stash created by this tool
// carries, so it can be told apart from a user's own stashes.
const StashMessage = "offstage backup"

// Repository is an opened handle to a git working tree. It owns no
// long-lived resources beyond the working directory path; every operation
// shells out to git and returns.
type Repository struct {
	dir    string // worktree root
	gitDir string // absolute path to the repository's .git directory
}

// Open resolves the git repository containing the current environment
// (current working directory), mirroring "open from environment" in a
// content-addressed VCS library.
func Open(ctx context.Context) (*Repository, error) {
	r := &Repository{}

	top, err := r.gitOutputIn(ctx, "", "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	r.dir = top

	gitDir, err := r.gitOutputIn(ctx, top, "rev-parse", "--git-dir")
	if err != nil {
		return nil, fmt.Errorf("resolve git directory: %w", err)
	}
	if !strings.HasPrefix(gitDir, "/") {
		gitDir = top + "/" + gitDir
	}
	r.gitDir = gitDir

	return r, nil
}

// Dir returns the worktree root.
func (r *Repository) Dir() string { return r.dir }

// GitDir returns the absolute path to the repository's internal directory,
// where MERGE_HEAD/MERGE_MODE/MERGE_MSG live.
func (r *Repository) GitDir() string { return r.gitDir }

// HasHead reports whether the repository has at least one commit.
func (r *Repository) HasHead(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "-q", "HEAD")
	cmd.Dir = r.dir
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, fmt.Errorf("rev-parse HEAD: %w", err)
	}
	return true, nil
}

// headOrEmptyTree returns "HEAD" when a commit exists, else the empty tree
// hash, so diff-tree-to-index style commands work identically before and
// after a repository's first commit.
func (r *Repository) headOrEmptyTree(ctx context.Context) (string, error) {
	hasHead, err := r.HasHead(ctx)
	if err != nil {
		return "", err
	}
	if hasHead {
		return "HEAD", nil
	}
	return EmptyTreeHash, nil
}

// StagedFiles returns the repository-relative paths whose index entry
// differs from the HEAD tree entry (diff-tree-to-index).
func (r *Repository) StagedFiles(ctx context.Context) ([]string, error) {
	base, err := r.headOrEmptyTree(ctx)
	if err != nil {
		return nil, err
	}
	out, err := r.gitOutput(ctx, "diff", "--name-only", "--cached", base)
	if err != nil {
		return nil, fmt.Errorf("diff-tree to index: %w", err)
	}
	return splitLines(out), nil
}

// ModifiedFiles returns tracked paths with unstaged modifications in the
// workdir (diff-index-to-workdir), excluding deletions.
func (r *Repository) ModifiedFiles(ctx context.Context) ([]string, error) {
	out, err := r.gitOutput(ctx, "diff", "--name-only", "--diff-filter=ACMRTUX")
	if err != nil {
		return nil, fmt.Errorf("diff index to workdir: %w", err)
	}
	return splitLines(out), nil
}

// DeletedFiles returns tracked paths present in the index but absent from
// the workdir.
func (r *Repository) DeletedFiles(ctx context.Context) ([]string, error) {
	out, err := r.gitOutput(ctx, "diff", "--name-only", "--diff-filter=D")
	if err != nil {
		return nil, fmt.Errorf("diff index to workdir (deletions): %w", err)
	}
	return splitLines(out), nil
}

// UnstagedPatch returns a unified-diff patch (index -> workdir, binary hunks
// preserved) restricted to the given paths. Returns nil, nil when paths is
// empty.
func (r *Repository) UnstagedPatch(ctx context.Context, paths []string) ([]byte, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	args := append([]string{"diff", "--binary", "--"}, literalPathspecs(paths)...)
	out, err := r.gitOutputBytes(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("diff index to workdir (unstaged patch): %w", err)
	}
	return out, nil
}

// AddExact stages the given paths from the current workdir, treating them
// as exact paths (pathspec magic disabled) and recording files that no
// longer exist on disk as deletions.
func (r *Repository) AddExact(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "-A", "--"}, literalPathspecs(paths)...)
	if err := r.git(ctx, args...); err != nil {
		return fmt.Errorf("stage modifications: %w", err)
	}
	return nil
}

// AddAll stages every change in the workdir, including untracked files,
// without touching files outside the working tree.
func (r *Repository) AddAll(ctx context.Context) error {
	if err := r.git(ctx, "add", "-A", "."); err != nil {
		return fmt.Errorf("stage all: %w", err)
	}
	return nil
}

// WriteIndexTree writes the current index as a tree object and returns its
// id, so the index can be restored exactly later.
func (r *Repository) WriteIndexTree(ctx context.Context) (string, error) {
	out, err := r.gitOutput(ctx, "write-tree")
	if err != nil {
		return "", fmt.Errorf("write index tree: %w", err)
	}
	return out, nil
}

// ResetIndexToTree restores the index to match the given tree id without
// touching the workdir.
func (r *Repository) ResetIndexToTree(ctx context.Context, tree string) error {
	if err := r.git(ctx, "read-tree", tree); err != nil {
		return fmt.Errorf("restore index tree: %w", err)
	}
	return nil
}

// StashCreate creates a stash commit object (non-destructive: it touches
// neither the index nor the workdir) and returns its id, or "" if there was
// nothing to stash.
func (r *Repository) StashCreate(ctx context.Context, message string) (string, error) {
	out, err := r.gitOutput(ctx, "stash", "create", message)
	if err != nil {
		return "", fmt.Errorf("stash create: %w", err)
	}
	return out, nil
}

// StashStore records a stash object id in the stash reflog under the given
// message, making it visible to `git stash list`.
func (r *Repository) StashStore(ctx context.Context, id, message string) error {
	if err := r.git(ctx, "stash", "store", "-m", message, id); err != nil {
		return fmt.Errorf("stash store: %w", err)
	}
	return nil
}

// StashApply applies the named stash. When reinstateIndex is true, staged
// changes captured in the stash are restored to the index as well as the
// workdir (git stash's --index flag); otherwise only the workdir is touched.
func (r *Repository) StashApply(ctx context.Context, id string, reinstateIndex bool) error {
	args := []string{"stash", "apply"}
	if reinstateIndex {
		args = append(args, "--index")
	}
	args = append(args, id)
	if err := r.git(ctx, args...); err != nil {
		return fmt.Errorf("stash apply: %w", err)
	}
	return nil
}

// StashEntry identifies one entry in the stash reflog.
type StashEntry struct {
	Ref string // e.g. "stash@{0}"
	ID  string // commit id the ref currently resolves to
}

// StashList returns all stash entries, most recent first.
func (r *Repository) StashList(ctx context.Context) ([]StashEntry, error) {
	out, err := r.gitOutput(ctx, "stash", "list", "--format=%gd %H")
	if err != nil {
		return nil, fmt.Errorf("stash list: %w", err)
	}
	var entries []StashEntry
	for _, line := range splitLines(out) {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		entries = append(entries, StashEntry{Ref: fields[0], ID: fields[1]})
	}
	return entries, nil
}

// StashDrop removes the given stash ref from the reflog.
func (r *Repository) StashDrop(ctx context.Context, ref string) error {
	if err := r.git(ctx, "stash", "drop", ref); err != nil {
		return fmt.Errorf("stash drop: %w", err)
	}
	return nil
}

// HardReset discards the workdir and index, replacing both with HEAD's
// tree. Before the first commit, there is no HEAD tree to reset to, so the
// index is simply cleared.
func (r *Repository) HardReset(ctx context.Context) error {
	hasHead, err := r.HasHead(ctx)
	if err != nil {
		return err
	}
	if hasHead {
		if err := r.git(ctx, "reset", "--hard", "HEAD"); err != nil {
			return fmt.Errorf("hard reset: %w", err)
		}
		return nil
	}
	if err := r.git(ctx, "read-tree", "--empty"); err != nil {
		return fmt.Errorf("hard reset (no HEAD): %w", err)
	}
	return nil
}

// CheckoutIndexPaths overlays the index version of each path onto the
// workdir without updating the index (checkout-index semantics).
func (r *Repository) CheckoutIndexPaths(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"checkout-index", "-f", "--"}, paths...)
	if err := r.git(ctx, args...); err != nil {
		return fmt.Errorf("checkout-index: %w", err)
	}
	return nil
}

// ApplyPatch applies a unified-diff patch to the workdir only, leaving the
// index untouched.
func (r *Repository) ApplyPatch(ctx context.Context, patch []byte) error {
	if len(patch) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, "git", "apply", "--whitespace=nowarn", "-")
	cmd.Dir = r.dir
	cmd.Stdin = bytes.NewReader(patch)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("apply patch: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// IndexMatchesHead reports whether the current index carries no delta
// against HEAD (or the empty tree, before the first commit).
func (r *Repository) IndexMatchesHead(ctx context.Context) (bool, error) {
	base, err := r.headOrEmptyTree(ctx)
	if err != nil {
		return false, err
	}
	cmd := exec.CommandContext(ctx, "git", "diff", "--quiet", "--cached", base)
	cmd.Dir = r.dir
	err = cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("diff --cached against %s: %w", base, err)
}

func (r *Repository) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return nil
}

func (r *Repository) gitOutput(ctx context.Context, args ...string) (string, error) {
	out, err := r.gitOutputIn(ctx, r.dir, args...)
	return strings.TrimSpace(out), err
}

func (r *Repository) gitOutputBytes(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	out, err := cmd.Output()
	if err != nil {
		return nil, wrapExitError(args, err)
	}
	return out, nil
}

func (r *Repository) gitOutputIn(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", wrapExitError(args, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func wrapExitError(args []string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
	}
	return fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
}

// literalPathspecs prefixes each path with the ":(literal)" pathspec magic
// signature so add/diff treat them as exact paths instead of glob patterns.
func literalPathspecs(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = ":(literal)" + p
	}
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	result := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			result = append(result, l)
		}
	}
	return result
}
