// Package snapshot implements the safe-snapshot workflow's capture and
// restore half: reducing each partially-staged file in the workdir to
// exactly its staged content before a user command runs, and undoing that
// reduction afterward. Unstaged edits to files outside the staged set and
// untracked files stay in the workdir while the command runs.
package snapshot

import (
	"context"
	"fmt"

	"github.com/yarlson/offstage/internal/gitrepo"
	"github.com/yarlson/offstage/internal/mergestate"
)

// StashRecord identifies a saved copy of the working tree plus the merge
// state captured immediately before it was made.
type StashRecord struct {
	StashID     string
	MergeStatus mergestate.Status
}

// Snapshot is the immutable record produced by Engine.Save. The workflow
// driver passes it to apply.Modifications, then to Restore if the command
// or Modifications failed, and finally always to Clean.
type Snapshot struct {
	StagedFiles  []string
	BackupStash  *StashRecord // nil when there was nothing to back up
	UnstagedDiff []byte       // nil when no file was partially staged
}

// CaptureDirtyError reports that Save failed after the backup stash was
// already created; the stash entry remains in the stash list so the user
// can recover manually.
type CaptureDirtyError struct {
	StashID string
	Err     error
}

func (e *CaptureDirtyError) Error() string {
	return fmt.Sprintf("snapshot capture failed after backup stash %s was created; "+
		"recover manually with `git stash apply %s`: %v", e.StashID, e.StashID, e.Err)
}

func (e *CaptureDirtyError) Unwrap() error { return e.Err }

// Engine captures and restores snapshots for a single repository.
type Engine struct {
	repo *gitrepo.Repository
}

// New creates an Engine bound to repo.
func New(repo *gitrepo.Repository) *Engine {
	return &Engine{repo: repo}
}

// Save reduces the workdir to exactly the staged content of stagedFiles,
// recording everything needed to undo the reduction later.
//
// The engine trusts stagedFiles as given; it does not re-derive the staged
// set itself. Ordering is load-bearing: merge metadata must be captured
// before the backup stash is made (stash-equivalent operations can clear
// it), and partially-staged hunks are hidden only after the backup is
// safely recorded.
func (e *Engine) Save(ctx context.Context, stagedFiles []string) (*Snapshot, error) {
	modified, err := e.repo.ModifiedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	partial := intersect(stagedFiles, modified)

	unstagedDiff, err := e.repo.UnstagedPatch(ctx, partial)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	backup, err := e.saveBackupStash(ctx)
	if err != nil {
		return nil, err
	}

	if err := e.repo.CheckoutIndexPaths(ctx, partial); err != nil {
		if backup != nil {
			return nil, &CaptureDirtyError{StashID: backup.StashID, Err: fmt.Errorf("hide partially-staged hunks: %w", err)}
		}
		return nil, fmt.Errorf("capture: hide partially-staged hunks: %w", err)
	}

	return &Snapshot{
		StagedFiles:  stagedFiles,
		BackupStash:  backup,
		UnstagedDiff: unstagedDiff,
	}, nil
}

// saveBackupStash backs up the pre-run index and the tracked workdir files
// via a non-destructive stash (git's `stash create` + `stash store` never
// touch the workdir or index), so the re-apply and re-delete steps a
// destructive stash-save would require are unnecessary. See DESIGN.md.
// Untracked files are not part of the stash; the hard reset in Restore
// leaves them in place.
func (e *Engine) saveBackupStash(ctx context.Context) (*StashRecord, error) {
	hasHead, err := e.repo.HasHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	if !hasHead {
		return nil, nil
	}

	mergeStatus, err := mergestate.Read(e.repo.GitDir())
	if err != nil {
		return nil, fmt.Errorf("capture: save merge status: %w", err)
	}

	stashID, createErr := e.repo.StashCreate(ctx, gitrepo.StashMessage)
	if createErr != nil {
		return nil, fmt.Errorf("capture: %w", createErr)
	}

	if stashID == "" {
		// Nothing to stash: workdir and index were already clean.
		return nil, nil
	}

	if err := e.repo.StashStore(ctx, stashID, gitrepo.StashMessage); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	record := &StashRecord{StashID: stashID, MergeStatus: mergeStatus}

	if err := mergestate.Restore(e.repo.GitDir(), mergeStatus); err != nil {
		return nil, &CaptureDirtyError{StashID: stashID, Err: fmt.Errorf("restore merge status: %w", err)}
	}

	return record, nil
}

// Restore reverts the workdir, index, and merge state to what Save
// observed, discarding everything the user command wrote. It reports but
// does not retry; on failure the backup stash remains in the stash list for
// manual recovery.
func (e *Engine) Restore(ctx context.Context, snap *Snapshot) error {
	if err := e.repo.HardReset(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	if snap.BackupStash == nil {
		return nil
	}

	if err := e.repo.StashApply(ctx, snap.BackupStash.StashID, true); err != nil {
		return fmt.Errorf("restore: backup stash %s remains for manual recovery: %w", snap.BackupStash.StashID, err)
	}

	if err := mergestate.Restore(e.repo.GitDir(), snap.BackupStash.MergeStatus); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	return nil
}

// Clean drops the backup stash, if any, once no further recovery is
// needed. Failure here is diagnostic only: by this point the user-visible
// work is already committed or restored.
func (e *Engine) Clean(ctx context.Context, snap *Snapshot) error {
	if snap.BackupStash == nil {
		return nil
	}

	entries, err := e.repo.StashList(ctx)
	if err != nil {
		return fmt.Errorf("clean: %w", err)
	}

	for _, entry := range entries {
		if entry.ID == snap.BackupStash.StashID {
			if err := e.repo.StashDrop(ctx, entry.Ref); err != nil {
				return fmt.Errorf("clean: %w", err)
			}
			return nil
		}
	}

	return fmt.Errorf("clean: backup stash %s not found in stash list", snap.BackupStash.StashID)
}

// intersect returns the elements of a that also appear in b, preserving a's
// order.
func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
