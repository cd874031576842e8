// Package apply folds a user command's edits into the staged index and
// re-merges any unstaged hunks the snapshot engine hid before the command
// ran.
package apply

import (
	"context"
	"errors"
	"fmt"

	"github.com/yarlson/offstage/internal/gitrepo"
	"github.com/yarlson/offstage/internal/snapshot"
)

// ErrEmptyCommit is returned when staging the command's output produces an
// index identical to HEAD, protecting the user from a formatter that
// reverts every staged change.
var ErrEmptyCommit = errors.New("command left nothing staged; refusing to produce an empty commit")

// ErrUnstagedConflict is returned when the saved unstaged diff cannot be
// re-applied to the workdir because the command rewrote the same regions.
var ErrUnstagedConflict = errors.New("unstaged changes could not be re-applied onto the command's edits")

// Modifications stages the command's edits to snap.StagedFiles and
// re-applies snap.UnstagedDiff on top.
//
// The index already carries the command's edits by the time the unstaged
// diff is applied, so a conflict there still leaves a coherent, staged
// result; no three-way merge is attempted.
func Modifications(ctx context.Context, repo *gitrepo.Repository, snap *snapshot.Snapshot) error {
	if err := repo.AddExact(ctx, snap.StagedFiles); err != nil {
		return fmt.Errorf("apply: %w", err)
	}

	empty, err := repo.IndexMatchesHead(ctx)
	if err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	if empty {
		return ErrEmptyCommit
	}

	if len(snap.UnstagedDiff) > 0 {
		if err := repo.ApplyPatch(ctx, snap.UnstagedDiff); err != nil {
			return fmt.Errorf("%w: %s", ErrUnstagedConflict, err)
		}
	}

	return nil
}
