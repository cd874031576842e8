package apply_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yarlson/offstage/internal/apply"
	"github.com/yarlson/offstage/internal/gitrepo"
	"github.com/yarlson/offstage/internal/gittest"
	"github.com/yarlson/offstage/internal/snapshot"
)

func openEngine(t *testing.T, dir string) (*gitrepo.Repository, *snapshot.Engine) {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(cwd)) })

	repo, err := gitrepo.Open(context.Background())
	require.NoError(t, err)
	return repo, snapshot.New(repo)
}

func TestModifications_StagesFormatterEdits(t *testing.T) {
	dir := t.TempDir()
	gittest.Init(t, dir)
	gittest.WriteFile(t, dir, "README.md", "# staged\n")
	gittest.Stage(t, dir, "README.md")

	repo, eng := openEngine(t, dir)
	ctx := context.Background()

	staged, err := repo.StagedFiles(ctx)
	require.NoError(t, err)
	snap, err := eng.Save(ctx, staged)
	require.NoError(t, err)

	// The "formatter" rewrites the staged file.
	gittest.WriteFile(t, dir, "README.md", "# staged (formatted)\n")

	require.NoError(t, apply.Modifications(ctx, repo, snap))

	out := gittest.Output(t, dir, "show", ":README.md")
	assert.Equal(t, "# staged (formatted)\n", out+"\n")
}

func TestModifications_EmptyCommitGuard(t *testing.T) {
	dir := t.TempDir()
	gittest.Init(t, dir)
	gittest.WriteFile(t, dir, "README.md", "# staged\n")
	gittest.Stage(t, dir, "README.md")

	repo, eng := openEngine(t, dir)
	ctx := context.Background()

	staged, err := repo.StagedFiles(ctx)
	require.NoError(t, err)
	snap, err := eng.Save(ctx, staged)
	require.NoError(t, err)

	// The "formatter" reverts the file back to its committed form.
	gittest.WriteFile(t, dir, "README.md", "# init\n")

	err = apply.Modifications(ctx, repo, snap)
	require.ErrorIs(t, err, apply.ErrEmptyCommit)
}

func TestModifications_UnstagedConflict(t *testing.T) {
	dir := t.TempDir()
	gittest.Init(t, dir)
	gittest.WriteFile(t, dir, "README.md", "# line one\n")
	gittest.Stage(t, dir, "README.md")
	gittest.WriteFile(t, dir, "README.md", "# line one\nunstaged addition\n")

	repo, eng := openEngine(t, dir)
	ctx := context.Background()

	staged, err := repo.StagedFiles(ctx)
	require.NoError(t, err)
	snap, err := eng.Save(ctx, staged)
	require.NoError(t, err)
	require.NotNil(t, snap.UnstagedDiff)

	// The command rewrites the exact same trailing region the unstaged hunk touches.
	gittest.WriteFile(t, dir, "README.md", "# line one\nformatter touched this line too\n")

	err = apply.Modifications(ctx, repo, snap)
	require.True(t, errors.Is(err, apply.ErrUnstagedConflict))
}

func TestModifications_UnstagedFileOutsideStagedSetUntouched(t *testing.T) {
	dir := t.TempDir()
	gittest.Init(t, dir)
	gittest.WriteFile(t, dir, "LICENSE", "MIT\nline2\nline3\nline4\nline5\nline6\nline7\nline8\n")
	gittest.Stage(t, dir, "LICENSE")
	gittest.Run(t, dir, "commit", "-m", "license body")
	gittest.WriteFile(t, dir, "README.md", "# staged\n")
	gittest.Stage(t, dir, "README.md")
	gittest.WriteFile(t, dir, "LICENSE", "MIT\nline2\nline3\nline4\nline5\nline6\nline7\nline8\nunstaged tail\n")

	repo, eng := openEngine(t, dir)
	ctx := context.Background()

	staged, err := repo.StagedFiles(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"README.md"}, staged)
	snap, err := eng.Save(ctx, staged)
	require.NoError(t, err)
	assert.Nil(t, snap.UnstagedDiff, "LICENSE was untouched by the staged set, so it is not partially staged")

	require.NoError(t, apply.Modifications(ctx, repo, snap))
	assert.Equal(t, "MIT\nline2\nline3\nline4\nline5\nline6\nline7\nline8\nunstaged tail\n", gittest.ReadFile(t, dir, "LICENSE"))
}
