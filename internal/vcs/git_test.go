package vcs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contentSum(contents string) Checksum {
	sum := sha256.Sum256([]byte(contents))
	return Checksum(hex.EncodeToString(sum[:]))
}

func TestGitChecksumAtCommitAndWorktree(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("first"), 0o644))
	_, err = wt.Add("note.txt")
	require.NoError(t, err)
	commit, err := wt.Commit("add note", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	// The file changes on disk after the commit.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("second"), 0o644))

	g, err := OpenGit(dir)
	require.NoError(t, err)
	ctx := context.Background()

	atCommit, err := g.ChecksumAt(ctx, "note.txt", commit.String())
	require.NoError(t, err)
	assert.Equal(t, contentSum("first"), atCommit)

	atTree, err := g.ChecksumAt(ctx, "note.txt", WorkingTree)
	require.NoError(t, err)
	assert.Equal(t, contentSum("second"), atTree)
}

func TestGitMissingPathAtRevision(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	_, err = wt.Add("a.txt")
	require.NoError(t, err)
	commit, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	g, err := OpenGit(dir)
	require.NoError(t, err)

	_, err = g.ChecksumAt(context.Background(), "gone.txt", commit.String())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = g.ChecksumAt(context.Background(), "a.txt", "not-a-revision")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOpenGitOutsideRepository(t *testing.T) {
	_, err := OpenGit(t.TempDir())
	require.Error(t, err)
}
