package vcs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Git checksums paths at arbitrary git revisions, falling back to the
// filesystem for the WorkingTree revision. Checksums are over file
// contents, not git blob ids, so a file has the same checksum whether it
// is read from history or from disk.
type Git struct {
	repo     *git.Repository
	worktree *Worktree
}

// OpenGit opens the repository rooted at dir.
func OpenGit(dir string) (*Git, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("vcs: open git repository at %s: %w", dir, err)
	}
	return &Git{repo: repo, worktree: NewWorktree(dir)}, nil
}

func (g *Git) ChecksumAt(ctx context.Context, path, revision string) (Checksum, error) {
	if revision == WorkingTree {
		return g.worktree.ChecksumAt(ctx, path, revision)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	hash, err := g.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return "", fmt.Errorf("vcs: resolve revision %q: %w", revision, err)
	}
	commit, err := g.repo.CommitObject(*hash)
	if err != nil {
		return "", fmt.Errorf("vcs: load commit %s: %w", hash, err)
	}

	file, err := commit.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return "", fmt.Errorf("%w: %s@%s", ErrNotFound, path, revision)
		}
		return "", fmt.Errorf("vcs: lookup %s@%s: %w", path, revision, err)
	}

	r, err := file.Reader()
	if err != nil {
		return "", fmt.Errorf("vcs: read %s@%s: %w", path, revision, err)
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("vcs: read %s@%s: %w", path, revision, err)
	}
	return Checksum(hex.EncodeToString(h.Sum(nil))), nil
}
