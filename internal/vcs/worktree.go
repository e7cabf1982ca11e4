package vcs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Worktree checksums files from the filesystem under a root directory. It
// only understands the WorkingTree revision; combine with Git to resolve
// historical revisions.
type Worktree struct {
	root string
}

func NewWorktree(root string) *Worktree {
	return &Worktree{root: root}
}

func (w *Worktree) ChecksumAt(ctx context.Context, path, revision string) (Checksum, error) {
	if revision != WorkingTree {
		return "", fmt.Errorf("vcs: worktree cannot resolve revision %q", revision)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(filepath.Join(w.root, filepath.FromSlash(path)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("vcs: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("vcs: read %s: %w", path, err)
	}
	return Checksum(hex.EncodeToString(h.Sum(nil))), nil
}
