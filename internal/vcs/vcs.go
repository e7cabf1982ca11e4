// Package vcs answers one question: what is the checksum of a path at a
// revision. The working tree is a revision like any other, so staleness
// comparison code does not care whether it reads from disk or from git
// history.
package vcs

import (
	"context"
	"errors"
)

// WorkingTree is the pseudo-revision naming the current on-disk state.
const WorkingTree = "WORKTREE"

// ErrNotFound reports that a path does not exist at the requested
// revision. A path that existed at execution time and is ErrNotFound now
// has been deleted.
var ErrNotFound = errors.New("vcs: path not found at revision")

// Checksum is a hex-encoded sha256 over file contents.
type Checksum string

// Revisioner resolves path contents to checksums at a revision.
type Revisioner interface {
	ChecksumAt(ctx context.Context, path, revision string) (Checksum, error)
}
