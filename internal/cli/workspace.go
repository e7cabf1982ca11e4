package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/roach88/strata/internal/config"
	"github.com/roach88/strata/internal/db"
	"github.com/roach88/strata/internal/runner"
	"github.com/roach88/strata/internal/storage"
	"github.com/roach88/strata/internal/track"
	"github.com/roach88/strata/internal/vcs"
)

var errNoRepository = errors.New("not inside a strata repository (run 'strata init' first)")

// findRoot walks up from dir looking for the metadata directory.
func findRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, config.Dir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errNoRepository
		}
		dir = parent
	}
}

// workspace is one opened repository: its config, store, database, and
// tracker, ready for a single command invocation.
type workspace struct {
	root    string
	cfg     config.Config
	store   *storage.SQLite
	tracker *track.Tracker
	log     *zap.Logger
}

// openWorkspace locates the repository containing the working directory
// and opens everything a command needs.
func openWorkspace(ctx context.Context, opts *RootOptions, trackOpts ...track.Option) (*workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := findRoot(cwd)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "no repository", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "broken repository config", err)
	}

	log, err := newLogger(opts.Verbose)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.StorePath(root))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open object store", err)
	}

	database, err := db.Open(ctx, store, db.WithLogger(log))
	if err != nil {
		store.Close()
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	// Prefer git so historical revisions resolve; a plain directory still
	// works for working-tree queries.
	var rev vcs.Revisioner
	if git, gitErr := vcs.OpenGit(root); gitErr == nil {
		rev = git
	} else {
		log.Debug("no git repository, using working tree only", zap.Error(gitErr))
		rev = vcs.NewWorktree(root)
	}

	trackOpts = append([]track.Option{
		track.WithLogger(log),
		track.WithEngine(runner.NewShell(root, log)),
	}, trackOpts...)
	tracker, err := track.Open(ctx, database, rev, trackOpts...)
	if err != nil {
		store.Close()
		return nil, WrapExitError(ExitCommandError, "open tracker", err)
	}

	return &workspace{root: root, cfg: cfg, store: store, tracker: tracker, log: log}, nil
}

func (w *workspace) Close() error {
	return w.store.Close()
}

func describeCount(n int, singular string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", singular)
	}
	return fmt.Sprintf("%d %ss", n, singular)
}
