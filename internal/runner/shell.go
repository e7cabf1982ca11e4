package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Shell runs commands through `sh -c` in a working directory.
type Shell struct {
	dir string
	log *zap.Logger
}

func NewShell(dir string, log *zap.Logger) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	return &Shell{dir: dir, log: log}
}

func (s *Shell) Execute(ctx context.Context, resolved Resolved) (*Result, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", resolved.Command)
	cmd.Dir = s.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.log.Debug("executing plan", zap.String("command", resolved.Command))

	started := time.Now().UTC()
	err := cmd.Run()
	ended := time.Now().UTC()

	res := &Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Started: started,
		Ended:   ended,
	}
	if err != nil {
		var exit *exec.ExitError
		if !errors.As(err, &exit) {
			return nil, fmt.Errorf("runner: run %q: %w", resolved.Command, err)
		}
		res.ExitCode = exit.ExitCode()
	}

	for _, out := range resolved.Outputs {
		if _, statErr := os.Stat(filepath.Join(s.dir, filepath.FromSlash(out))); statErr == nil {
			res.Outputs = append(res.Outputs, out)
		}
	}

	s.log.Debug("plan finished",
		zap.String("command", resolved.Command),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("elapsed", ended.Sub(started)))
	return res, nil
}
