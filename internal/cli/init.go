package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/config"
	"github.com/roach88/strata/internal/db"
	"github.com/roach88/strata/internal/storage"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a strata repository",
		Long: `Create the .strata metadata directory with a default configuration and
an empty object store. Defaults to the current directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd.Context(), rootOpts, dir, cmd)
		},
	}
	return cmd
}

func runInit(ctx context.Context, opts *RootOptions, dir string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(config.Path(root)); err == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("repository already initialized at %s", root))
	}

	cfg := config.Default()
	if err := config.Save(root, cfg); err != nil {
		return WrapExitError(ExitCommandError, "write config", err)
	}

	store, err := storage.Open(cfg.StorePath(root))
	if err != nil {
		return WrapExitError(ExitCommandError, "create object store", err)
	}
	defer store.Close()

	database, err := db.Open(ctx, store)
	if err != nil {
		return WrapExitError(ExitCommandError, "initialize database", err)
	}
	if err := database.Commit(ctx); err != nil {
		return WrapExitError(ExitCommandError, "initialize database", err)
	}

	return out.Success(fmt.Sprintf("initialized strata repository at %s", root))
}
