package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <path>",
		Short: "Show what a change to a path eventually affects",
		Long: `Walk the dependency graph from every step that reads or writes the
path and list the output paths a change would reach.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
}

func runShow(ctx context.Context, opts *RootOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	ws, err := openWorkspace(ctx, opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	affected := ws.tracker.AffectedPaths(path)

	var b strings.Builder
	if len(affected) == 0 {
		fmt.Fprintf(&b, "no pipeline step touches %s\n", path)
	} else {
		fmt.Fprintf(&b, "a change to %s affects:\n", path)
		for _, p := range affected {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	return out.Text(b.String(), affected)
}
