package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/track"
	"github.com/roach88/strata/internal/vcs"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stale outputs and changed inputs",
		Long: `Compare each step's last recorded inputs against the working tree and
report what changed, what was deleted, and which outputs are stale.

With --at, the comparison reads file contents from a git revision instead
of the working tree.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), rootOpts, at, cmd)
		},
	}
	cmd.Flags().StringVar(&at, "at", vcs.WorkingTree, "git revision to compare against")
	return cmd
}

// statusInfo is the JSON shape of a status report.
type statusInfo struct {
	Clean    bool     `json:"clean"`
	Modified []string `json:"modified,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
	Stale    []string `json:"stale,omitempty"`
	Blocked  []string `json:"blocked,omitempty"`
}

func runStatus(ctx context.Context, opts *RootOptions, at string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	ws, err := openWorkspace(ctx, opts, track.WithRevision(at))
	if err != nil {
		return err
	}
	defer ws.Close()

	report, err := ws.tracker.Status(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "derive status", err)
	}
	_, blocked, err := ws.tracker.Update(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "derive status", err)
	}

	info := statusInfo{
		Clean:    report.Clean(),
		Modified: report.Modified,
		Deleted:  report.Deleted,
		Stale:    report.Stale,
	}
	for _, plan := range blocked {
		info.Blocked = append(info.Blocked, plan.Command())
	}
	return out.Text(renderStatus(report, info.Blocked), info)
}

// renderStatus formats the human-readable status report.
func renderStatus(report track.Report, blocked []string) string {
	if report.Clean() && len(blocked) == 0 {
		return "up to date\n"
	}

	var b strings.Builder
	section := func(title string, paths []string) {
		if len(paths) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", title)
		for _, p := range paths {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	section("modified inputs", report.Modified)
	section("deleted inputs", report.Deleted)
	section("stale outputs", report.Stale)
	if len(blocked) > 0 {
		b.WriteString("blocked (an input no longer exists):\n")
		for _, cmd := range blocked {
			fmt.Fprintf(&b, "  %s\n", cmd)
		}
	}
	return b.String()
}
