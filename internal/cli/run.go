package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/track"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Re-execute stale pipeline steps",
		Long: `Execute every step whose inputs changed since its last run, producers
before consumers, recording a provenance entry per execution. Steps whose
recorded inputs were deleted are reported as blocked and skipped.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), rootOpts, cmd)
		},
	}
}

// runInfo is the JSON shape of a run report.
type runInfo struct {
	Executed []string `json:"executed,omitempty"`
	Blocked  []string `json:"blocked,omitempty"`
}

func runRun(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	ws, err := openWorkspace(ctx, opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	report, err := ws.tracker.Run(ctx)
	if err != nil {
		var execErr *track.ExecError
		if errors.As(err, &execErr) {
			return WrapExitError(ExitFailure, "plan failed", execErr)
		}
		return WrapExitError(ExitCommandError, "run", err)
	}

	var info runInfo
	var b strings.Builder
	for _, exec := range report.Executions {
		info.Executed = append(info.Executed, exec.Plan.Command())
		fmt.Fprintf(&b, "ran  %s\n", exec.Plan.Command())
	}
	for _, plan := range report.Blocked {
		info.Blocked = append(info.Blocked, plan.Command())
		fmt.Fprintf(&b, "blocked  %s\n", plan.Command())
	}
	if len(report.Executions) == 0 && len(report.Blocked) == 0 {
		b.WriteString("nothing to do\n")
	}
	if err := out.Text(b.String(), info); err != nil {
		return err
	}
	if len(report.Blocked) > 0 {
		return NewExitError(ExitFailure, describeCount(len(report.Blocked), "blocked plan"))
	}
	return nil
}
