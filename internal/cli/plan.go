package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/graph"
	"github.com/roach88/strata/internal/model"
	"github.com/roach88/strata/internal/oid"
	"github.com/roach88/strata/internal/planfile"
)

// NewPlanCommand creates the plan command group.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage pipeline steps",
	}
	cmd.AddCommand(newPlanImportCommand(rootOpts))
	cmd.AddCommand(newPlanListCommand(rootOpts))
	cmd.AddCommand(newPlanRemoveCommand(rootOpts))
	return cmd
}

func newPlanImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <planfile.cue>",
		Short: "Import pipeline steps from a planfile",
		Long: `Compile a CUE planfile and register its steps. Steps equivalent to
already-registered ones are skipped; an import that would create a
dependency cycle is rejected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanImport(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
}

func runPlanImport(ctx context.Context, opts *RootOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	plans, err := planfile.LoadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "compile planfile", err)
	}

	ws, err := openWorkspace(ctx, opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	added := 0
	for _, plan := range plans {
		node, err := ws.tracker.AddPlan(plan)
		if err != nil {
			if graph.IsCycleError(err) {
				return WrapExitError(ExitFailure, "planfile introduces a dependency cycle", err)
			}
			return WrapExitError(ExitCommandError, "register plan", err)
		}
		if node == plan {
			added++
		}
	}
	if err := ws.tracker.Commit(ctx); err != nil {
		return WrapExitError(ExitCommandError, "commit", err)
	}

	skipped := len(plans) - added
	msg := fmt.Sprintf("imported %s", describeCount(added, "plan"))
	if skipped > 0 {
		msg += fmt.Sprintf(" (%d already registered)", skipped)
	}
	return out.Success(msg)
}

func newPlanListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ls",
		Short:         "List registered pipeline steps",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanList(cmd.Context(), rootOpts, cmd)
		},
	}
}

// planInfo is the JSON shape of one listed plan.
type planInfo struct {
	OID     string   `json:"oid"`
	Command string   `json:"command"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

func runPlanList(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	ws, err := openWorkspace(ctx, opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	var infos []planInfo
	var b strings.Builder
	for _, plan := range ws.tracker.Plans() {
		info := planInfo{OID: plan.OID().String(), Command: plan.Command()}
		for _, s := range plan.Inputs() {
			info.Inputs = append(info.Inputs, s.Path)
		}
		for _, s := range plan.Outputs() {
			info.Outputs = append(info.Outputs, s.Path)
		}
		infos = append(infos, info)
		fmt.Fprintf(&b, "%s  %s\n", shortOID(plan.OID()), plan.Command())
		if len(info.Inputs) > 0 {
			fmt.Fprintf(&b, "%12s  %s\n", "reads", strings.Join(info.Inputs, ", "))
		}
		if len(info.Outputs) > 0 {
			fmt.Fprintf(&b, "%12s  %s\n", "writes", strings.Join(info.Outputs, ", "))
		}
	}
	if len(infos) == 0 {
		b.WriteString("no plans registered\n")
	}
	return out.Text(b.String(), infos)
}

func newPlanRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <oid-prefix>",
		Short: "Invalidate a pipeline step",
		Long: `Soft-delete a step. Its history stays in the provenance log, but it
leaves the active pipeline and will not re-run.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanRemove(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
}

func runPlanRemove(ctx context.Context, opts *RootOptions, prefix string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	ws, err := openWorkspace(ctx, opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	var match *model.Plan
	for _, plan := range ws.tracker.Plans() {
		if strings.HasPrefix(plan.OID().String(), prefix) {
			if match != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("ambiguous plan prefix %q", prefix))
			}
			match = plan
		}
	}
	if match == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("no plan matches %q", prefix))
	}

	if err := ws.tracker.InvalidatePlan(ctx, match.OID()); err != nil {
		return WrapExitError(ExitCommandError, "invalidate plan", err)
	}
	if err := ws.tracker.Commit(ctx); err != nil {
		return WrapExitError(ExitCommandError, "commit", err)
	}
	return out.Success(fmt.Sprintf("invalidated %s  %s", shortOID(match.OID()), match.Command()))
}

func shortOID(id oid.OID) string {
	return id.String()[:12]
}
