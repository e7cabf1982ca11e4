package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "log",
		Short:         "Show the provenance log",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd.Context(), rootOpts, cmd)
		},
	}
}

// logEntry is the JSON shape of one provenance log line.
type logEntry struct {
	Order   int64    `json:"order"`
	Token   string   `json:"token"`
	Command string   `json:"command"`
	Started string   `json:"started"`
	Read    []string `json:"read,omitempty"`
	Wrote   []string `json:"wrote,omitempty"`
}

func runLog(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	ws, err := openWorkspace(ctx, opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	activities, err := ws.tracker.Log(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "load provenance log", err)
	}

	var entries []logEntry
	var b strings.Builder
	// Newest first, like any other log.
	for i := len(activities) - 1; i >= 0; i-- {
		act := activities[i]
		command := "(invalidated plan)"
		if plan := ws.tracker.Plan(act.PlanID()); plan != nil {
			command = plan.Command()
		}
		entry := logEntry{
			Order:   act.Order(),
			Token:   act.Token(),
			Command: command,
			Started: act.StartedAt().Format(time.RFC3339),
		}
		for _, u := range act.Usages() {
			entry.Read = append(entry.Read, u.Path)
		}
		for _, g := range act.Generations() {
			entry.Wrote = append(entry.Wrote, g.Path)
		}
		entries = append(entries, entry)

		fmt.Fprintf(&b, "#%d  %s  %s\n", entry.Order, entry.Started, entry.Command)
		if len(entry.Read) > 0 {
			fmt.Fprintf(&b, "     read   %s\n", strings.Join(entry.Read, ", "))
		}
		if len(entry.Wrote) > 0 {
			fmt.Fprintf(&b, "     wrote  %s\n", strings.Join(entry.Wrote, ", "))
		}
	}
	if len(entries) == 0 {
		b.WriteString("no recorded runs\n")
	}
	return out.Text(b.String(), entries)
}
