package track

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/strata/internal/model"
	"github.com/roach88/strata/internal/runner"
	"github.com/roach88/strata/internal/vcs"
)

// ErrNoEngine reports a Run without a configured execution engine.
var ErrNoEngine = errors.New("track: no execution engine configured")

// ExecError reports a plan exiting with a code outside its success set.
type ExecError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("plan %q exited with code %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Execution pairs a re-run plan with what it did.
type Execution struct {
	Plan     *model.Plan
	Result   *runner.Result
	Activity *model.Activity
}

// RunReport summarizes one Run: what executed, and what could not.
type RunReport struct {
	Executions []Execution
	Blocked    []*model.Plan
}

// Run executes the stale plans in dependency order, records an Activity
// per execution, and commits. Execution stops at the first failing plan;
// activities recorded before the failure are still committed, so the next
// Run resumes from the failure point instead of repeating finished work.
func (t *Tracker) Run(ctx context.Context) (RunReport, error) {
	if t.engine == nil {
		return RunReport{}, ErrNoEngine
	}

	ordered, blocked, err := t.Update(ctx)
	if err != nil {
		return RunReport{}, err
	}
	report := RunReport{Blocked: blocked}

	for _, plan := range ordered {
		exec, err := t.runOne(ctx, plan)
		if err != nil {
			if commitErr := t.db.Commit(ctx); commitErr != nil {
				t.log.Error("commit after failed plan", zap.Error(commitErr))
			}
			return report, err
		}
		report.Executions = append(report.Executions, exec)
	}

	if err := t.db.Commit(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func (t *Tracker) runOne(ctx context.Context, plan *model.Plan) (Execution, error) {
	resolved := runner.Resolve(plan)

	usages := make([]model.Usage, 0, len(resolved.Inputs))
	for _, in := range resolved.Inputs {
		sum, err := t.rev.ChecksumAt(ctx, in, vcs.WorkingTree)
		if err != nil {
			return Execution{}, fmt.Errorf("track: checksum input %s: %w", in, err)
		}
		usages = append(usages, model.Usage{Path: in, Checksum: string(sum)})
	}

	t.log.Info("running plan", zap.String("command", resolved.Command))
	result, err := t.engine.Execute(ctx, resolved)
	if err != nil {
		return Execution{}, err
	}
	if !result.Succeeded(plan) {
		return Execution{}, &ExecError{
			Command:  resolved.Command,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
	}

	generations := make([]model.Generation, 0, len(result.Outputs))
	entities := make([]*model.Entity, 0, len(result.Outputs))
	for _, out := range result.Outputs {
		sum, err := t.rev.ChecksumAt(ctx, out, vcs.WorkingTree)
		if err != nil {
			return Execution{}, fmt.Errorf("track: checksum output %s: %w", out, err)
		}
		generations = append(generations, model.Generation{Path: out, Checksum: string(sum)})
		entities = append(entities, model.NewEntity(out, string(sum)))
	}

	act := model.NewActivity(plan.OID(), usages, generations, result.Started, result.Ended)
	act.AttachEntities(entities...)
	if err := t.db.Add(act); err != nil {
		return Execution{}, err
	}
	if err := t.prov.Add(act); err != nil {
		return Execution{}, err
	}
	return Execution{Plan: plan, Result: result, Activity: act}, nil
}

// Record registers an execution that happened outside Run, for callers
// that drive their own engine. The activity's usages and generations must
// carry the checksums observed at execution time.
func (t *Tracker) Record(act *model.Activity) error {
	if act == nil {
		return errors.New("track: nil activity")
	}
	if err := t.db.Add(act); err != nil {
		return err
	}
	return t.prov.Add(act)
}
