// Package runner executes Plans. The tracking core hands an Engine a
// resolved command and expects back what actually happened; everything the
// core learns about an execution flows through the Result.
package runner

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/roach88/strata/internal/model"
)

// Resolved is a Plan made concrete: the rendered command line and the
// input and output paths its slots name, in slot position order.
type Resolved struct {
	Plan    *model.Plan
	Command string
	Inputs  []string
	Outputs []string
}

// Result reports one execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Started  time.Time
	Ended    time.Time

	// Outputs holds the output paths the execution actually produced, a
	// subset of the resolved outputs.
	Outputs []string
}

// Succeeded reports whether the exit code is one of the plan's success
// codes.
func (r *Result) Succeeded(plan *model.Plan) bool {
	for _, code := range plan.SuccessCodes() {
		if r.ExitCode == code {
			return true
		}
	}
	return false
}

// Engine runs resolved plans. A non-nil error means the engine itself
// failed; a plan exiting with a failure code is reported through the
// Result, not the error.
type Engine interface {
	Execute(ctx context.Context, resolved Resolved) (*Result, error)
}

// Resolve renders a Plan into its executable form. The command line is
// the plan's command followed by each slot's prefix and path, slots taken
// in position order.
func Resolve(plan *model.Plan) Resolved {
	slots := plan.Slots()
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Position < slots[j].Position })

	var b strings.Builder
	b.WriteString(plan.Command())
	r := Resolved{Plan: plan}
	for _, slot := range slots {
		b.WriteByte(' ')
		b.WriteString(slot.Prefix)
		b.WriteString(slot.Path)
		switch slot.Kind {
		case model.SlotInput:
			r.Inputs = append(r.Inputs, slot.Path)
		case model.SlotOutput:
			r.Outputs = append(r.Outputs, slot.Path)
		}
	}
	r.Command = b.String()
	return r
}
