// Package planfile reads pipeline definition files written in CUE and
// compiles them into Plans.
//
// A planfile declares steps under a top-level "plans" struct:
//
//	plans: compile: {
//		command: "gcc"
//		success_codes: [0]
//		slots: [
//			{kind: "input", path: "main.c", position: 1},
//			{kind: "output", path: "bin/app", prefix: "-o ", position: 2},
//		]
//	}
package planfile

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/strata/internal/model"
)

// ParseError reports a problem with one field of a planfile, with CUE
// position info when available.
type ParseError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ParseError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile compiles the planfile at path.
func LoadFile(path string) ([]*model.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("planfile: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse compiles planfile source. The filename only labels error
// positions.
func Parse(data []byte, filename string) ([]*model.Plan, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("planfile: compile %s: %w", filename, err)
	}

	plansVal := value.LookupPath(cue.ParsePath("plans"))
	if !plansVal.Exists() {
		return nil, &ParseError{Field: "plans", Message: "no plans struct found", Pos: value.Pos()}
	}

	iter, err := plansVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("planfile: iterate plans: %w", err)
	}

	var plans []*model.Plan
	for iter.Next() {
		plan, err := compilePlan(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if len(plans) == 0 {
		return nil, &ParseError{Field: "plans", Message: "at least one plan is required", Pos: plansVal.Pos()}
	}
	return plans, nil
}

func compilePlan(label string, v cue.Value) (*model.Plan, error) {
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("planfile: plan %s: %w", label, err)
	}

	commandVal := v.LookupPath(cue.ParsePath("command"))
	if !commandVal.Exists() {
		return nil, &ParseError{Field: label + ".command", Message: "command is required", Pos: v.Pos()}
	}
	command, err := commandVal.String()
	if err != nil {
		return nil, &ParseError{Field: label + ".command", Message: "command must be a string", Pos: commandVal.Pos()}
	}

	var successCodes []int
	if codesVal := v.LookupPath(cue.ParsePath("success_codes")); codesVal.Exists() {
		codeIter, err := codesVal.List()
		if err != nil {
			return nil, &ParseError{Field: label + ".success_codes", Message: "success_codes must be a list of integers", Pos: codesVal.Pos()}
		}
		for codeIter.Next() {
			code, err := codeIter.Value().Int64()
			if err != nil {
				return nil, &ParseError{Field: label + ".success_codes", Message: "success_codes must be a list of integers", Pos: codeIter.Value().Pos()}
			}
			successCodes = append(successCodes, int(code))
		}
	}

	slotsVal := v.LookupPath(cue.ParsePath("slots"))
	if !slotsVal.Exists() {
		return nil, &ParseError{Field: label + ".slots", Message: "slots are required", Pos: v.Pos()}
	}
	slotIter, err := slotsVal.List()
	if err != nil {
		return nil, &ParseError{Field: label + ".slots", Message: "slots must be a list", Pos: slotsVal.Pos()}
	}

	var slots []model.Slot
	for i := 0; slotIter.Next(); i++ {
		slot, err := compileSlot(fmt.Sprintf("%s.slots[%d]", label, i), slotIter.Value(), i)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if len(slots) == 0 {
		return nil, &ParseError{Field: label + ".slots", Message: "at least one slot is required", Pos: slotsVal.Pos()}
	}

	return model.NewPlan(command, successCodes, slots), nil
}

func compileSlot(field string, v cue.Value, index int) (model.Slot, error) {
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	kindStr, err := kindVal.String()
	if err != nil {
		return model.Slot{}, &ParseError{Field: field + ".kind", Message: "kind is required", Pos: v.Pos()}
	}
	var kind model.SlotKind
	switch kindStr {
	case "input":
		kind = model.SlotInput
	case "output":
		kind = model.SlotOutput
	case "parameter":
		kind = model.SlotParameter
	default:
		return model.Slot{}, &ParseError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown slot kind %q (want input, output, or parameter)", kindStr),
			Pos:     kindVal.Pos(),
		}
	}

	pathVal := v.LookupPath(cue.ParsePath("path"))
	path, err := pathVal.String()
	if err != nil || path == "" {
		return model.Slot{}, &ParseError{Field: field + ".path", Message: "path is required", Pos: v.Pos()}
	}

	slot := model.Slot{Kind: kind, Path: path, Position: index + 1}
	if prefixVal := v.LookupPath(cue.ParsePath("prefix")); prefixVal.Exists() {
		prefix, err := prefixVal.String()
		if err != nil {
			return model.Slot{}, &ParseError{Field: field + ".prefix", Message: "prefix must be a string", Pos: prefixVal.Pos()}
		}
		slot.Prefix = prefix
	}
	if posVal := v.LookupPath(cue.ParsePath("position")); posVal.Exists() {
		pos, err := posVal.Int64()
		if err != nil {
			return model.Slot{}, &ParseError{Field: field + ".position", Message: "position must be an integer", Pos: posVal.Pos()}
		}
		slot.Position = int(pos)
	}
	return slot, nil
}
