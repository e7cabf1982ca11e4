// Package model defines the persisted domain types: Plans (reusable
// command-line step templates), Activities (concrete executions), and
// Entities (tracked artifacts).
package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/strata/internal/object"
)

// Root-catalog type tags. These are the closed set of type names the
// database's root catalog indexes.
const (
	TypePlan     = "Plan"
	TypeActivity = "Activity"
	TypeEntity   = "Entity"
)

func init() {
	object.RegisterType(TypePlan, func() object.Object { return &Plan{} })
	object.RegisterType(TypeActivity, func() object.Object { return &Activity{} })
	object.RegisterType(TypeEntity, func() object.Object { return &Entity{} })
}

// SlotKind distinguishes the three slot roles on a Plan.
type SlotKind uint8

const (
	SlotInput SlotKind = iota
	SlotOutput
	SlotParameter
)

func (k SlotKind) String() string {
	switch k {
	case SlotInput:
		return "input"
	case SlotOutput:
		return "output"
	case SlotParameter:
		return "parameter"
	}
	return "unknown"
}

func slotKindFromString(s string) (SlotKind, error) {
	switch s {
	case "input":
		return SlotInput, nil
	case "output":
		return SlotOutput, nil
	case "parameter":
		return SlotParameter, nil
	}
	return 0, fmt.Errorf("model: unknown slot kind %q", s)
}

// Slot is one ordered input/output/parameter position on a Plan. Path
// carries the default path pattern (or parameter value), Prefix the optional
// command-line prefix emitted before it, Position the slot's place in the
// rendered command line.
type Slot struct {
	Kind     SlotKind
	Path     string
	Prefix   string
	Position int
}

// Plan is the persisted unit of work: a command template with ordered
// slots. Plans are immutable except for explicit invalidation; a changed
// step is a new Plan.
type Plan struct {
	object.Persistent

	command       string
	successCodes  []int
	slots         []Slot
	createdAt     time.Time
	invalidatedAt time.Time
}

// NewPlan builds a Plan from a command template and its slots. Slots keep
// the given order; Position defaults to the slot's index when unset.
func NewPlan(command string, successCodes []int, slots []Slot) *Plan {
	if len(successCodes) == 0 {
		successCodes = []int{0}
	}
	owned := make([]Slot, len(slots))
	copy(owned, slots)
	for i := range owned {
		if owned[i].Position == 0 {
			owned[i].Position = i
		}
	}
	return &Plan{
		command:      command,
		successCodes: append([]int(nil), successCodes...),
		slots:        owned,
		createdAt:    time.Now().UTC(),
	}
}

func (p *Plan) TypeName() string { return TypePlan }

func (p *Plan) Command() string { return p.command }

// SuccessCodes returns the exit codes treated as successful execution.
func (p *Plan) SuccessCodes() []int { return append([]int(nil), p.successCodes...) }

// Slots returns all slots in declaration order.
func (p *Plan) Slots() []Slot { return append([]Slot(nil), p.slots...) }

// Inputs returns the input slots in declaration order.
func (p *Plan) Inputs() []Slot { return p.slotsOfKind(SlotInput) }

// Outputs returns the output slots in declaration order.
func (p *Plan) Outputs() []Slot { return p.slotsOfKind(SlotOutput) }

// Parameters returns the parameter slots in declaration order.
func (p *Plan) Parameters() []Slot { return p.slotsOfKind(SlotParameter) }

func (p *Plan) slotsOfKind(kind SlotKind) []Slot {
	var out []Slot
	for _, s := range p.slots {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (p *Plan) CreatedAt() time.Time { return p.createdAt }

// Invalidated reports whether the Plan has been superseded. Invalidated
// Plans stay in the store (soft delete) but leave the dependency graph's
// node set.
func (p *Plan) Invalidated() bool { return !p.invalidatedAt.IsZero() }

// InvalidatedAt returns the supersession timestamp, zero if still live.
func (p *Plan) InvalidatedAt() time.Time { return p.invalidatedAt }

// Invalidate marks the Plan superseded as of t. Idempotent: a Plan keeps
// its first invalidation timestamp.
func (p *Plan) Invalidate(t time.Time) {
	if p.Invalidated() {
		return
	}
	p.invalidatedAt = t.UTC()
	p.MarkModified()
}

// EquivalentTo reports whether two Plans describe the same logical step:
// same command, same success codes, and the same multiset of
// (kind, path, prefix, position) across slots. Equivalence, not identity,
// is what keeps repeated re-runs of a step from growing duplicate nodes.
func (p *Plan) EquivalentTo(other *Plan) bool {
	if other == nil || p.command != other.command {
		return false
	}
	if !equalIntSets(p.successCodes, other.successCodes) {
		return false
	}
	if len(p.slots) != len(other.slots) {
		return false
	}
	a := sortedSlotKeys(p.slots)
	b := sortedSlotKeys(other.slots)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedSlotKeys(slots []Slot) []string {
	keys := make([]string, len(slots))
	for i, s := range slots {
		keys[i] = fmt.Sprintf("%s\x00%s\x00%s\x00%d", s.Kind, s.Path, s.Prefix, s.Position)
	}
	sort.Strings(keys)
	return keys
}

func equalIntSets(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]int(nil), a...)
	bs := append([]int(nil), b...)
	sort.Ints(as)
	sort.Ints(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// Fields renders the Plan for the writer.
func (p *Plan) Fields() object.Map {
	codes := make(object.List, len(p.successCodes))
	for i, c := range p.successCodes {
		codes[i] = object.Int(c)
	}
	slots := make(object.List, len(p.slots))
	for i, s := range p.slots {
		slots[i] = object.Map{
			"kind":     object.String(s.Kind.String()),
			"path":     object.String(s.Path),
			"prefix":   object.String(s.Prefix),
			"position": object.Int(s.Position),
		}
	}
	fields := object.Map{
		"command":       object.String(p.command),
		"success_codes": codes,
		"slots":         slots,
		"created_at":    object.String(p.createdAt.Format(time.RFC3339Nano)),
	}
	if p.Invalidated() {
		fields["invalidated_at"] = object.String(p.invalidatedAt.Format(time.RFC3339Nano))
	}
	return fields
}

// SetFields restores the Plan from a record payload. Unknown fields are
// ignored.
func (p *Plan) SetFields(fields object.Map, _ object.Resolver) error {
	p.command = fields.GetString("command")

	p.successCodes = nil
	for _, v := range fields.GetList("success_codes") {
		if n, ok := v.(object.Int); ok {
			p.successCodes = append(p.successCodes, int(n))
		}
	}

	p.slots = nil
	for i, v := range fields.GetList("slots") {
		m, ok := v.(object.Map)
		if !ok {
			return fmt.Errorf("model: plan slot %d is not a map", i)
		}
		kind, err := slotKindFromString(m.GetString("kind"))
		if err != nil {
			return fmt.Errorf("model: plan slot %d: %w", i, err)
		}
		p.slots = append(p.slots, Slot{
			Kind:     kind,
			Path:     m.GetString("path"),
			Prefix:   m.GetString("prefix"),
			Position: int(m.GetInt("position")),
		})
	}

	var err error
	if p.createdAt, err = parseTime(fields.GetString("created_at")); err != nil {
		return fmt.Errorf("model: plan created_at: %w", err)
	}
	if raw := fields.GetString("invalidated_at"); raw != "" {
		if p.invalidatedAt, err = parseTime(raw); err != nil {
			return fmt.Errorf("model: plan invalidated_at: %w", err)
		}
	}
	return nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
