package graph

import (
	"context"
	"fmt"

	"github.com/roach88/strata/internal/model"
	"github.com/roach88/strata/internal/object"
	"github.com/roach88/strata/internal/oid"
)

// Provenance is the append-only, order-stamped log of Activities. Order
// values strictly increase with insertion and are never reassigned or
// reused; the latest order per Plan is the staleness baseline.
type Provenance struct {
	object.Persistent

	activityIDs []oid.OID
	seen        map[oid.OID]bool
	lastOrder   int64
}

// PlanUsage is one (plan, path, checksum) tuple from a Plan's latest
// execution: what the plan consumed, at the checksum it saw.
type PlanUsage struct {
	PlanID   oid.OID
	Path     string
	Checksum string
}

// NewProvenance returns the empty provenance graph for a repository, at
// its fixed identity.
func NewProvenance() *Provenance {
	p := &Provenance{seen: make(map[oid.OID]bool)}
	p.SetOID(ProvenanceOID)
	return p
}

func (p *Provenance) TypeName() string { return TypeProvenanceGraph }

// Len returns the number of recorded activities.
func (p *Provenance) Len() int { return len(p.activityIDs) }

// ActivityIDs returns the log's identifiers in insertion order.
func (p *Provenance) ActivityIDs() []oid.OID {
	return append([]oid.OID(nil), p.activityIDs...)
}

// Add appends activities to the log, assigning each the next order value.
// An activity whose identifier is already recorded is rejected with
// ErrDuplicateActivity; nothing from the batch before it is undone, since
// appends are independent.
func (p *Provenance) Add(activities ...*model.Activity) error {
	if p.seen == nil {
		p.seen = make(map[oid.OID]bool)
	}
	for _, a := range activities {
		if a.OID().IsEmpty() {
			return fmt.Errorf("graph: activity %s has no identity; add it to the database first", a.Token())
		}
		if p.seen[a.OID()] {
			return fmt.Errorf("%w: %s", ErrDuplicateActivity, a.OID())
		}
		p.lastOrder++
		a.SetOrder(p.lastOrder)
		p.seen[a.OID()] = true
		p.activityIDs = append(p.activityIDs, a.OID())
		p.MarkModified()
	}
	return nil
}

// Activities loads the full log in order.
func (p *Provenance) Activities(ctx context.Context, getter Getter) ([]*model.Activity, error) {
	out := make([]*model.Activity, 0, len(p.activityIDs))
	for _, id := range p.activityIDs {
		obj, err := getter.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("graph: load activity %s: %w", id, err)
		}
		act, ok := obj.(*model.Activity)
		if !ok {
			return nil, fmt.Errorf("graph: log entry %s is a %s, not an activity", id, obj.TypeName())
		}
		out = append(out, act)
	}
	return out, nil
}

// Latest returns the maximum-order Activity per Plan, with the plan ids
// in first-execution order.
func (p *Provenance) Latest(ctx context.Context, getter Getter) (map[oid.OID]*model.Activity, []oid.OID, error) {
	activities, err := p.Activities(ctx, getter)
	if err != nil {
		return nil, nil, err
	}

	latest := make(map[oid.OID]*model.Activity)
	var planOrder []oid.OID
	for _, act := range activities {
		prev, ok := latest[act.PlanID()]
		if !ok {
			planOrder = append(planOrder, act.PlanID())
			latest[act.PlanID()] = act
			continue
		}
		if act.Order() > prev.Order() {
			latest[act.PlanID()] = act
		}
	}
	return latest, planOrder, nil
}

// LatestUsages returns, for every Plan with at least one recorded
// execution, the usages of its maximum-order Activity. This is the
// baseline the current working tree is compared against to compute the
// modified and deleted input sets.
func (p *Provenance) LatestUsages(ctx context.Context, getter Getter) ([]PlanUsage, error) {
	latest, planOrder, err := p.Latest(ctx, getter)
	if err != nil {
		return nil, err
	}

	var out []PlanUsage
	for _, planID := range planOrder {
		for _, u := range latest[planID].Usages() {
			out = append(out, PlanUsage{PlanID: planID, Path: u.Path, Checksum: u.Checksum})
		}
	}
	return out, nil
}

func (p *Provenance) Fields() object.Map {
	activities := make(object.List, len(p.activityIDs))
	for i, id := range p.activityIDs {
		activities[i] = object.Ref{Type: model.TypeActivity, OID: id}
	}
	return object.Map{
		"activities": activities,
		"last_order": object.Int(p.lastOrder),
	}
}

func (p *Provenance) SetFields(fields object.Map, r object.Resolver) error {
	p.activityIDs = nil
	p.seen = make(map[oid.OID]bool)
	for _, v := range fields.GetList("activities") {
		ref, ok := v.(object.Ref)
		if !ok {
			continue
		}
		if r != nil {
			if _, err := r.Resolve(ref.Type, ref.OID); err != nil {
				return err
			}
		}
		p.activityIDs = append(p.activityIDs, ref.OID)
		p.seen[ref.OID] = true
	}
	p.lastOrder = fields.GetInt("last_order")
	return nil
}
