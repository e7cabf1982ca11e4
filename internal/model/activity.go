package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/strata/internal/object"
	"github.com/roach88/strata/internal/oid"
)

// Usage records one path a Plan execution consumed, with the checksum the
// path had at execution time.
type Usage struct {
	Path     string
	Checksum string
}

// Generation records one path a Plan execution produced, with the checksum
// of the produced content.
type Generation struct {
	Path     string
	Checksum string
}

// Activity is one concrete, timestamped execution of a Plan. Activities are
// append-only: they are never mutated after commit, only superseded by later
// executions with a higher order.
type Activity struct {
	object.Persistent

	planID      oid.OID
	token       string
	order       int64
	usages      []Usage
	generations []Generation
	startedAt   time.Time
	endedAt     time.Time

	// Produced artifacts. Freshly recorded activities hold instances so
	// the writer persists them through the activity's closure; reloaded
	// activities hold only identifiers.
	entities  []*Entity
	entityIDs []oid.OID
}

// NewActivity records an execution of the Plan identified by planID.
// Order is assigned later by the provenance graph at insertion; the token
// is a v7 UUID so activities sort roughly by creation time even before
// ordering.
func NewActivity(planID oid.OID, usages []Usage, generations []Generation, started, ended time.Time) *Activity {
	return &Activity{
		planID:      planID,
		token:       uuid.Must(uuid.NewV7()).String(),
		order:       -1,
		usages:      append([]Usage(nil), usages...),
		generations: append([]Generation(nil), generations...),
		startedAt:   started.UTC(),
		endedAt:     ended.UTC(),
	}
}

func (a *Activity) TypeName() string { return TypeActivity }

// PlanID returns the executed Plan's identifier. The Plan itself is
// resolved through the database on demand; activities hold no owning
// pointer to it.
func (a *Activity) PlanID() oid.OID { return a.planID }

func (a *Activity) Token() string { return a.token }

// Order returns the insertion order assigned by the provenance graph,
// or -1 before insertion.
func (a *Activity) Order() int64 { return a.order }

// SetOrder assigns the provenance order. Called exactly once, by the
// provenance graph; reassignment panics because order values are never
// reused or reassigned.
func (a *Activity) SetOrder(order int64) {
	if a.order >= 0 {
		panic(fmt.Sprintf("model: activity %s order reassigned", a.token))
	}
	a.order = order
}

// AttachEntities links the artifacts this execution produced. Attached
// entities are serialized alongside the activity at commit.
func (a *Activity) AttachEntities(entities ...*Entity) {
	a.entities = append(a.entities, entities...)
	for _, e := range entities {
		a.entityIDs = append(a.entityIDs, e.OID())
	}
	a.MarkModified()
}

// EntityIDs returns the identifiers of the produced artifacts.
func (a *Activity) EntityIDs() []oid.OID { return append([]oid.OID(nil), a.entityIDs...) }

func (a *Activity) Usages() []Usage           { return append([]Usage(nil), a.usages...) }
func (a *Activity) Generations() []Generation { return append([]Generation(nil), a.generations...) }
func (a *Activity) StartedAt() time.Time      { return a.startedAt }
func (a *Activity) EndedAt() time.Time        { return a.endedAt }

func (a *Activity) Fields() object.Map {
	usages := make(object.List, len(a.usages))
	for i, u := range a.usages {
		usages[i] = object.Map{
			"path":     object.String(u.Path),
			"checksum": object.String(u.Checksum),
		}
	}
	generations := make(object.List, len(a.generations))
	for i, g := range a.generations {
		generations[i] = object.Map{
			"path":     object.String(g.Path),
			"checksum": object.String(g.Checksum),
		}
	}
	fields := object.Map{
		"plan":        object.Ref{Type: TypePlan, OID: a.planID},
		"token":       object.String(a.token),
		"order":       object.Int(a.order),
		"usages":      usages,
		"generations": generations,
		"started_at":  object.String(a.startedAt.Format(time.RFC3339Nano)),
		"ended_at":    object.String(a.endedAt.Format(time.RFC3339Nano)),
	}
	if len(a.entities) > 0 {
		entities := make(object.List, len(a.entities))
		for i, e := range a.entities {
			entities[i] = object.Child{Object: e}
		}
		fields["entities"] = entities
	} else if len(a.entityIDs) > 0 {
		entities := make(object.List, len(a.entityIDs))
		for i, id := range a.entityIDs {
			entities[i] = object.Ref{Type: TypeEntity, OID: id}
		}
		fields["entities"] = entities
	}
	return fields
}

func (a *Activity) SetFields(fields object.Map, _ object.Resolver) error {
	ref := fields.GetRef("plan")
	if ref.OID.IsEmpty() {
		return fmt.Errorf("model: activity without plan reference")
	}
	a.planID = ref.OID
	a.token = fields.GetString("token")
	a.order = fields.GetInt("order")

	a.usages = nil
	for _, v := range fields.GetList("usages") {
		if m, ok := v.(object.Map); ok {
			a.usages = append(a.usages, Usage{
				Path:     m.GetString("path"),
				Checksum: m.GetString("checksum"),
			})
		}
	}
	a.generations = nil
	for _, v := range fields.GetList("generations") {
		if m, ok := v.(object.Map); ok {
			a.generations = append(a.generations, Generation{
				Path:     m.GetString("path"),
				Checksum: m.GetString("checksum"),
			})
		}
	}

	a.entities = nil
	a.entityIDs = nil
	for _, v := range fields.GetList("entities") {
		if ref, ok := v.(object.Ref); ok {
			a.entityIDs = append(a.entityIDs, ref.OID)
		}
	}

	var err error
	if a.startedAt, err = parseTime(fields.GetString("started_at")); err != nil {
		return fmt.Errorf("model: activity started_at: %w", err)
	}
	if a.endedAt, err = parseTime(fields.GetString("ended_at")); err != nil {
		return fmt.Errorf("model: activity ended_at: %w", err)
	}
	return nil
}
