// Package object defines the persistence contract shared by every stored
// domain type: the object state machine, the typed payload values exchanged
// with the writer/reader boundary, and the durable record encoding.
//
// Domain packages work with concrete typed structs; the generic field
// representation (Map/List/Ref values) appears only when an object crosses
// the serialization boundary.
package object

import "github.com/roach88/strata/internal/oid"

// State tracks where an object stands relative to its on-disk record.
type State uint8

const (
	// StateNew marks an object created in memory and never stored.
	// It is the zero value so freshly constructed objects need no setup.
	StateNew State = iota

	// StateUpToDate marks an object that matches its on-disk record.
	StateUpToDate

	// StateModified marks an object that diverges from its on-disk record.
	StateModified

	// StateGhost marks an object whose identity is known but whose field
	// state has not yet been loaded from storage.
	StateGhost
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateUpToDate:
		return "up-to-date"
	case StateModified:
		return "modified"
	case StateGhost:
		return "ghost"
	}
	return "unknown"
}

// Object is any domain value eligible for storage.
//
// Fields and SetFields are the writer/reader boundary: Fields renders the
// object's state as a typed payload, SetFields restores it from one.
// Implementations must ignore payload keys they do not recognize so that
// records written by newer object shapes still load.
type Object interface {
	OID() oid.OID
	SetOID(oid.OID)
	State() State
	SetState(State)
	TypeName() string
	Owner() any
	Bind(owner any, onModify func())
	Fields() Map
	SetFields(fields Map, r Resolver) error
}

// Resolver resolves a reference stub to an in-memory instance, reusing a
// cached instance when one exists for the identifier. It is implemented by
// the database and handed to SetFields during deserialization.
type Resolver interface {
	Resolve(typeName string, id oid.OID) (Object, error)
}

// Persistent carries identity, state, and ownership for a stored object.
// Domain types embed it and implement the rest of Object themselves.
type Persistent struct {
	id       oid.OID
	state    State
	owner    any
	onModify func()
}

// OID returns the object's identifier, or the empty OID before assignment.
func (p *Persistent) OID() oid.OID { return p.id }

// SetOID assigns the object's identifier. Once assigned an identifier never
// changes; reassignment to a different value panics.
func (p *Persistent) SetOID(id oid.OID) {
	if !p.id.IsEmpty() && p.id != id {
		panic("object: identifier reassignment for " + p.id.String())
	}
	p.id = id
}

// ReplaceOID discards the current identifier and assigns a fresh one.
// Only the dependency graph's collision handling uses this, before the
// object has ever been stored.
func (p *Persistent) ReplaceOID(id oid.OID) { p.id = id }

func (p *Persistent) State() State         { return p.state }
func (p *Persistent) SetState(s State)     { p.state = s }

// Owner returns the database the object belongs to, or nil if unowned.
func (p *Persistent) Owner() any { return p.owner }

// Bind records the owning database and the dirty-tracking hook invoked on
// the first mutation after a store.
func (p *Persistent) Bind(owner any, onModify func()) {
	p.owner = owner
	p.onModify = onModify
}

// MarkModified transitions the object out of the clean state after a
// mutation and notifies the owning database's dirty tracking.
func (p *Persistent) MarkModified() {
	switch p.state {
	case StateUpToDate, StateGhost:
		p.state = StateModified
		if p.onModify != nil {
			p.onModify()
		}
	}
	// StateNew and StateModified are already pending a write.
}
