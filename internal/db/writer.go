package db

import (
	"fmt"

	"github.com/roach88/strata/internal/object"
	"github.com/roach88/strata/internal/oid"
)

// writeEntry pairs a produced record with the object it came from, so the
// commit loop can flip the object's state once the record is stored.
type writeEntry struct {
	rec object.Record
	obj object.Object
}

// serialize converts the closure of dirty objects reachable from root into
// records. An explicit worklist, not recursion, walks the graph: nested
// persistent objects become reference stubs in their parent's payload, and
// a nested object is scheduled for its own serialization only while it is
// new or modified. An object already durable and unchanged is referenced,
// never re-walked — this breaks cycles and bounds the write set to the
// dirty closure, each object exactly once.
func serialize(root object.Object) ([]writeEntry, error) {
	stack := []object.Object{root}
	seen := make(map[oid.OID]bool)
	var out []writeEntry

	for len(stack) > 0 {
		obj := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if obj.OID().IsEmpty() {
			obj.SetOID(oid.Random())
		}
		if seen[obj.OID()] {
			continue
		}
		seen[obj.OID()] = true

		payload, children, err := stubFields(obj.Fields())
		if err != nil {
			return nil, fmt.Errorf("db: serialize %s/%s: %w", obj.TypeName(), obj.OID(), err)
		}
		out = append(out, writeEntry{
			rec: object.Record{Type: obj.TypeName(), OID: obj.OID(), Payload: payload},
			obj: obj,
		})

		for _, child := range children {
			if isDirty(child) && !seen[child.OID()] {
				stack = append(stack, child)
			}
		}
	}
	return out, nil
}

// stubFields rewrites a payload, replacing each nested object with a
// reference stub and collecting the nested objects for scheduling. Nested
// objects without an oid are assigned one here, before the stub is built.
func stubFields(fields object.Map) (object.Map, []object.Object, error) {
	var children []object.Object
	out := make(object.Map, len(fields))
	for k, v := range fields {
		sv, err := stubValue(v, &children)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = sv
	}
	return out, children, nil
}

func stubValue(v object.Value, children *[]object.Object) (object.Value, error) {
	switch val := v.(type) {
	case object.Child:
		child := val.Object
		if child == nil {
			return nil, fmt.Errorf("nil nested object")
		}
		if child.OID().IsEmpty() {
			child.SetOID(oid.Random())
		}
		*children = append(*children, child)
		return object.Ref{Type: child.TypeName(), OID: child.OID()}, nil
	case object.List:
		out := make(object.List, len(val))
		for i, elem := range val {
			sv, err := stubValue(elem, children)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = sv
		}
		return out, nil
	case object.Map:
		out := make(object.Map, len(val))
		for k, elem := range val {
			sv, err := stubValue(elem, children)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			out[k] = sv
		}
		return out, nil
	default:
		return v, nil
	}
}
