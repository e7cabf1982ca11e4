package object

import (
	"github.com/roach88/strata/internal/oid"
)

// Value is the closed set of payload value kinds a record can carry.
// Floats and nulls are excluded: every persisted field is a string, integer,
// bool, list, map, nested object, or reference.
type Value interface {
	isValue()
}

// String is a text payload value.
type String string

// Int is a 64-bit integer payload value.
type Int int64

// Bool is a boolean payload value.
type Bool bool

// List is an ordered payload collection.
type List []Value

// Map is a keyed payload collection. Key order is not significant; the
// record encoding canonicalizes it.
type Map map[string]Value

// Ref is a non-owning reference stub to another persistent object. In a
// durable record it appears as {"@type": T, "@oid": O, "@reference": true}
// and is resolved through the database cache on load, never re-deserialized
// inline.
type Ref struct {
	Type string
	OID  oid.OID
}

// Child wraps an in-memory nested persistent object. The writer replaces a
// Child with a Ref stub in the output record and schedules the child for its
// own serialization if it is not already durable and unchanged. Child never
// appears in a decoded payload; readers see Ref.
type Child struct {
	Object Object
}

func (String) isValue() {}
func (Int) isValue()    {}
func (Bool) isValue()   {}
func (List) isValue()   {}
func (Map) isValue()    {}
func (Ref) isValue()    {}
func (Child) isValue()  {}

// GetString reads a string field, returning the zero value when the key is
// absent or has a different kind. Lookup helpers keep SetFields
// implementations tolerant of unknown or reshaped fields.
func (m Map) GetString(key string) string {
	if v, ok := m[key].(String); ok {
		return string(v)
	}
	return ""
}

// GetInt reads an integer field, defaulting to zero.
func (m Map) GetInt(key string) int64 {
	if v, ok := m[key].(Int); ok {
		return int64(v)
	}
	return 0
}

// GetBool reads a boolean field, defaulting to false.
func (m Map) GetBool(key string) bool {
	if v, ok := m[key].(Bool); ok {
		return bool(v)
	}
	return false
}

// GetList reads a list field, defaulting to nil.
func (m Map) GetList(key string) List {
	if v, ok := m[key].(List); ok {
		return v
	}
	return nil
}

// GetMap reads a nested map field, defaulting to nil.
func (m Map) GetMap(key string) Map {
	if v, ok := m[key].(Map); ok {
		return v
	}
	return nil
}

// GetRef reads a reference field, defaulting to the zero Ref.
func (m Map) GetRef(key string) Ref {
	if v, ok := m[key].(Ref); ok {
		return v
	}
	return Ref{}
}
