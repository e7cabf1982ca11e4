package db

import (
	"github.com/roach88/strata/internal/object"
	"github.com/roach88/strata/internal/oid"
)

// TypeCatalog is the type tag of the root catalog record.
const TypeCatalog = "Catalog"

const domainCatalog = "strata/catalog/v1"

// catalogOID is deterministic so every process opening the same store finds
// the catalog without a bootstrap pointer.
var catalogOID = oid.FromSemantic(domainCatalog, "root")

// rootTypes is the closed set of type names the catalog indexes. Matches
// the model package's type tags; objects of any other type are reachable
// only through references.
var rootTypes = map[string]bool{
	"Plan":     true,
	"Entity":   true,
	"Activity": true,
}

func init() {
	object.RegisterType(TypeCatalog, func() object.Object { return newCatalog() })
}

// catalog is the database's root object: for each root type, the ordered
// collection of oids of that type ever committed. The catalog owns no
// instances; the database cache does.
type catalog struct {
	object.Persistent

	order map[string][]oid.OID
	seen  map[string]map[oid.OID]bool
}

func newCatalog() *catalog {
	return &catalog{
		order: make(map[string][]oid.OID),
		seen:  make(map[string]map[oid.OID]bool),
	}
}

func (c *catalog) TypeName() string { return TypeCatalog }

// ensure registers an oid under a root type, keeping insertion order.
// Returns true when the entry is new.
func (c *catalog) ensure(typeName string, id oid.OID) bool {
	if c.seen[typeName] == nil {
		c.seen[typeName] = make(map[oid.OID]bool)
	}
	if c.seen[typeName][id] {
		return false
	}
	c.seen[typeName][id] = true
	c.order[typeName] = append(c.order[typeName], id)
	c.MarkModified()
	return true
}

// oids returns the ordered identifiers registered under a root type.
func (c *catalog) oids(typeName string) []oid.OID {
	return append([]oid.OID(nil), c.order[typeName]...)
}

func (c *catalog) Fields() object.Map {
	roots := make(object.Map, len(c.order))
	for typeName, ids := range c.order {
		list := make(object.List, len(ids))
		for i, id := range ids {
			list[i] = object.Ref{Type: typeName, OID: id}
		}
		roots[typeName] = list
	}
	return object.Map{"roots": roots}
}

func (c *catalog) SetFields(fields object.Map, r object.Resolver) error {
	c.order = make(map[string][]oid.OID)
	c.seen = make(map[string]map[oid.OID]bool)
	for typeName, v := range fields.GetMap("roots") {
		list, ok := v.(object.List)
		if !ok {
			continue
		}
		for _, elem := range list {
			ref, ok := elem.(object.Ref)
			if !ok {
				continue
			}
			// Pre-allocate a ghost so the catalog's mapping of oid to
			// object is backed by a live cache entry from the start.
			if r != nil {
				if _, err := r.Resolve(ref.Type, ref.OID); err != nil {
					return err
				}
			}
			if c.seen[typeName] == nil {
				c.seen[typeName] = make(map[oid.OID]bool)
			}
			if !c.seen[typeName][ref.OID] {
				c.seen[typeName][ref.OID] = true
				c.order[typeName] = append(c.order[typeName], ref.OID)
			}
		}
	}
	return nil
}
