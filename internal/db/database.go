// Package db implements the persistent object database: identity
// allocation, multi-tier caching, ghost loading, and transactional commit
// over a flat record store.
//
// One Database corresponds to one open repository. The Database is the
// sole owner of every cached object reachable from the root catalog; other
// components hold oids and resolve them on demand through Get. Callers are
// expected to hold a repository-level exclusive lock around any sequence
// of Add/Get/Commit calls; the database itself performs no locking.
package db

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/strata/internal/object"
	"github.com/roach88/strata/internal/oid"
	"github.com/roach88/strata/internal/storage"
)

var (
	// ErrAlreadyOwned is returned by Add for an object that already
	// belongs to a database.
	ErrAlreadyOwned = errors.New("db: object already owned by a database")

	// ErrDuplicateIdentifier is returned when two distinct objects
	// resolve to the same oid unexpectedly.
	ErrDuplicateIdentifier = errors.New("db: duplicate object identifier")
)

// Database owns the live object graph for one repository.
type Database struct {
	store storage.Store
	log   *zap.Logger

	// Lookup tiers, consulted in order: the live cache of loaded and
	// ghost objects, the pending-add set of objects not yet committed,
	// and the pre-cache serving reentrant lookups while a load is in
	// progress.
	cache    map[oid.OID]object.Object
	pending  map[oid.OID]object.Object
	precache map[oid.OID]object.Object

	dirty   []object.Object
	catalog *catalog
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Database) { d.log = log }
}

// Open loads the root catalog from the store, creating a fresh one for an
// empty repository.
func Open(ctx context.Context, store storage.Store, opts ...Option) (*Database, error) {
	d := &Database{
		store:    store,
		log:      zap.NewNop(),
		cache:    make(map[oid.OID]object.Object),
		pending:  make(map[oid.OID]object.Object),
		precache: make(map[oid.OID]object.Object),
	}
	for _, opt := range opts {
		opt(d)
	}

	data, err := store.Get(ctx, catalogOID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		d.catalog = newCatalog()
		d.catalog.SetOID(catalogOID)
		d.catalog.Bind(d, nil)
		d.log.Debug("opened empty repository")
	case err != nil:
		return nil, fmt.Errorf("db: load catalog: %w", err)
	default:
		rec, err := object.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("db: decode catalog: %w", err)
		}
		c := newCatalog()
		c.SetOID(catalogOID)
		c.Bind(d, nil)
		if err := c.SetFields(rec.Payload, d); err != nil {
			return nil, fmt.Errorf("db: restore catalog: %w", err)
		}
		c.SetState(object.StateUpToDate)
		d.catalog = c
		d.log.Debug("opened repository",
			zap.Int("plans", len(c.oids("Plan"))),
			zap.Int("activities", len(c.oids("Activity"))),
			zap.Int("entities", len(c.oids("Entity"))))
	}
	return d, nil
}

// Add takes ownership of a new object. The object must not already belong
// to a database; an object without an oid gets a random one. The object
// stays in the pending set, durable only at the next Commit.
func (d *Database) Add(obj object.Object) error {
	if obj.Owner() != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyOwned, obj.TypeName())
	}
	if obj.OID().IsEmpty() {
		obj.SetOID(oid.Random())
	}
	if existing := d.lookup(obj.OID()); existing != nil && existing != obj {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateIdentifier, obj.TypeName(), obj.OID())
	}

	obj.SetState(object.StateNew)
	obj.Bind(d, func() { d.dirty = append(d.dirty, obj) })
	d.pending[obj.OID()] = obj
	d.dirty = append(d.dirty, obj)
	return nil
}

// Get returns the object named by id, loading it from storage on a cache
// miss and realizing ghost state on first access. Two Gets for the same id
// return the same instance.
func (d *Database) Get(ctx context.Context, id oid.OID) (object.Object, error) {
	if obj := d.lookup(id); obj != nil {
		if obj.State() == object.StateGhost {
			if err := d.materialize(ctx, obj); err != nil {
				return nil, err
			}
		}
		return obj, nil
	}

	rec, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	obj, err := object.New(rec.Type)
	if err != nil {
		return nil, fmt.Errorf("db: record %s: %w", id, err)
	}
	obj.SetOID(id)
	obj.Bind(d, func() { d.dirty = append(d.dirty, obj) })
	if err := d.realize(obj, rec); err != nil {
		return nil, err
	}
	d.cache[id] = obj
	return obj, nil
}

// Has reports whether the identifier names a cached, pending, or stored
// object.
func (d *Database) Has(ctx context.Context, id oid.OID) (bool, error) {
	if d.lookup(id) != nil {
		return true, nil
	}
	return d.store.Has(ctx, id)
}

// Roots returns the ordered oids committed under a root catalog type.
func (d *Database) Roots(typeName string) []oid.OID {
	return d.catalog.oids(typeName)
}

// Resolve implements object.Resolver. A reference stub resolves to the
// cached instance when one exists; otherwise a ghost of the referenced type
// is allocated immediately — giving circular references something to point
// at — and its state is loaded on first access through Get.
func (d *Database) Resolve(typeName string, id oid.OID) (object.Object, error) {
	if obj := d.lookup(id); obj != nil {
		return obj, nil
	}
	obj, err := object.New(typeName)
	if err != nil {
		return nil, fmt.Errorf("db: reference %s: %w", id, err)
	}
	obj.SetOID(id)
	obj.SetState(object.StateGhost)
	obj.Bind(d, func() { d.dirty = append(d.dirty, obj) })
	d.cache[id] = obj
	return obj, nil
}

// Commit writes every dirty object, and the closure of dirty objects each
// one reaches, to storage. Root-type objects are registered in the catalog
// first. If any store write fails the dirty list is left untouched, so a
// retry resumes where the failure happened; record writes are idempotent
// overwrites by oid, making the retry safe.
func (d *Database) Commit(ctx context.Context) error {
	written := 0

	for i := 0; i < len(d.dirty); i++ {
		obj := d.dirty[i]
		if !isDirty(obj) {
			continue // clean objects are skipped
		}
		n, err := d.flush(ctx, obj)
		if err != nil {
			return err
		}
		written += n
	}

	if isDirty(d.catalog) {
		n, err := d.flush(ctx, d.catalog)
		if err != nil {
			return err
		}
		written += n
	}

	for id, obj := range d.pending {
		d.cache[id] = obj
	}
	clear(d.pending)
	d.dirty = d.dirty[:0]

	if written > 0 {
		d.log.Debug("committed", zap.Int("records", written))
	}
	return nil
}

// flush serializes one object's dirty closure and stores every produced
// record, flipping each written object to up-to-date. Root-type objects in
// the closure are registered in the catalog, so nested objects written
// through a parent are indexed the same as directly added ones.
func (d *Database) flush(ctx context.Context, root object.Object) (int, error) {
	entries, err := serialize(root)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if rootTypes[e.rec.Type] {
			d.catalog.ensure(e.rec.Type, e.rec.OID)
		}
		data, err := e.rec.Encode()
		if err != nil {
			return i, err
		}
		if err := d.store.Put(ctx, e.rec.OID, data); err != nil {
			return i, fmt.Errorf("db: commit %s/%s: %w", e.rec.Type, e.rec.OID, err)
		}
		e.obj.SetState(object.StateUpToDate)
	}
	return len(entries), nil
}

// lookup consults the cache tiers in order: live cache, pending-add set,
// pre-cache.
func (d *Database) lookup(id oid.OID) object.Object {
	if obj, ok := d.cache[id]; ok {
		return obj
	}
	if obj, ok := d.pending[id]; ok {
		return obj
	}
	if obj, ok := d.precache[id]; ok {
		return obj
	}
	return nil
}

func (d *Database) load(ctx context.Context, id oid.OID) (object.Record, error) {
	data, err := d.store.Get(ctx, id)
	if err != nil {
		return object.Record{}, fmt.Errorf("db: %w", err)
	}
	rec, err := object.Decode(data)
	if err != nil {
		return object.Record{}, fmt.Errorf("db: record %s: %w", id, err)
	}
	if rec.OID != id {
		return object.Record{}, fmt.Errorf("%w: record for %s carries oid %s", ErrDuplicateIdentifier, id, rec.OID)
	}
	return rec, nil
}

// materialize loads a ghost's field state in place.
func (d *Database) materialize(ctx context.Context, obj object.Object) error {
	rec, err := d.load(ctx, obj.OID())
	if err != nil {
		return err
	}
	if rec.Type != obj.TypeName() {
		return fmt.Errorf("db: record %s has type %s, reference expected %s", obj.OID(), rec.Type, obj.TypeName())
	}
	return d.realize(obj, rec)
}

// realize applies a record's payload to an instance. The instance sits in
// the pre-cache for the duration: an object whose state transitively
// references itself resolves to the partially-constructed instance instead
// of recursing forever.
func (d *Database) realize(obj object.Object, rec object.Record) error {
	id := obj.OID()
	d.precache[id] = obj
	defer delete(d.precache, id)

	if err := obj.SetFields(rec.Payload, d); err != nil {
		return fmt.Errorf("db: restore %s/%s: %w", rec.Type, id, err)
	}
	obj.SetState(object.StateUpToDate)
	return nil
}

func isDirty(obj object.Object) bool {
	s := obj.State()
	return s == object.StateNew || s == object.StateModified
}
