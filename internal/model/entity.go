package model

import (
	"time"

	"github.com/roach88/strata/internal/object"
	"github.com/roach88/strata/internal/oid"
)

// DomainEntity is the oid derivation domain for entities. The version
// suffix enables future algorithm migration.
const DomainEntity = "strata/entity/v1"

// Entity is a tracked artifact: a path at a particular content checksum.
// Entities have natural semantic identity — the same (path, checksum) pair
// always maps to the same oid — so re-recording a generation is a no-op at
// the storage layer.
type Entity struct {
	object.Persistent

	path      string
	checksum  string
	createdAt time.Time
}

// NewEntity builds an Entity for a produced artifact. The oid is derived
// from the (path, checksum) identity at construction.
func NewEntity(path, checksum string) *Entity {
	e := &Entity{
		path:      path,
		checksum:  checksum,
		createdAt: time.Now().UTC(),
	}
	e.SetOID(oid.FromSemantic(DomainEntity, path+"\x00"+checksum))
	return e
}

func (e *Entity) TypeName() string { return TypeEntity }

func (e *Entity) Path() string         { return e.path }
func (e *Entity) Checksum() string     { return e.checksum }
func (e *Entity) CreatedAt() time.Time { return e.createdAt }

func (e *Entity) Fields() object.Map {
	return object.Map{
		"path":       object.String(e.path),
		"checksum":   object.String(e.checksum),
		"created_at": object.String(e.createdAt.Format(time.RFC3339Nano)),
	}
}

func (e *Entity) SetFields(fields object.Map, _ object.Resolver) error {
	e.path = fields.GetString("path")
	e.checksum = fields.GetString("checksum")
	var err error
	e.createdAt, err = parseTime(fields.GetString("created_at"))
	return err
}
