// Package storage provides the flat, durable key→record mapping underneath
// the object database: one opaque record per object identifier, no schema
// awareness, no knowledge of types or references.
package storage

import (
	"context"
	"errors"

	"github.com/roach88/strata/internal/oid"
)

// ErrNotFound is returned by Get for an identifier with no stored record.
var ErrNotFound = errors.New("storage: record not found")

// Store is the persistence contract. Put durably persists data keyed by the
// identifier, overwriting any prior record; no torn write is ever visible —
// a reader sees either the old record or the new one. Get returns the last
// stored bytes or ErrNotFound. Has is side-effect-free.
type Store interface {
	Put(ctx context.Context, id oid.OID, data []byte) error
	Get(ctx context.Context, id oid.OID) ([]byte, error)
	Has(ctx context.Context, id oid.OID) (bool, error)
}
