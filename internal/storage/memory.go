package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/strata/internal/oid"
)

// Memory is an in-process Store used by tests and throwaway repositories.
type Memory struct {
	mu      sync.RWMutex
	records map[oid.OID][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[oid.OID][]byte)}
}

// Put stores a copy of data under the identifier.
func (m *Memory) Put(_ context.Context, id oid.OID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.records[id] = buf
	return nil
}

// Get returns a copy of the last-stored bytes for the identifier.
func (m *Memory) Get(_ context.Context, id oid.OID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Has reports whether a record exists for the identifier.
func (m *Memory) Has(_ context.Context, id oid.OID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id]
	return ok, nil
}

// Len returns the number of stored records. Used by tests.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
