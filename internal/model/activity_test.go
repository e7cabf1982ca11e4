package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/oid"
)

func TestNewActivity(t *testing.T) {
	planID := oid.Random()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ended := started.Add(2 * time.Second)

	a := NewActivity(planID,
		[]Usage{{Path: "out1", Checksum: "abc"}},
		[]Generation{{Path: "out2", Checksum: "def"}},
		started, ended)

	assert.Equal(t, planID, a.PlanID())
	assert.Equal(t, int64(-1), a.Order(), "order is unassigned until provenance insertion")
	assert.NotEmpty(t, a.Token())
	assert.Equal(t, started, a.StartedAt())
	assert.Equal(t, ended, a.EndedAt())
}

func TestActivity_TokensDistinct(t *testing.T) {
	a := NewActivity(oid.Random(), nil, nil, time.Now(), time.Now())
	b := NewActivity(oid.Random(), nil, nil, time.Now(), time.Now())
	assert.NotEqual(t, a.Token(), b.Token())
}

func TestActivity_SetOrderOnce(t *testing.T) {
	a := NewActivity(oid.Random(), nil, nil, time.Now(), time.Now())
	a.SetOrder(7)
	assert.Equal(t, int64(7), a.Order())

	assert.Panics(t, func() { a.SetOrder(8) }, "order values are never reassigned")
}

func TestActivity_FieldsRoundTrip(t *testing.T) {
	planID := oid.Random()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewActivity(planID,
		[]Usage{{Path: "data/in.csv", Checksum: "c1"}},
		[]Generation{{Path: "data/out.csv", Checksum: "c2"}},
		started, started.Add(time.Second))
	a.SetOrder(3)

	var restored Activity
	require.NoError(t, restored.SetFields(a.Fields(), nil))

	assert.Equal(t, planID, restored.PlanID())
	assert.Equal(t, a.Token(), restored.Token())
	assert.Equal(t, int64(3), restored.Order())
	assert.Equal(t, a.Usages(), restored.Usages())
	assert.Equal(t, a.Generations(), restored.Generations())
	assert.Equal(t, a.StartedAt(), restored.StartedAt())
	assert.Equal(t, a.EndedAt(), restored.EndedAt())
}

func TestActivity_SetFieldsRequiresPlanRef(t *testing.T) {
	var a Activity
	err := a.SetFields(nil, nil)
	require.Error(t, err, "an activity without a plan reference is corrupt")
}

func TestEntity_DeterministicIdentity(t *testing.T) {
	a := NewEntity("data/out.csv", "c2")
	b := NewEntity("data/out.csv", "c2")
	assert.Equal(t, a.OID(), b.OID(), "same (path, checksum) must share identity")

	c := NewEntity("data/out.csv", "c3")
	assert.NotEqual(t, a.OID(), c.OID())
}

func TestEntity_FieldsRoundTrip(t *testing.T) {
	e := NewEntity("data/out.csv", "c2")

	var restored Entity
	require.NoError(t, restored.SetFields(e.Fields(), nil))
	assert.Equal(t, e.Path(), restored.Path())
	assert.Equal(t, e.Checksum(), restored.Checksum())
	assert.Equal(t, e.CreatedAt(), restored.CreatedAt())
}
