package model_test

import (
	"testing"

	"github.com/openledger/statetable/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryFieldOrder(t *testing.T) {
	e := model.NewEntry()
	e.SetField("b", "2")
	e.SetField("a", "1")
	e.SetField("c", "3")

	// Overwriting keeps the original position
	e.SetField("b", "20")

	fields := e.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "b", fields[0].Name)
	assert.Equal(t, "20", fields[0].Value)
	assert.Equal(t, "a", fields[1].Name)
	assert.Equal(t, "c", fields[2].Name)
}

func TestEntryGetField(t *testing.T) {
	e := model.NewEntry()
	e.SetField("name", "x")

	assert.Equal(t, "x", e.GetField("name"))
	assert.Equal(t, "", e.GetField("missing"))
	assert.True(t, e.HasField("name"))
	assert.False(t, e.HasField("missing"))
}

func TestEntryDirtyTracking(t *testing.T) {
	e := model.NewEntry()
	assert.False(t, e.Dirty())

	e.SetField("name", "x")
	assert.True(t, e.Dirty())

	e2 := model.NewEntry()
	e2.SetStatus(model.StatusDeleted)
	assert.True(t, e2.Dirty())
	assert.Equal(t, model.StatusDeleted, e2.Status())
}

func TestEntryClone(t *testing.T) {
	e := model.NewEntry()
	e.SetField("name", "x")
	e.SetStatus(model.StatusDeleted)

	c := e.Clone()
	assert.False(t, c.Dirty(), "a clone starts clean")
	assert.Equal(t, "x", c.GetField("name"))
	assert.Equal(t, model.StatusDeleted, c.Status())

	c.SetField("name", "y")
	assert.Equal(t, "x", e.GetField("name"), "mutating the clone must not touch the original")
}

func TestEntriesAppendAndRemove(t *testing.T) {
	es := model.NewEntries()
	assert.Equal(t, 0, es.Size())
	assert.False(t, es.Dirty())

	a := model.NewEntry()
	b := model.NewEntry()
	es.AddEntry(a)
	es.AddEntry(b)

	assert.Equal(t, 2, es.Size())
	assert.True(t, es.Dirty())
	assert.Same(t, a, es.Get(0))
	assert.Same(t, b, es.Get(1))

	es.RemoveEntry(1)
	assert.Equal(t, 1, es.Size())
	assert.Same(t, a, es.Get(0))
}

func TestEntriesDirtyFlag(t *testing.T) {
	es := model.NewEntries()
	es.AddEntry(model.NewEntry())
	es.SetDirty(false)
	assert.False(t, es.Dirty())
	es.SetDirty(true)
	assert.True(t, es.Dirty())
}

func TestEntriesClone(t *testing.T) {
	es := model.NewEntries()
	e := model.NewEntry()
	e.SetField("name", "x")
	es.AddEntry(e)

	c := es.Clone()
	assert.False(t, c.Dirty())
	require.Equal(t, 1, c.Size())
	assert.NotSame(t, es.Get(0), c.Get(0))
	assert.Equal(t, "x", c.Get(0).GetField("name"))
}

func TestConditionBuilder(t *testing.T) {
	c := model.NewCondition().EQ("a", "1").GT("b", "2")

	conds := c.Conditions()
	require.Len(t, conds, 2)
	assert.Equal(t, model.OpEQ, conds[0].Op)
	assert.Equal(t, "a", conds[0].Field)
	assert.Equal(t, model.OpGT, conds[1].Op)
	assert.False(t, c.Empty())
	assert.True(t, model.NewCondition().Empty())
}

func TestDigest(t *testing.T) {
	var d model.Digest
	assert.True(t, d.IsZero())
	assert.Equal(t, 64, len(d.Hex()))

	d[0] = 1
	assert.False(t, d.IsZero())
}
