package slotmap

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/require"
)

type widgetTag struct{}

func TestArena_InsertGetRemoveRecyclesGeneration(t *testing.T) {
	a := NewArena[widgetTag, string]()

	id1 := a.Insert("first")
	v, ok := a.Get(id1)
	require.True(t, ok)
	require.Equal(t, "first", *v)

	require.True(t, a.Remove(id1))
	_, ok = a.Get(id1)
	require.False(t, ok, "stale ID must not resolve after removal")

	id2 := a.Insert("second")
	require.Equal(t, id1.Index(), id2.Index(), "slot is recycled")
	require.NotEqual(t, id1.Gen(), id2.Gen(), "generation bumps on reuse")

	_, ok = a.Get(id1)
	require.False(t, ok, "old ID still stale even after the slot is reused")
}

func TestArena_EachVisitsOnlyLiveSlotsInIndexOrder(t *testing.T) {
	a := NewArena[widgetTag, int]()
	id1 := a.Insert(1)
	a.Insert(2)
	id3 := a.Insert(3)
	a.Remove(id1)

	var seen []int
	a.Each(func(id ID[widgetTag], v *int) { seen = append(seen, *v) })
	require.Equal(t, []int{2, 3}, seen)
	require.Equal(t, uint32(2), id3.Index())
}

func TestArena_ExportImportRoundTripsIncludingDeadSlots(t *testing.T) {
	a := NewArena[widgetTag, string]()
	id1 := a.Insert("alive")
	id2 := a.Insert("dead")
	a.Remove(id2)

	snap := a.Export()
	require.Len(t, snap, 2)
	require.True(t, snap[0].Alive)
	require.False(t, snap[1].Alive)

	b := NewArena[widgetTag, string]()
	b.Import(snap)

	v, ok := b.Get(id1)
	require.True(t, ok)
	require.Equal(t, "alive", *v)

	_, ok = b.Get(id2)
	require.False(t, ok, "dead slot stays dead after import")

	id3 := b.Insert("reused")
	require.Equal(t, id2.Index(), id3.Index(), "import rebuilds the free list")
	require.Greater(t, id3.Gen(), id2.Gen())
}

func TestID_GobRoundTripPreservesUnexportedFields(t *testing.T) {
	want := NewID[widgetTag](7, 3)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(want))

	var got ID[widgetTag]
	require.NoError(t, gob.NewDecoder(&buf).Decode(&got))

	require.Equal(t, want.Index(), got.Index())
	require.Equal(t, want.Gen(), got.Gen())
}
