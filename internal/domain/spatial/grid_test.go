package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/geom"
)

// testOwner stands in for world.EntityRef; world imports spatial, so this
// test cannot import world.
type testOwner struct{ Index, Gen uint32 }

func ownerRef(i uint32) testOwner {
	return testOwner{Index: i, Gen: 1}
}

func TestGrid_InsertAndQueryAround(t *testing.T) {
	g := NewGrid[testOwner](10)
	h1 := g.Insert(geom.NewVec2(0, 0), ownerRef(1))
	h2 := g.Insert(geom.NewVec2(100, 100), ownerRef(2))
	require.NotEqual(t, h1, h2)

	results := g.QueryAround(geom.NewVec2(1, 1), 5)
	require.Len(t, results, 1)
	require.Equal(t, ownerRef(1), results[0].Owner)
}

func TestGrid_DeferredRemovalStableUntilMaintain(t *testing.T) {
	g := NewGrid[testOwner](10)
	h := g.Insert(geom.NewVec2(0, 0), ownerRef(1))

	_, ok := g.Remove(h)
	require.True(t, ok)

	// Query before Maintain still must not return the removed entry: the
	// contract only guarantees stability of the LIVE set between Maintain
	// calls, and removed entries are filtered at query time.
	results := g.QueryAround(geom.NewVec2(0, 0), 1)
	require.Empty(t, results)

	g.Maintain()
	require.Equal(t, 0, g.Len())
}

func TestGrid_SetPositionRelocatesOnMaintain(t *testing.T) {
	g := NewGrid[testOwner](10)
	h := g.Insert(geom.NewVec2(0, 0), ownerRef(1))
	require.True(t, g.SetPosition(h, geom.NewVec2(500, 500)))
	g.Maintain()

	require.Empty(t, g.QueryAround(geom.NewVec2(0, 0), 5))
	results := g.QueryAround(geom.NewVec2(500, 500), 5)
	require.Len(t, results, 1)
}

func TestGrid_RemoveMaintainIsEager(t *testing.T) {
	g := NewGrid[testOwner](10)
	h := g.Insert(geom.NewVec2(0, 0), ownerRef(1))
	owner, ok := g.RemoveMaintain(h)
	require.True(t, ok)
	require.Equal(t, ownerRef(1), owner)
	require.Equal(t, 0, g.Len())
}

func TestGrid_UnknownHandleIsNoOp(t *testing.T) {
	g := NewGrid[testOwner](10)
	_, ok := g.Remove(Handle(999))
	require.False(t, ok)
	require.False(t, g.SetPosition(Handle(999), geom.NewVec2(1, 1)))
}
