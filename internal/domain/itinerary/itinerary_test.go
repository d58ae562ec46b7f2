package itinerary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/internal/domain/terrain"
)

func TestNew_IsNoneAndHasEnded(t *testing.T) {
	it := New()
	require.Equal(t, StateNone, it.State())
	require.True(t, it.HasEnded(simtime.FromTick(0)))
}

func TestSetSimple_ConsumesLocalPathGreedily(t *testing.T) {
	it := New()
	it.SetSimple(geom.NewVec2(10, 0), []geom.Vec3{
		geom.NewVec3(0, 0, 0), geom.NewVec3(5, 0, 0), geom.NewVec3(10, 0, 0),
	})
	require.Equal(t, StateSimple, it.State())
	require.False(t, it.HasEnded(simtime.FromTick(0)))

	m := mapmodel.NewMap(terrain.NewHeightmap())
	pos := it.Update(geom.NewVec2(0, 0), 3, 0, m)
	require.InDelta(t, 3, pos.X, 1e-9)
	require.False(t, it.HasEnded(simtime.FromTick(0)))

	pos = it.Update(pos, 100, 0, m)
	require.InDelta(t, 10, pos.X, 1e-9)
	require.True(t, it.HasEnded(simtime.FromTick(0)))
}

func TestSetWaitUntil_EndsOnlyAfterTime(t *testing.T) {
	it := New()
	it.SetWaitUntil(simtime.FromTick(100))
	require.False(t, it.HasEnded(simtime.FromTick(0)))
	require.True(t, it.HasEnded(simtime.FromTick(200)))
}

func TestWaitForReroute_CooldownThenReady(t *testing.T) {
	it := New()
	it.SetWaitForReroute(0, geom.NewVec2(1, 1))
	_, _, ready := it.RerouteReady()
	require.False(t, ready)

	m := mapmodel.NewMap(terrain.NewHeightmap())
	for i := 0; i < rerouteCooldownTicks; i++ {
		it.Update(geom.Vec2{}, 1, simtime.Tick(i), m)
	}
	_, dest, ready := it.RerouteReady()
	require.True(t, ready)
	require.Equal(t, geom.NewVec2(1, 1), dest)
}
