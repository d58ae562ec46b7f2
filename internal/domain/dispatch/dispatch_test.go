package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/terrain"
)

func drivingPattern() mapmodel.LanePattern {
	return mapmodel.LanePattern{
		Forward: []mapmodel.LaneSpec{{Kind: mapmodel.LaneDriving, Width: 3.5, SpeedLimit: 13.9, Control: mapmodel.ControlAlways}},
	}
}

func alwaysLive(RequesterRef) bool { return true }
func neverLive(RequesterRef) bool  { return false }

// chain builds a two-segment straight driving road A->B->C and returns
// the map plus the forward lanes of the A->B and B->C segments.
func chain(t *testing.T) (*mapmodel.Map, mapmodel.LaneID, mapmodel.LaneID) {
	t.Helper()
	m := mapmodel.NewMap(terrain.NewHeightmap())
	_, roadAB, err := m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(0, 0)), mapmodel.GroundProject(geom.NewVec2(50, 0)), nil, drivingPattern())
	require.NoError(t, err)
	interB, roadBC, err := m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(50, 0)), mapmodel.GroundProject(geom.NewVec2(100, 0)), nil, drivingPattern())
	require.NoError(t, err)

	inter, ok := m.Intersection(interB)
	require.True(t, ok)
	require.Len(t, inter.Roads(), 2)

	roadABObj, _ := m.Road(roadAB)
	roadBCObj, _ := m.Road(roadBC)
	laneAB := roadABObj.Forward()[0]
	laneBC := roadBCObj.Forward()[0]
	return m, laneAB, laneBC
}

func TestUpdateAndQuery_FindsUpstreamEntityViaBackwardBFS(t *testing.T) {
	m, laneAB, laneBC := chain(t)
	reg := NewRegistry()

	truck := EntityRef(7)
	reg.Update(m, KindSmallTruck, map[EntityRef]geom.Vec2{truck: geom.NewVec2(25, 0)}, alwaysLive)

	found, ok := reg.Query(m, RequesterRef(1), KindSmallTruck, LaneTarget(laneBC))
	require.True(t, ok)
	require.Equal(t, truck, found)
	_ = laneAB
}

func TestQuery_NoMatchReturnsFalse(t *testing.T) {
	m, _, laneBC := chain(t)
	reg := NewRegistry()
	_, ok := reg.Query(m, RequesterRef(1), KindFreightTrain, LaneTarget(laneBC))
	require.False(t, ok)
}

func TestQuery_ReservationBlocksOtherRequestersUntilFreed(t *testing.T) {
	m, _, laneBC := chain(t)
	reg := NewRegistry()
	truck := EntityRef(7)
	reg.Update(m, KindSmallTruck, map[EntityRef]geom.Vec2{truck: geom.NewVec2(25, 0)}, alwaysLive)

	first, ok := reg.Query(m, RequesterRef(1), KindSmallTruck, LaneTarget(laneBC))
	require.True(t, ok)
	require.Equal(t, truck, first)

	// Second requester's Update pass must not reassign the reserved truck
	// away from its indexed lane, and the only candidate is already taken.
	reg.Update(m, KindSmallTruck, map[EntityRef]geom.Vec2{truck: geom.NewVec2(26, 0)}, alwaysLive)
	_, ok = reg.Query(m, RequesterRef(2), KindSmallTruck, LaneTarget(laneBC))
	require.False(t, ok)

	reg.Free(KindSmallTruck, RequesterRef(1))
	second, ok := reg.Query(m, RequesterRef(2), KindSmallTruck, LaneTarget(laneBC))
	require.True(t, ok)
	require.Equal(t, truck, second)
}

func TestUpdate_SkipsReindexWhenReservedByLiveRequester(t *testing.T) {
	m, laneAB, _ := chain(t)
	reg := NewRegistry()
	truck := EntityRef(7)
	reg.Update(m, KindSmallTruck, map[EntityRef]geom.Vec2{truck: geom.NewVec2(25, 0)}, alwaysLive)
	reg.Query(m, RequesterRef(1), KindSmallTruck, LaneTarget(laneAB))

	// Even though the truck "moved" far away, a live reservation holder
	// means update() must not re-index it elsewhere.
	reg.Update(m, KindSmallTruck, map[EntityRef]geom.Vec2{truck: geom.NewVec2(999, 999)}, alwaysLive)
	require.Contains(t, reg.kindReg(KindSmallTruck).byLane[laneAB], truck)
}

func TestUpdate_ReindexesWhenRequesterNoLongerLive(t *testing.T) {
	m, laneAB, laneBC := chain(t)
	reg := NewRegistry()
	truck := EntityRef(7)
	reg.Update(m, KindSmallTruck, map[EntityRef]geom.Vec2{truck: geom.NewVec2(25, 0)}, alwaysLive)
	reg.Query(m, RequesterRef(1), KindSmallTruck, LaneTarget(laneAB))

	reg.Update(m, KindSmallTruck, map[EntityRef]geom.Vec2{truck: geom.NewVec2(90, 0)}, neverLive)
	require.Contains(t, reg.kindReg(KindSmallTruck).byLane[laneBC], truck)
}
