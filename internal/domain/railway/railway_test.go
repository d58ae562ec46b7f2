package railway

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/pathfinder"
	"github.com/simcore/simcore/internal/domain/terrain"
)

func railPattern() mapmodel.LanePattern {
	return mapmodel.LanePattern{
		Forward: []mapmodel.LaneSpec{{Kind: mapmodel.LaneRail, Width: 1.5, SpeedLimit: 30, Control: mapmodel.ControlAlways}},
	}
}

// junction builds a 3-spoke rail intersection (south/south-east/north
// meeting at center, so >2 incident roads; both approaches run near
// straight into the north exit) and returns the intersection plus one
// incoming lane and its first outgoing turn for two distinct approaches.
func junction(t *testing.T) (m *mapmodel.Map, interID mapmodel.IntersectionID, southLane mapmodel.LaneID, southTurn mapmodel.TurnID, eastLane mapmodel.LaneID, eastTurn mapmodel.TurnID) {
	t.Helper()
	m = mapmodel.NewMap(terrain.NewHeightmap())
	center := geom.NewVec2(0, 0)

	interID, _, err := m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(0, -100)), mapmodel.GroundProject(center), nil, railPattern())
	require.NoError(t, err)
	centerProj := mapmodel.IntersectionProject(interID)

	_, _, err = m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(100, -100)), centerProj, nil, railPattern())
	require.NoError(t, err)
	_, _, err = m.MakeConnection(centerProj, mapmodel.GroundProject(geom.NewVec2(0, 100)), nil, railPattern())
	require.NoError(t, err)

	inter, ok := m.Intersection(interID)
	require.True(t, ok)
	require.Len(t, inter.Roads(), 3)

	for _, roadID := range inter.Roads() {
		road, ok := m.Road(roadID)
		require.True(t, ok)
		if road.Dst() != interID || len(road.Forward()) == 0 {
			continue
		}
		lane := road.Forward()[0]
		turns := m.TurnsFrom(lane)
		if len(turns) == 0 {
			continue
		}
		if southLane.IsNil() {
			southLane, southTurn = lane, turns[0]
		} else if eastLane.IsNil() && lane != southLane {
			eastLane, eastTurn = lane, turns[0]
		}
	}
	require.False(t, southLane.IsNil())
	require.False(t, eastLane.IsNil())
	return
}

func TestProcess_SecondTrainAbortsWhileFirstHoldsReservation(t *testing.T) {
	_, interID, southLane, southTurn, eastLane, eastTurn := junction(t)
	table := NewReservationTable()

	memA := NewMemory()
	upA := []UpcomingSegment{{Trav: pathfinder.Traversable{Kind: pathfinder.TraversableTurn, Turn: southTurn}, Length: 5, Intersection: interID, IsExclusive: true}}
	resA := Process(table, 1, &memA, pathfinder.Traversable{Kind: pathfinder.TraversableLane, Lane: southLane}, 50, 1, upA, 10, 20, false)
	require.False(t, resA.Aborted)

	holder, ok := table.ReservationHolder(interID)
	require.True(t, ok)
	require.Equal(t, TrainID(1), holder)

	memB := NewMemory()
	upB := []UpcomingSegment{{Trav: pathfinder.Traversable{Kind: pathfinder.TraversableTurn, Turn: eastTurn}, Length: 5, Intersection: interID, IsExclusive: true}}
	resB := Process(table, 2, &memB, pathfinder.Traversable{Kind: pathfinder.TraversableLane, Lane: eastLane}, 50, 1, upB, 10, 20, false)
	require.True(t, resB.Aborted)
	require.True(t, resB.DesiredSpeedCapped)

	holder, ok = table.ReservationHolder(interID)
	require.True(t, ok)
	require.Equal(t, TrainID(1), holder)

	// Train A moves past the junction: its next tick no longer looks ahead
	// through this intersection, so step 2 releases the reservation.
	resA = Process(table, 1, &memA, pathfinder.Traversable{Kind: pathfinder.TraversableTurn, Turn: southTurn}, 5, 1, nil, 10, 20, false)
	require.False(t, resA.Aborted)
	_, ok = table.ReservationHolder(interID)
	require.False(t, ok)

	// Now train B's look-ahead succeeds.
	resB = Process(table, 2, &memB, pathfinder.Traversable{Kind: pathfinder.TraversableLane, Lane: eastLane}, 50, 1, upB, 10, 20, false)
	require.False(t, resB.Aborted)
	holder, ok = table.ReservationHolder(interID)
	require.True(t, ok)
	require.Equal(t, TrainID(2), holder)
}

func TestProcess_NonFrontmostOccupantCannotReserve(t *testing.T) {
	_, interID, southLane, southTurn, _, _ := junction(t)
	table := NewReservationTable()

	memFront := NewMemory()
	Process(table, 1, &memFront, pathfinder.Traversable{Kind: pathfinder.TraversableLane, Lane: southLane}, 50, 1, nil, 10, 20, false)

	memBehind := NewMemory()
	up := []UpcomingSegment{{Trav: pathfinder.Traversable{Kind: pathfinder.TraversableTurn, Turn: southTurn}, Length: 5, Intersection: interID, IsExclusive: true}}
	res := Process(table, 2, &memBehind, pathfinder.Traversable{Kind: pathfinder.TraversableLane, Lane: southLane}, 50, 1, up, 10, 20, false)
	require.True(t, res.Aborted)
	require.True(t, res.DesiredSpeedCapped)
}

func TestProcess_PastTraversReleasedOnceClearedByLength(t *testing.T) {
	_, interID, southLane, southTurn, _, _ := junction(t)
	table := NewReservationTable()
	mem := NewMemory()
	up := []UpcomingSegment{{Trav: pathfinder.Traversable{Kind: pathfinder.TraversableTurn, Turn: southTurn}, Length: 5, Intersection: interID, IsExclusive: true}}
	Process(table, 1, &mem, pathfinder.Traversable{Kind: pathfinder.TraversableLane, Lane: southLane}, 50, 100, up, 10, 20, false)
	require.Empty(t, mem.PastTravers)
}
