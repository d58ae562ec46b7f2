package pathfinder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/terrain"
)

func drivingPattern() mapmodel.LanePattern {
	return mapmodel.LanePattern{
		Forward:  []mapmodel.LaneSpec{{Kind: mapmodel.LaneDriving, Width: 3.5, SpeedLimit: 13.9}},
		Backward: []mapmodel.LaneSpec{{Kind: mapmodel.LaneDriving, Width: 3.5, SpeedLimit: 13.9}},
	}
}

func TestFindPath_SameLaneIsDirect(t *testing.T) {
	m := mapmodel.NewMap(terrain.NewHeightmap())
	_, roadID, err := m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(0, 0)), mapmodel.GroundProject(geom.NewVec2(100, 0)), nil, drivingPattern())
	require.NoError(t, err)
	road, _ := m.Road(roadID)
	lane := road.Forward()[0]

	pf := New(m)
	path, ok := pf.FindPath(lane, lane, PathVehicle)
	require.True(t, ok)
	require.Nil(t, path)
}

func TestFindPath_AcrossTwoRoadsViaStraightTurn(t *testing.T) {
	m := mapmodel.NewMap(terrain.NewHeightmap())
	interID, road1, err := m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(0, 0)), mapmodel.GroundProject(geom.NewVec2(100, 0)), nil, drivingPattern())
	require.NoError(t, err)
	_, road2, err := m.MakeConnection(mapmodel.IntersectionProject(interID), mapmodel.GroundProject(geom.NewVec2(200, 0)), nil, drivingPattern())
	require.NoError(t, err)

	r1, _ := m.Road(road1)
	r2, _ := m.Road(road2)
	srcLane := r1.Forward()[0]
	dstLane := r2.Forward()[0]

	pf := New(m)
	path, ok := pf.FindPath(srcLane, dstLane, PathVehicle)
	require.True(t, ok)
	require.NotEmpty(t, path)
	require.Equal(t, TraversableLane, path[0].Kind)
	require.Equal(t, srcLane, path[0].Lane)
	require.Equal(t, TraversableLane, path[len(path)-1].Kind)
	require.Equal(t, dstLane, path[len(path)-1].Lane)
}

func TestFindPath_UnreachableReturnsFalse(t *testing.T) {
	m := mapmodel.NewMap(terrain.NewHeightmap())
	_, road1, _ := m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(0, 0)), mapmodel.GroundProject(geom.NewVec2(100, 0)), nil, drivingPattern())
	_, road2, _ := m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(1000, 1000)), mapmodel.GroundProject(geom.NewVec2(1100, 1000)), nil, drivingPattern())

	r1, _ := m.Road(road1)
	r2, _ := m.Road(road2)

	pf := New(m)
	_, ok := pf.FindPath(r1.Forward()[0], r2.Forward()[0], PathVehicle)
	require.False(t, ok)
}
