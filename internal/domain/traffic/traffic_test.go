package traffic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/infrastructure/rng"
)

func TestDecide_StoppedVehicleWantsZeroSpeed(t *testing.T) {
	in := Input{State: StateParked, Heading: geom.NewVec2(1, 0)}
	mem := NewMemory()
	d := Decide(in, nil, &mem, 0, rng.New(1))
	require.Equal(t, 0.0, d.DesiredSpeed)
}

func TestDecide_ClearRoadReachesSpeedLimit(t *testing.T) {
	in := Input{
		State: StateDriving, Heading: geom.NewVec2(1, 0), Pos: geom.NewVec2(0, 0),
		Decel: 5, LaneSpeedLimit: 10, SpeedFactor: 1, Control: mapmodel.ControlAlways,
	}
	mem := NewMemory()
	d := Decide(in, nil, &mem, 0, rng.New(1))
	require.Equal(t, 10.0, d.DesiredSpeed)
}

func TestDecide_BlockedAheadStops(t *testing.T) {
	in := Input{
		State: StateDriving, Heading: geom.NewVec2(1, 0), Pos: geom.NewVec2(0, 0),
		Decel: 5, LaneSpeedLimit: 10, SpeedFactor: 1,
	}
	neighbors := []Neighbor{{ID: 1, Pos: geom.NewVec2(0.5, 0), Heading: geom.NewVec2(-1, 0)}}
	mem := NewMemory()
	d := Decide(in, neighbors, &mem, 0, rng.New(1))
	require.Equal(t, 0.0, d.DesiredSpeed)
}

func TestDecide_MutualGridlockEntersPanic(t *testing.T) {
	in := Input{
		State: StateDriving, Heading: geom.NewVec2(1, 0), Pos: geom.NewVec2(0, 0),
		Decel: 5, LaneSpeedLimit: 10, SpeedFactor: 1, Speed: 0,
	}
	neighbor := Neighbor{ID: 42, Pos: geom.NewVec2(1, 0), Heading: geom.NewVec2(-1, 0), Speed: 0}
	mem := NewMemory()
	Decide(in, []Neighbor{neighbor}, &mem, 0, rng.New(1))
	require.True(t, mem.FlaggedBy[42])
	require.False(t, mem.Panicking)

	// second tick: still stalled behind the neighbor we flagged -> panic.
	Decide(in, []Neighbor{neighbor}, &mem, 1, rng.New(1))
	require.True(t, mem.Panicking)
}
