package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/domain/dispatch"
	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/market"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/internal/domain/terrain"
	"github.com/simcore/simcore/internal/domain/traffic"
	"github.com/simcore/simcore/internal/domain/world"
	"github.com/simcore/simcore/internal/infrastructure/rng"
)

func straightDrivingMap(t *testing.T) (*mapmodel.Map, mapmodel.LaneID) {
	t.Helper()
	m := mapmodel.NewMap(terrain.NewHeightmap())
	pattern := mapmodel.LanePattern{
		Forward: []mapmodel.LaneSpec{{Kind: mapmodel.LaneDriving, Width: 3.5, SpeedLimit: 13.9, Control: mapmodel.ControlAlways}},
	}
	_, roadID, err := m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(0, 0)), mapmodel.GroundProject(geom.NewVec2(200, 0)), nil, pattern)
	require.NoError(t, err)
	road, ok := m.Road(roadID)
	require.True(t, ok)
	return m, road.Forward()[0]
}

func newTestScheduler(t *testing.T) (*Scheduler, *mapmodel.Map) {
	t.Helper()
	m, _ := straightDrivingMap(t)
	w := world.New()
	mkt := market.New()
	reg := dispatch.NewRegistry()
	clock := simtime.NewClock(0)
	provider := rng.New(1)
	logger := common.NewBufferingLogger()

	s := New(w, m, mkt, reg, clock, provider, logger)
	return s, m
}

func TestTick_AdvancesClockExactlyOnce(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.Equal(t, simtime.Tick(0), s.Clock.Tick())
	s.Tick(context.Background())
	require.Equal(t, simtime.Tick(1), s.Clock.Tick())
}

func TestTick_DrivingVehicleAcceleratesTowardLaneSpeedLimit(t *testing.T) {
	s, _ := newTestScheduler(t)
	v := world.NewVehicle(world.VehicleID{}, geom.NewVec2(0, 0), geom.NewVec2(1, 0), world.VehicleCar)
	id := s.World.SpawnVehicle(*v)
	stored, _ := s.World.Vehicles.Get(id)
	stored.State = traffic.StateDriving
	stored.Itinerary.SetSimple(geom.NewVec2(200, 0), []geom.Vec3{geom.NewVec3(0, 0, 0), geom.NewVec3(200, 0, 0)})
	s.Track(world.RefOf(world.KindVehicle, id), stored.Pos)

	s.Tick(context.Background())

	after, _ := s.World.Vehicles.Get(id)
	require.Greater(t, after.Speed, 0.0)
	require.LessOrEqual(t, after.Speed, vehicleAccel*simtime.TickPeriod+1e-9)
}

func TestTick_ParkedVehicleNeverMoves(t *testing.T) {
	s, _ := newTestScheduler(t)
	v := world.NewVehicle(world.VehicleID{}, geom.NewVec2(5, 5), geom.NewVec2(1, 0), world.VehicleCar)
	id := s.World.SpawnVehicle(*v)
	s.Track(world.RefOf(world.KindVehicle, id), v.Pos)

	s.Tick(context.Background())

	after, _ := s.World.Vehicles.Get(id)
	require.Equal(t, 0.0, after.Speed)
	require.Equal(t, geom.NewVec2(5, 5), after.Pos)
}

func TestTick_MarketClearingRunsEveryTick(t *testing.T) {
	s, _ := newTestScheduler(t)
	def, err := market.NewItemDef("cereal", 10, 1, false)
	require.NoError(t, err)
	book := s.Market.RegisterItem(def)
	book.SetCapital(1, 5)

	sell, err := market.NewSellOrder(1, geom.NewVec2(0, 0), 5, 0)
	require.NoError(t, err)
	buy, err := market.NewBuyOrder(2, geom.NewVec2(0, 0), 3)
	require.NoError(t, err)
	book.RegisterSell(sell)
	book.RegisterBuy(buy)

	s.Tick(context.Background())

	require.Equal(t, 0, book.Capital(1))
	require.Equal(t, 3, book.Capital(2))
}

func TestTick_TwoNearbyVehiclesDoNotPanicWithNoObstruction(t *testing.T) {
	s, _ := newTestScheduler(t)
	a := world.NewVehicle(world.VehicleID{}, geom.NewVec2(0, 0), geom.NewVec2(1, 0), world.VehicleCar)
	idA := s.World.SpawnVehicle(*a)
	storedA, _ := s.World.Vehicles.Get(idA)
	storedA.State = traffic.StateDriving
	storedA.Itinerary.SetSimple(geom.NewVec2(200, 0), []geom.Vec3{geom.NewVec3(0, 0, 0), geom.NewVec3(200, 0, 0)})
	s.Track(world.RefOf(world.KindVehicle, idA), storedA.Pos)

	b := world.NewVehicle(world.VehicleID{}, geom.NewVec2(100, 0), geom.NewVec2(1, 0), world.VehicleCar)
	idB := s.World.SpawnVehicle(*b)
	storedB, _ := s.World.Vehicles.Get(idB)
	storedB.State = traffic.StateDriving
	storedB.Itinerary.SetSimple(geom.NewVec2(300, 0), []geom.Vec3{geom.NewVec3(100, 0, 0), geom.NewVec3(300, 0, 0)})
	s.Track(world.RefOf(world.KindVehicle, idB), storedB.Pos)

	require.NotPanics(t, func() {
		for i := 0; i < 5; i++ {
			s.Tick(context.Background())
		}
	})
}
