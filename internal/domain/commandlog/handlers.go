package commandlog

import (
	"context"
	"fmt"
	"reflect"

	"github.com/simcore/simcore/internal/application/common"
	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/market"
	"github.com/simcore/simcore/internal/domain/pathfinder"
	"github.com/simcore/simcore/internal/domain/railway"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/internal/domain/world"
	"github.com/simcore/simcore/internal/infrastructure/rng"
)

// Handlers binds the closed command set to the live world it mutates.
// Every handler method has the common.HandlerFunc shape so Register can
// wire it into a Mediator by request type, the same dispatch style the
// teacher uses for its application-layer commands.
type Handlers struct {
	World  *world.World
	Map    *mapmodel.Map
	Market *market.Market
	Clock  *simtime.Clock
	RNG    *rng.Provider
	Logger common.SimLogger
}

// Register wires every command type this package defines into m, so
// CommandLog.ApplyTick and Replay can reach them purely by the command's
// concrete type.
func (h *Handlers) Register(m common.Mediator) error {
	registrations := []struct {
		sample  common.Request
		handler common.HandlerFunc
	}{
		{MakeConnection{}, h.handleMakeConnection},
		{RemoveIntersection{}, h.handleRemoveIntersection},
		{RemoveRoad{}, h.handleRemoveRoad},
		{RemoveBuilding{}, h.handleRemoveBuilding},
		{BuildHouse{}, h.handleBuildHouse},
		{BuildSpecialBuilding{}, h.handleBuildSpecialBuilding},
		{UpdateIntersectionPolicy{}, h.handleUpdateIntersectionPolicy},
		{UpdateZone{}, h.handleUpdateZone},
		{Terraform{}, h.handleTerraform},
		{SpawnTrain{}, h.handleSpawnTrain},
		{SpawnRandomCars{}, h.handleSpawnRandomCars},
		{SendMessage{}, h.handleSendMessage},
		{SetGameTime{}, h.handleSetGameTime},
		{Init{}, h.handleInit},
	}
	for _, r := range registrations {
		if err := m.Register(reflect.TypeOf(r.sample), r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) handleMakeConnection(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(MakeConnection)
	_, roadID, err := h.Map.MakeConnection(cmd.From, cmd.To, cmd.Elbow, cmd.Pattern)
	return roadID, err
}

func (h *Handlers) handleRemoveIntersection(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(RemoveIntersection)
	return nil, h.Map.RemoveIntersection(cmd.ID)
}

func (h *Handlers) handleRemoveRoad(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(RemoveRoad)
	return nil, h.Map.RemoveRoad(cmd.ID)
}

func (h *Handlers) handleRemoveBuilding(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(RemoveBuilding)
	return nil, h.Map.RemoveBuilding(cmd.ID)
}

func (h *Handlers) handleBuildHouse(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(BuildHouse)
	return h.Map.BuildHouse(cmd.Lot)
}

func (h *Handlers) handleBuildSpecialBuilding(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(BuildSpecialBuilding)
	return h.Map.BuildSpecialBuilding(cmd.OBB, cmd.Kind, cmd.Zone, cmd.ConnectedRoad)
}

func (h *Handlers) handleUpdateIntersectionPolicy(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(UpdateIntersectionPolicy)
	return nil, h.Map.UpdateIntersection(cmd.Intersection, func(turn *mapmodel.TurnPolicy, light *mapmodel.LightPolicy) {
		*turn = cmd.Turn
		*light = cmd.Light
	})
}

func (h *Handlers) handleUpdateZone(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(UpdateZone)
	return nil, h.Map.UpdateZone(cmd.Building, cmd.Zone)
}

func (h *Handlers) handleTerraform(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(Terraform)
	return h.Map.Terraform(cmd.Kind, cmd.Center, cmd.Radius, cmd.Amount, cmd.Level, cmd.Slope), nil
}

// handleSpawnTrain places a locomotive at dist along lane and chains
// NumWagons behind it, grounded on spawn_train in original_source's
// world_command.rs (there delegated to transportation::train::spawn_train).
func (h *Handlers) handleSpawnTrain(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(SpawnTrain)
	lane, ok := h.Map.Lane(cmd.Lane)
	if !ok {
		return nil, fmt.Errorf("spawn train: lane %v not found", cmd.Lane)
	}
	point, _ := lane.Polyline().PointAt(cmd.Dist)
	id := h.World.SpawnTrain(*world.NewTrain(world.TrainID{}, railway.TrainID(h.RNG.IntN(1<<31)), point.XY()))
	train, _ := h.World.Trains.Get(id)
	train.MaxSpeed, train.Accel, train.Decel, train.Length = 20.0, 1.5, 3.0, 18.0
	train.Itinerary.SetRoute([]pathfinder.Traversable{{Kind: pathfinder.TraversableLane, Lane: cmd.Lane}}, point.XY(), pathfinder.PathRail)

	const wagonSpacing = 12.0
	for i := 0; i < cmd.NumWagons; i++ {
		headOffset := float64(i+1) * wagonSpacing
		tailOffset := headOffset + wagonSpacing*0.8
		h.World.SpawnWagon(*world.NewWagon(world.WagonID{}, id, headOffset, tailOffset))
	}
	return id, nil
}

// handleSpawnRandomCars drops n parked vehicles near the ends of randomly
// chosen driving lanes. The original reserves a free spot from a parking
// allocator (ParkingManagement); this repo has no such resource in scope
// (see DESIGN.md), so vehicles are parked directly off the chosen lane end.
func (h *Handlers) handleSpawnRandomCars(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(SpawnRandomCars)
	var lanes []*mapmodel.Lane
	h.Map.EachLane(func(_ mapmodel.LaneID, l *mapmodel.Lane) {
		if l.Kind() == mapmodel.LaneDriving {
			lanes = append(lanes, l)
		}
	})
	if len(lanes) == 0 {
		return nil, fmt.Errorf("spawn random cars: no driving lanes on map")
	}

	ids := make([]world.VehicleID, 0, cmd.N)
	for i := 0; i < cmd.N; i++ {
		lane := lanes[h.RNG.IntN(len(lanes))]
		pos := lane.Polyline().Last().XY()
		heading := geom.NewVec2(1, 0)
		id := h.World.SpawnVehicle(*world.NewVehicle(world.VehicleID{}, pos, heading, world.VehicleCar))
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *Handlers) handleSendMessage(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(SendMessage)
	if h.Logger != nil {
		h.Logger.Infof("chat: %s: %s", cmd.Author, cmd.Text)
	}
	return nil, nil
}

func (h *Handlers) handleSetGameTime(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(SetGameTime)
	if h.Clock != nil {
		h.Clock.Set(cmd.Tick)
	}
	return cmd.Tick, nil
}

// handleInit logs the bootstrap options; actual terrain generation and RNG
// seeding happen before a CommandLog exists (they construct the World and
// Map this package then operates on), so this handler's only job is to make
// Init a loggable, replayable entry in the command stream.
func (h *Handlers) handleInit(_ context.Context, req common.Request) (common.Response, error) {
	cmd := req.(Init)
	if h.Logger != nil {
		h.Logger.Infof("init: seed=%d save_replay=%t terrain_size=%d", cmd.Seed, cmd.SaveReplay, cmd.TerrainSize)
	}
	return nil, nil
}
