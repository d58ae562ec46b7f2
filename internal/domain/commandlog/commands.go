// Package commandlog defines the closed set of world-mutating commands
// (spec.md §4.10) and a log that records and replays them through a
// common.Mediator, so live application and replay are the same code path.
package commandlog

import (
	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/internal/domain/terrain"
)

// MakeConnection builds a road (and its lanes) between two map projects,
// optionally through an elbow point.
type MakeConnection struct {
	From, To mapmodel.MapProject
	Elbow    *geom.Vec2
	Pattern  mapmodel.LanePattern
}

type RemoveIntersection struct {
	ID mapmodel.IntersectionID
}

type RemoveRoad struct {
	ID mapmodel.RoadID
}

type RemoveBuilding struct {
	ID mapmodel.BuildingID
}

type BuildHouse struct {
	Lot mapmodel.LotID
}

type BuildSpecialBuilding struct {
	OBB           geom.OBB
	Kind          mapmodel.BuildingKind
	Zone          []geom.Vec2
	ConnectedRoad *mapmodel.RoadID
}

type UpdateIntersectionPolicy struct {
	Intersection mapmodel.IntersectionID
	Turn         mapmodel.TurnPolicy
	Light        mapmodel.LightPolicy
}

type UpdateZone struct {
	Building mapmodel.BuildingID
	Zone     []geom.Vec2
}

type Terraform struct {
	Kind   terrain.TerraformKind
	Center geom.Vec2
	Radius float64
	Amount float64
	Level  float64
	Slope  *geom.Vec2
}

// SpawnTrain places a locomotive and n wagons on a lane at a given distance
// along it.
type SpawnTrain struct {
	Lane      mapmodel.LaneID
	Dist      float64
	NumWagons int
}

// SpawnRandomCars spawns n parked vehicles at random driving-lane ends; it
// stands in for the original's parking-spot reservation (no parking-spot
// allocator is in scope here, see DESIGN.md).
type SpawnRandomCars struct {
	N int
}

type SendMessage struct {
	Author string
	Text   string
}

type SetGameTime struct {
	Tick simtime.Tick
}

// Init is the bootstrap command every session starts with: a seed for the
// deterministic RNG and whether this session records a replay log.
type Init struct {
	Seed        uint64
	SaveReplay  bool
	TerrainSize int
}

// IsInstant reports whether cmd can be applied without running the
// scheduler afterward (spec.md §4.10): policy edits, zone updates, time
// sets and house builds take effect immediately and need no system pass to
// settle; everything else (spawns, road edits, terraforming) changes state
// that itinerary/traffic/dispatcher/market read, so the scheduler must run
// at least one tick for it to take effect.
func IsInstant(cmd any) bool {
	switch cmd.(type) {
	case BuildHouse, UpdateIntersectionPolicy, UpdateZone, SetGameTime:
		return true
	default:
		return false
	}
}
