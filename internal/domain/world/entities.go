package world

import (
	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/itinerary"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/market"
	"github.com/simcore/simcore/internal/domain/railway"
	"github.com/simcore/simcore/internal/domain/router"
	"github.com/simcore/simcore/internal/domain/traffic"
)

// VehicleKind classifies the agent for routing/dispatch purposes.
type VehicleKind int

const (
	VehicleCar VehicleKind = iota
	VehicleTruck
	VehicleBus
)

// Vehicle is the data model of spec.md §3 "Vehicle": transform, velocity,
// kind, parked/driving/panicking state, itinerary, and an optional
// dispatcher handle (trucks register with the dispatcher as SmallTruck
// candidates).
type Vehicle struct {
	ID       VehicleID
	Pos      geom.Vec2
	Heading  geom.Vec2
	Speed    float64
	Kind     VehicleKind
	State    traffic.VehicleState
	TrafficMemory traffic.Memory

	// ParkedSpot is valid when State == StateParked or StateRoadToPark.
	ParkedSpot router.ParkingSpotID
	// RoadToParkSpline/T describe progress along the parking maneuver when
	// State == StateRoadToPark.
	RoadToParkSpline []geom.Vec3
	RoadToParkT      float64

	Itinerary *itinerary.Itinerary

	HasDispatchHandle bool
}

func NewVehicle(id VehicleID, pos geom.Vec2, heading geom.Vec2, kind VehicleKind) *Vehicle {
	return &Vehicle{ID: id, Pos: pos, Heading: heading, Kind: kind, State: traffic.StateParked, Itinerary: itinerary.New(), TrafficMemory: traffic.NewMemory()}
}

// HumanLocationKind tags where a Human currently is.
type HumanLocationKind int

const (
	LocationOutside HumanLocationKind = iota
	LocationInVehicle
	LocationInBuilding
)

// Human is spec.md §3 "Human": location sum type, a router for multi-modal
// trips, an itinerary for the active leg, and optional home/work/food
// desire used by AI systems outside this package's scope.
type Human struct {
	ID       HumanID
	Pos      geom.Vec2
	Location HumanLocationKind
	InVehicle VehicleID
	InBuilding mapmodel.BuildingID

	Router    *router.Router
	Itinerary *itinerary.Itinerary

	Home, Work       mapmodel.BuildingID
	HasHome, HasWork bool
	FoodDesire       float64
}

func NewHuman(id HumanID, pos geom.Vec2) *Human {
	return &Human{ID: id, Pos: pos, Location: LocationOutside, Router: router.New(), Itinerary: itinerary.New()}
}

// Train is spec.md §3 "Train": transform, velocity, itinerary, locomotive
// params, reservation bookkeeping, and a position-history queue followers
// sample from.
type Train struct {
	ID      TrainID
	Pos     geom.Vec2
	Heading geom.Vec2
	Speed   float64

	MaxSpeed, Accel, Decel, Length float64

	Itinerary *itinerary.Itinerary
	RailID    railway.TrainID
	RailMemory railway.Memory

	// History is the leader queue of past positions, newest first, that
	// wagons sample from by distance-behind offset.
	History []geom.Vec3
}

func NewTrain(id TrainID, railID railway.TrainID, pos geom.Vec2) *Train {
	return &Train{ID: id, Pos: pos, RailID: railID, Itinerary: itinerary.New(), RailMemory: railway.NewMemory()}
}

// PushHistory records the train's current position for wagons to sample.
func (t *Train) PushHistory(p geom.Vec2, maxLen int) {
	t.History = append([]geom.Vec3{geom.NewVec3(p.X, p.Y, 0)}, t.History...)
	if len(t.History) > maxLen {
		t.History = t.History[:maxLen]
	}
}

// SampleHistory returns the history-queue point closest to distance meters
// behind the leader's current position, walking the recorded path.
func (t *Train) SampleHistory(distance float64) (geom.Vec3, bool) {
	if len(t.History) == 0 {
		return geom.Vec3{}, false
	}
	traveled := 0.0
	prev := t.History[0]
	for _, p := range t.History[1:] {
		seg := prev.DistanceTo(p)
		if traveled+seg >= distance {
			return p, true
		}
		traveled += seg
		prev = p
	}
	return t.History[len(t.History)-1], true
}

// Wagon is spec.md §3 "Wagon": references the leading train and carries
// head/tail offsets into its history queue, used to place the wagon body.
type Wagon struct {
	ID          WagonID
	Leader      TrainID
	HeadOffset  float64
	TailOffset  float64
}

func NewWagon(id WagonID, leader TrainID, headOffset, tailOffset float64) *Wagon {
	return &Wagon{ID: id, Leader: leader, HeadOffset: headOffset, TailOffset: tailOffset}
}

// FreightStation is spec.md §3: a market participant with a dispatcher
// handle for freight-train pickups.
type FreightStation struct {
	ID            FreightStationID
	Pos           geom.Vec2
	Participant   market.ParticipantID
	ConnectedRoad mapmodel.RoadID
	HasRoad       bool
}

func NewFreightStation(id FreightStationID, pos geom.Vec2, participant market.ParticipantID) *FreightStation {
	return &FreightStation{ID: id, Pos: pos, Participant: participant}
}

// Company is spec.md §3: a goods-producing market participant occupying a
// building.
type Company struct {
	ID          CompanyID
	Pos         geom.Vec2
	Participant market.ParticipantID
	Building    mapmodel.BuildingID
}

func NewCompany(id CompanyID, pos geom.Vec2, building mapmodel.BuildingID, participant market.ParticipantID) *Company {
	return &Company{ID: id, Pos: pos, Building: building, Participant: participant}
}
