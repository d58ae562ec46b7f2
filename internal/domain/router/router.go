// Package router implements the multi-modal trip planner of spec.md §4.5
// (C8): a stack of RoutingSteps above itinerary (enter car, unpark, drive,
// park, walk, enter building). Like itinerary it is a closed-state machine
// rather than dynamic dispatch, and like railway/traffic it stays free of
// a world import — vehicles and buildings are referenced by opaque/port
// types the caller supplies.
package router

import (
	"bytes"
	"encoding/gob"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
)

// VehicleRef is an opaque handle to the agent's car, supplied by the
// caller (world).
type VehicleRef uint64

// ParkingSpotID is an opaque handle to a reserved parking spot.
type ParkingSpotID uint64

// ParkingManager is the port router plans against: reserve/release a spot
// near a position, and translate a reserved spot into the position a
// vehicle must drive to in order to park there.
type ParkingManager interface {
	Reserve(near geom.Vec2) (ParkingSpotID, bool)
	Release(spot ParkingSpotID)
	DrivePos(spot ParkingSpotID) (geom.Vec2, bool)
}

// DestinationKind tags a Destination's target kind.
type DestinationKind int

const (
	DestinationOutside DestinationKind = iota
	DestinationBuilding
)

// Destination is the router's target: either a bare point or a building
// (spec.md §4.5 "Destination ∈ {Outside(p), Building(b)}").
type Destination struct {
	Kind     DestinationKind
	Pos      geom.Vec2
	Building mapmodel.BuildingID
}

func OutsideDestination(p geom.Vec2) Destination {
	return Destination{Kind: DestinationOutside, Pos: p}
}

func BuildingDestination(id mapmodel.BuildingID, doorPos geom.Vec2) Destination {
	return Destination{Kind: DestinationBuilding, Pos: doorPos, Building: id}
}

// StepKind is the closed set of trip steps, in the exact execution order
// spec.md §4.5 gives (plans are built in this order and executed from
// index 0).
type StepKind int

const (
	StepGetOutBuilding StepKind = iota
	StepWalkToVehicle
	StepGetInVehicle
	StepUnpark
	StepDriveTo
	StepPark
	StepGetOutVehicle
	StepWalkToTarget
	StepGetInBuilding
)

// Step is one entry of the plan. Pos/Vehicle/Building/Spot are populated
// according to Kind; unused fields are zero.
type Step struct {
	Kind     StepKind
	Pos      geom.Vec2
	Vehicle  VehicleRef
	Building mapmodel.BuildingID
	Spot     ParkingSpotID
}

// ErrorKind is the closed set of planning failures router records for
// diagnostics (spec.md §4.5).
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorReservingParkingSpot
	ErrorTranslatingParkingSpotToDrivePos
	ErrorLocatingVehicle
)

// Router holds the current step plan and a cursor into it.
type Router struct {
	steps      []Step
	cursor     int
	dest       Destination
	lastError  ErrorKind
	reserved   []ParkingSpotID
	active     bool
}

func New() *Router { return &Router{} }

func (r *Router) LastError() ErrorKind { return r.lastError }
func (r *Router) IsActive() bool       { return r.active }
func (r *Router) Destination() Destination { return r.dest }

// CurrentStep returns the step the router is presently executing, if any.
func (r *Router) CurrentStep() (Step, bool) {
	if !r.active || r.cursor >= len(r.steps) {
		return Step{}, false
	}
	return r.steps[r.cursor], true
}

// ClearSteps frees every reservation this router currently holds and
// resets it to idle (spec.md §4.5 "called on destination change or entity
// death").
func (r *Router) ClearSteps(pm ParkingManager) {
	for _, spot := range r.reserved {
		pm.Release(spot)
	}
	r.steps = nil
	r.cursor = 0
	r.reserved = nil
	r.active = false
	r.lastError = ErrorNone
}

// PlanCarTrip builds the full vehicle-assisted plan: out of the start
// building (if any), walk to the car, drive to a reserved spot near the
// destination, park, walk in (spec.md §4.5's full step sequence).
//
// The parking spot is reserved up front, at planning time; if drivePos
// resolution later fails the spot is released immediately and planning
// aborts with ErrorTranslatingParkingSpotToDrivePos.
func (r *Router) PlanCarTrip(dest Destination, startBuilding mapmodel.BuildingID, hasStartBuilding bool, car VehicleRef, carPos geom.Vec2, pm ParkingManager) bool {
	r.dest = dest
	r.lastError = ErrorNone

	spot, ok := pm.Reserve(dest.Pos)
	if !ok {
		r.lastError = ErrorReservingParkingSpot
		r.active = false
		return false
	}
	drivePos, ok := pm.DrivePos(spot)
	if !ok {
		pm.Release(spot)
		r.lastError = ErrorTranslatingParkingSpotToDrivePos
		r.active = false
		return false
	}

	var steps []Step
	if hasStartBuilding {
		steps = append(steps, Step{Kind: StepGetOutBuilding, Building: startBuilding})
	}
	steps = append(steps,
		Step{Kind: StepWalkToVehicle, Pos: carPos},
		Step{Kind: StepGetInVehicle, Vehicle: car},
		Step{Kind: StepUnpark, Vehicle: car},
		Step{Kind: StepDriveTo, Pos: drivePos, Vehicle: car},
		Step{Kind: StepPark, Vehicle: car, Spot: spot},
		Step{Kind: StepGetOutVehicle, Vehicle: car},
		Step{Kind: StepWalkToTarget, Pos: dest.Pos},
	)
	if dest.Kind == DestinationBuilding {
		steps = append(steps, Step{Kind: StepGetInBuilding, Building: dest.Building})
	}

	r.steps = steps
	r.cursor = 0
	r.reserved = []ParkingSpotID{spot}
	r.active = true
	return true
}

// PlanWalkTrip builds a pure-walking plan with no vehicle involvement.
func (r *Router) PlanWalkTrip(dest Destination, startBuilding mapmodel.BuildingID, hasStartBuilding bool) {
	r.dest = dest
	r.lastError = ErrorNone
	var steps []Step
	if hasStartBuilding {
		steps = append(steps, Step{Kind: StepGetOutBuilding, Building: startBuilding})
	}
	steps = append(steps, Step{Kind: StepWalkToTarget, Pos: dest.Pos})
	if dest.Kind == DestinationBuilding {
		steps = append(steps, Step{Kind: StepGetInBuilding, Building: dest.Building})
	}
	r.steps = steps
	r.cursor = 0
	r.active = true
}

// StepContext is what the caller reports back each tick so Advance can
// evaluate the gating rule of spec.md §4.5: "a step advances only when
// both: the previous step's terminal condition fires... and the new
// step's preconditions hold."
type StepContext struct {
	ItineraryEnded    bool
	VehicleParked     bool
	WithinArrivalDist bool // current position within 3m of the step's target
	VehicleReachable  bool // new step's precondition: close enough to board
	BuildingExists    bool // new step's precondition: building still exists
}

const arrivalRadius = 3.0

func terminalFired(kind StepKind, ctx StepContext) bool {
	switch kind {
	case StepGetOutBuilding, StepGetInVehicle, StepUnpark, StepGetOutVehicle, StepGetInBuilding:
		return true // instantaneous actions, terminal the tick they're reached
	case StepPark:
		return ctx.VehicleParked
	case StepWalkToVehicle, StepWalkToTarget, StepDriveTo:
		return ctx.ItineraryEnded || ctx.WithinArrivalDist
	default:
		return false
	}
}

func preconditionsHold(kind StepKind, ctx StepContext) bool {
	switch kind {
	case StepGetInVehicle:
		return ctx.VehicleReachable
	case StepGetInBuilding:
		return ctx.BuildingExists
	default:
		return true
	}
}

// Advance evaluates the gating rule against the step currently executing
// and, if satisfied, moves the cursor forward. Returns true if the router
// finished its plan as a result.
func (r *Router) Advance(ctx StepContext) (finished bool) {
	if !r.active || r.cursor >= len(r.steps) {
		return true
	}
	cur := r.steps[r.cursor]
	if !terminalFired(cur.Kind, ctx) {
		return false
	}
	if r.cursor+1 < len(r.steps) {
		next := r.steps[r.cursor+1]
		if !preconditionsHold(next.Kind, ctx) {
			return false
		}
	}
	r.cursor++
	if r.cursor >= len(r.steps) {
		r.active = false
		return true
	}
	return false
}

// routerSnapshot mirrors Router's unexported fields with exported ones so
// gob can reach them (see itinerary.Itinerary for the same hazard).
type routerSnapshot struct {
	Steps     []Step
	Cursor    int
	Dest      Destination
	LastError ErrorKind
	Reserved  []ParkingSpotID
	Active    bool
}

func (r Router) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	snap := routerSnapshot{
		Steps: r.steps, Cursor: r.cursor, Dest: r.dest,
		LastError: r.lastError, Reserved: r.reserved, Active: r.active,
	}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Router) GobDecode(data []byte) error {
	var snap routerSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	*r = Router{
		steps: snap.Steps, cursor: snap.Cursor, dest: snap.Dest,
		lastError: snap.LastError, reserved: snap.Reserved, active: snap.Active,
	}
	return nil
}
