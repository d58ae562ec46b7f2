package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/geom"
)

type fakeParking struct {
	nextSpot   ParkingSpotID
	reserved   map[ParkingSpotID]bool
	drivePos   map[ParkingSpotID]geom.Vec2
	reserveOK  bool
	drivePosOK bool
}

func newFakeParking() *fakeParking {
	return &fakeParking{reserved: make(map[ParkingSpotID]bool), drivePos: make(map[ParkingSpotID]geom.Vec2), reserveOK: true, drivePosOK: true}
}

func (f *fakeParking) Reserve(near geom.Vec2) (ParkingSpotID, bool) {
	if !f.reserveOK {
		return 0, false
	}
	f.nextSpot++
	id := f.nextSpot
	f.reserved[id] = true
	f.drivePos[id] = near
	return id, true
}

func (f *fakeParking) Release(spot ParkingSpotID) { delete(f.reserved, spot) }

func (f *fakeParking) DrivePos(spot ParkingSpotID) (geom.Vec2, bool) {
	if !f.drivePosOK {
		return geom.Vec2{}, false
	}
	p, ok := f.drivePos[spot]
	return p, ok
}

func TestPlanCarTrip_BuildsFullStepSequence(t *testing.T) {
	pm := newFakeParking()
	r := New()
	dest := OutsideDestination(geom.NewVec2(100, 0))
	ok := r.PlanCarTrip(dest, 0, false, VehicleRef(1), geom.NewVec2(5, 0), pm)
	require.True(t, ok)
	require.True(t, r.IsActive())

	step, ok := r.CurrentStep()
	require.True(t, ok)
	require.Equal(t, StepWalkToVehicle, step.Kind)
	require.Len(t, pm.reserved, 1)
}

func TestPlanCarTrip_ReleasesSpotWhenDrivePosFails(t *testing.T) {
	pm := newFakeParking()
	pm.drivePosOK = false
	r := New()
	ok := r.PlanCarTrip(OutsideDestination(geom.NewVec2(100, 0)), 0, false, VehicleRef(1), geom.NewVec2(5, 0), pm)
	require.False(t, ok)
	require.Equal(t, ErrorTranslatingParkingSpotToDrivePos, r.LastError())
	require.Empty(t, pm.reserved)
}

func TestPlanCarTrip_ReservationFailureSurfacesError(t *testing.T) {
	pm := newFakeParking()
	pm.reserveOK = false
	r := New()
	ok := r.PlanCarTrip(OutsideDestination(geom.NewVec2(100, 0)), 0, false, VehicleRef(1), geom.NewVec2(5, 0), pm)
	require.False(t, ok)
	require.Equal(t, ErrorReservingParkingSpot, r.LastError())
}

func TestAdvance_GatesOnTerminalAndPreconditions(t *testing.T) {
	pm := newFakeParking()
	r := New()
	r.PlanCarTrip(OutsideDestination(geom.NewVec2(100, 0)), 0, false, VehicleRef(1), geom.NewVec2(5, 0), pm)

	// WalkToVehicle step: not arrived, no advance.
	require.False(t, r.Advance(StepContext{}))
	step, _ := r.CurrentStep()
	require.Equal(t, StepWalkToVehicle, step.Kind)

	// Arrived but vehicle not reachable yet: gated by next step precondition.
	require.False(t, r.Advance(StepContext{WithinArrivalDist: true, VehicleReachable: false}))
	step, _ = r.CurrentStep()
	require.Equal(t, StepWalkToVehicle, step.Kind)

	// Both conditions hold: advances to GetInVehicle.
	require.False(t, r.Advance(StepContext{WithinArrivalDist: true, VehicleReachable: true}))
	step, _ = r.CurrentStep()
	require.Equal(t, StepGetInVehicle, step.Kind)
}

func TestClearSteps_ReleasesHeldReservations(t *testing.T) {
	pm := newFakeParking()
	r := New()
	r.PlanCarTrip(OutsideDestination(geom.NewVec2(100, 0)), 0, false, VehicleRef(1), geom.NewVec2(5, 0), pm)
	require.Len(t, pm.reserved, 1)

	r.ClearSteps(pm)
	require.Empty(t, pm.reserved)
	require.False(t, r.IsActive())
}

func TestPlanWalkTrip_NoVehicleSteps(t *testing.T) {
	r := New()
	r.PlanWalkTrip(OutsideDestination(geom.NewVec2(50, 0)), 0, false)
	step, ok := r.CurrentStep()
	require.True(t, ok)
	require.Equal(t, StepWalkToTarget, step.Kind)
}
