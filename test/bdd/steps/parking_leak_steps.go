package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/router"
)

// fakeParking mirrors internal/domain/router/router_test.go's test double,
// reused here through router.ParkingManager's exported interface.
type fakeParking struct {
	nextSpot router.ParkingSpotID
	reserved map[router.ParkingSpotID]bool
	drivePos map[router.ParkingSpotID]geom.Vec2
}

func newFakeParking() *fakeParking {
	return &fakeParking{reserved: make(map[router.ParkingSpotID]bool), drivePos: make(map[router.ParkingSpotID]geom.Vec2)}
}

func (f *fakeParking) Reserve(near geom.Vec2) (router.ParkingSpotID, bool) {
	f.nextSpot++
	id := f.nextSpot
	f.reserved[id] = true
	f.drivePos[id] = near
	return id, true
}

func (f *fakeParking) Release(spot router.ParkingSpotID) { delete(f.reserved, spot) }

func (f *fakeParking) DrivePos(spot router.ParkingSpotID) (geom.Vec2, bool) {
	p, ok := f.drivePos[spot]
	return p, ok
}

// parkingLeakContext drives spec.md §8 scenario 4 ("Parking reservation
// leak"), grounded on router_test.go's TestClearSteps_ReleasesHeldReservations.
type parkingLeakContext struct {
	pm *fakeParking
	r  *router.Router
}

func (c *parkingLeakContext) reset() {
	c.pm = newFakeParking()
	c.r = router.New()
}

func (c *parkingLeakContext) aRouterWithAPlannedCarTripThatReservedOneParkingSpot() error {
	dest := router.OutsideDestination(geom.NewVec2(100, 0))
	ok := c.r.PlanCarTrip(dest, 0, false, router.VehicleRef(1), geom.NewVec2(5, 0), c.pm)
	if !ok {
		return fmt.Errorf("expected PlanCarTrip to succeed: %v", c.r.LastError())
	}
	if len(c.pm.reserved) != 1 {
		return fmt.Errorf("expected exactly one reserved spot, got %d", len(c.pm.reserved))
	}
	return nil
}

func (c *parkingLeakContext) theRoutersStepsAreCleared() error {
	c.r.ClearSteps(c.pm)
	return nil
}

func (c *parkingLeakContext) theParkingSpotIsReleased() error {
	if len(c.pm.reserved) != 0 {
		return fmt.Errorf("expected no reserved spots, got %d", len(c.pm.reserved))
	}
	return nil
}

func (c *parkingLeakContext) theRouterIsNoLongerActive() error {
	if c.r.IsActive() {
		return fmt.Errorf("expected router to be inactive")
	}
	return nil
}

func InitializeParkingLeakScenario(ctx *godog.ScenarioContext) {
	c := &parkingLeakContext{}
	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		c.reset()
		return goctx, nil
	})

	ctx.Step(`^a router with a planned car trip that reserved one parking spot$`, c.aRouterWithAPlannedCarTripThatReservedOneParkingSpot)
	ctx.Step(`^the router's steps are cleared$`, c.theRoutersStepsAreCleared)
	ctx.Step(`^the parking spot is released$`, c.theParkingSpotIsReleased)
	ctx.Step(`^the router is no longer active$`, c.theRouterIsNoLongerActive)
}
