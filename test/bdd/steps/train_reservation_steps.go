package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/pathfinder"
	"github.com/simcore/simcore/internal/domain/railway"
	"github.com/simcore/simcore/internal/domain/terrain"
)

// trainReservationContext drives spec.md §8 scenario 3 ("Train reservation
// single-intersection") through railway's public Process/ReservationTable
// surface, grounded on internal/domain/railway/railway_test.go's junction
// helper and TestProcess_SecondTrainAbortsWhileFirstHoldsReservation.
type trainReservationContext struct {
	m         *mapmodel.Map
	interID   mapmodel.IntersectionID
	southLane mapmodel.LaneID
	southTurn mapmodel.TurnID
	eastLane  mapmodel.LaneID
	eastTurn  mapmodel.TurnID

	table *railway.ReservationTable
	memA  railway.Memory
	memB  railway.Memory
	resA  railway.Result
	resB  railway.Result
}

func (c *trainReservationContext) reset() {
	*c = trainReservationContext{}
}

func (c *trainReservationContext) aRailJunctionWithTrainsApproaching(_, _ string) error {
	c.m = mapmodel.NewMap(terrain.NewHeightmap())
	center := geom.NewVec2(0, 0)

	interID, _, err := c.m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(0, -100)), mapmodel.GroundProject(center), nil, railPattern())
	if err != nil {
		return err
	}
	centerProj := mapmodel.IntersectionProject(interID)

	if _, _, err := c.m.MakeConnection(mapmodel.GroundProject(geom.NewVec2(100, -100)), centerProj, nil, railPattern()); err != nil {
		return err
	}
	if _, _, err := c.m.MakeConnection(centerProj, mapmodel.GroundProject(geom.NewVec2(0, 100)), nil, railPattern()); err != nil {
		return err
	}

	inter, ok := c.m.Intersection(interID)
	if !ok || len(inter.Roads()) != 3 {
		return fmt.Errorf("expected a 3-way junction")
	}
	for _, roadID := range inter.Roads() {
		road, ok := c.m.Road(roadID)
		if !ok || road.Dst() != interID || len(road.Forward()) == 0 {
			continue
		}
		lane := road.Forward()[0]
		turns := c.m.TurnsFrom(lane)
		if len(turns) == 0 {
			continue
		}
		if c.southLane.IsNil() {
			c.southLane, c.southTurn = lane, turns[0]
		} else if c.eastLane.IsNil() && lane != c.southLane {
			c.eastLane, c.eastTurn = lane, turns[0]
		}
	}
	if c.southLane.IsNil() || c.eastLane.IsNil() {
		return fmt.Errorf("could not find two distinct approach lanes")
	}
	c.interID = interID
	c.table = railway.NewReservationTable()
	c.memA = railway.NewMemory()
	c.memB = railway.NewMemory()
	return nil
}

func (c *trainReservationContext) trainCommitsItsLookAheadThroughTheJunction(name string) error {
	switch name {
	case "A":
		up := []railway.UpcomingSegment{{Trav: pathfinder.Traversable{Kind: pathfinder.TraversableTurn, Turn: c.southTurn}, Length: 5, Intersection: c.interID, IsExclusive: true}}
		c.resA = railway.Process(c.table, 1, &c.memA, pathfinder.Traversable{Kind: pathfinder.TraversableLane, Lane: c.southLane}, 50, 1, up, 10, 20, false)
	case "B":
		up := []railway.UpcomingSegment{{Trav: pathfinder.Traversable{Kind: pathfinder.TraversableTurn, Turn: c.eastTurn}, Length: 5, Intersection: c.interID, IsExclusive: true}}
		c.resB = railway.Process(c.table, 2, &c.memB, pathfinder.Traversable{Kind: pathfinder.TraversableLane, Lane: c.eastLane}, 50, 1, up, 10, 20, false)
	default:
		return fmt.Errorf("unknown train %q", name)
	}
	return nil
}

func (c *trainReservationContext) trainHoldsTheJunctionReservation(name string) error {
	holder, ok := c.table.ReservationHolder(c.interID)
	if !ok {
		return fmt.Errorf("no train holds the junction reservation")
	}
	wantID := railway.TrainID(1)
	if name == "B" {
		wantID = railway.TrainID(2)
	}
	if holder != wantID {
		return fmt.Errorf("expected train %q to hold the junction, got train %d", name, holder)
	}
	return nil
}

func (c *trainReservationContext) trainIsAbortedWithItsDesiredSpeedCapped(name string) error {
	res := c.resB
	if name == "A" {
		res = c.resA
	}
	if !res.Aborted {
		return fmt.Errorf("expected train %q's look-ahead to abort", name)
	}
	if !res.DesiredSpeedCapped {
		return fmt.Errorf("expected train %q's desired speed to be capped", name)
	}
	return nil
}

func (c *trainReservationContext) trainAdvancesPastTheJunction(name string) error {
	if name != "A" {
		return fmt.Errorf("only train A's past-junction advance is modeled by this scenario")
	}
	c.resA = railway.Process(c.table, 1, &c.memA, pathfinder.Traversable{Kind: pathfinder.TraversableTurn, Turn: c.southTurn}, 5, 1, nil, 10, 20, false)
	if c.resA.Aborted {
		return fmt.Errorf("expected train A's past-junction step not to abort")
	}
	return nil
}

func (c *trainReservationContext) theJunctionReservationIsReleased() error {
	if _, ok := c.table.ReservationHolder(c.interID); ok {
		return fmt.Errorf("expected the junction reservation to be released")
	}
	return nil
}

func InitializeTrainReservationScenario(ctx *godog.ScenarioContext) {
	c := &trainReservationContext{}
	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		c.reset()
		return goctx, nil
	})

	ctx.Step(`^a 3-way rail junction with trains "([^"]*)" and "([^"]*)" approaching$`, c.aRailJunctionWithTrainsApproaching)
	ctx.Step(`^train "([^"]*)" commits its look-ahead through the junction$`, c.trainCommitsItsLookAheadThroughTheJunction)
	ctx.Step(`^train "([^"]*)" holds the junction reservation$`, c.trainHoldsTheJunctionReservation)
	ctx.Step(`^train "([^"]*)" is aborted with its desired speed capped$`, c.trainIsAbortedWithItsDesiredSpeedCapped)
	ctx.Step(`^train "([^"]*)" advances past the junction$`, c.trainAdvancesPastTheJunction)
	ctx.Step(`^the junction reservation is released$`, c.theJunctionReservationIsReleased)
}
