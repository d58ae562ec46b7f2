package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/terrain"
)

// railDotThreshold mirrors mapmodel's unexported near-straight gate
// (spec.md §8 scenario 2: "in.dir · out.dir ≤ −0.2").
const railDotThreshold = -0.2

// roundaboutTurnContext drives spec.md §8 scenario 2 through mapmodel's
// public MakeConnection/TurnsFrom/Turn/Lane surface, the same one
// internal/domain/mapmodel/map_test.go's TestRailTurnGating exercises.
type roundaboutTurnContext struct {
	m       *mapmodel.Map
	center  mapmodel.IntersectionID
	checked int
	err     error
}

func railPattern() mapmodel.LanePattern {
	return mapmodel.LanePattern{
		Forward: []mapmodel.LaneSpec{{Kind: mapmodel.LaneRail, Width: 1.5, SpeedLimit: 30, Control: mapmodel.ControlAlways}},
	}
}

func (c *roundaboutTurnContext) reset() {
	c.m = nil
	c.center = 0
	c.checked = 0
	c.err = nil
}

func (c *roundaboutTurnContext) aRailIntersectionWithSpokes() error {
	c.m = mapmodel.NewMap(terrain.NewHeightmap())
	center := geom.NewVec2(0, 0)
	north, south := geom.NewVec2(0, 100), geom.NewVec2(0, -100)
	east, west := geom.NewVec2(100, 0), geom.NewVec2(-100, 0)

	interID, _, err := c.m.MakeConnection(mapmodel.GroundProject(north), mapmodel.GroundProject(center), nil, railPattern())
	if err != nil {
		return err
	}
	centerProj := mapmodel.IntersectionProject(interID)

	if _, _, err := c.m.MakeConnection(centerProj, mapmodel.GroundProject(south), nil, railPattern()); err != nil {
		return err
	}
	if _, _, err := c.m.MakeConnection(mapmodel.GroundProject(east), centerProj, nil, railPattern()); err != nil {
		return err
	}
	if _, _, err := c.m.MakeConnection(centerProj, mapmodel.GroundProject(west), nil, railPattern()); err != nil {
		return err
	}
	c.center = interID
	return nil
}

func (c *roundaboutTurnContext) turnsAreGeneratedForTheIntersection() error {
	inter, ok := c.m.Intersection(c.center)
	if !ok {
		return fmt.Errorf("intersection not found")
	}
	if len(inter.Roads()) != 4 {
		return fmt.Errorf("expected 4 incident roads, got %d", len(inter.Roads()))
	}
	for _, roadID := range inter.Roads() {
		road, ok := c.m.Road(roadID)
		if !ok {
			continue
		}
		for _, laneID := range road.Forward() {
			for _, turnID := range c.m.TurnsFrom(laneID) {
				turn, ok := c.m.Turn(turnID)
				if !ok || turn.Intersection() != c.center || turn.Kind() != mapmodel.TurnRail {
					continue
				}
				dot, err := c.turnDot(turn)
				if err != nil {
					return err
				}
				if dot > railDotThreshold+1e-9 {
					return fmt.Errorf("turn %d violates straight-pairing gate: dot=%f", turnID, dot)
				}
				c.checked++
			}
		}
	}
	return nil
}

func (c *roundaboutTurnContext) turnDot(turn *mapmodel.Turn) (float64, error) {
	srcLane, ok := c.m.Lane(turn.Src())
	if !ok {
		return 0, fmt.Errorf("src lane not found")
	}
	dstLane, ok := c.m.Lane(turn.Dst())
	if !ok {
		return 0, fmt.Errorf("dst lane not found")
	}
	srcPts := srcLane.Polyline().Points()
	dstPts := dstLane.Polyline().Points()
	inDir := srcPts[len(srcPts)-2].XY().Sub(srcPts[len(srcPts)-1].XY()).Normalized() // points away from the intersection
	outDir := dstPts[1].XY().Sub(dstPts[0].XY()).Normalized()
	return inDir.Dot(outDir), nil
}

func (c *roundaboutTurnContext) everyGeneratedRailTurnSatisfiesTheGate() error {
	if c.checked == 0 {
		return fmt.Errorf("no rail turns were checked")
	}
	return nil
}

func InitializeRoundaboutTurnScenario(ctx *godog.ScenarioContext) {
	c := &roundaboutTurnContext{}
	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		c.reset()
		return goctx, nil
	})

	ctx.Step(`^a rail intersection with spokes to the north, south, east, and west$`, c.aRailIntersectionWithSpokes)
	ctx.Step(`^turns are generated for the intersection$`, c.turnsAreGeneratedForTheIntersection)
	ctx.Step(`^every generated rail turn satisfies the straight-pairing angle gate$`, c.everyGeneratedRailTurnSatisfiesTheGate)
}
