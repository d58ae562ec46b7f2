// Package traffic implements the per-vehicle velocity/direction decision
// described in spec.md §4.6 (C6). It is a pure function of its inputs —
// self state, nearby neighbors, lane control, and a small persisted
// gridlock-memory struct — so it has no dependency on the world package;
// the scheduler/world caller supplies neighbor snapshots (queried from the
// spatial index) each tick and stores the returned Memory back onto the
// vehicle.
package traffic

import (
	"math"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/infrastructure/rng"
)

// VehicleState mirrors the subset of world.Vehicle's state enum relevant
// to traffic decisions (spec.md §3 "Vehicle").
type VehicleState int

const (
	StateDriving VehicleState = iota
	StateParked
	StateRoadToPark
	StatePanicking
)

// AgentID is an opaque, caller-assigned identifier for a neighbor, used
// only for gridlock-flag bookkeeping equality checks.
type AgentID uint64

// Neighbor is a snapshot of one nearby vehicle, queried by the caller from
// the spatial index before calling Decide.
type Neighbor struct {
	ID      AgentID
	Pos     geom.Vec2
	Heading geom.Vec2
	Speed   float64
}

// Input bundles one vehicle's own state for a single tick's decision.
type Input struct {
	Self             AgentID
	Pos              geom.Vec2
	Heading          geom.Vec2
	Speed            float64
	State            VehicleState
	Decel            float64
	MinTurningRadius float64
	NextWaypoint     geom.Vec2
	HasWaypoint      bool
	LaneSpeedLimit   float64
	SpeedFactor      float64
	Control          mapmodel.TrafficControl
	AtLaneEnd        bool
}

// Memory is gridlock-breaker state persisted per vehicle across ticks
// (spec.md §4.6 step 6): FlaggedBy holds the blockers this vehicle has
// flagged while both were stalled, and Panicking whether it is currently
// panicking. A second stalled tick behind an already-flagged blocker
// starts a panic; whether the blocker has flagged this vehicle in turn is
// not checked.
type Memory struct {
	FlaggedBy  map[AgentID]bool
	Panicking  bool
	PanicUntil float64
}

func NewMemory() Memory { return Memory{FlaggedBy: make(map[AgentID]bool)} }

// Decision is the per-tick output: desired speed and direction.
type Decision struct {
	DesiredSpeed float64
	DesiredDir   geom.Vec2
}

const (
	frontConeCosThreshold = 0.7
	baseClearance         = 0.8
	neighborQueryBase     = 12.0
)

// Decide computes (desired_speed, desired_dir) for one vehicle, per
// spec.md §4.6 steps 1-7.
func Decide(in Input, neighbors []Neighbor, mem *Memory, now float64, provider *rng.Provider) Decision {
	dir := resolveDir(in)

	if in.State != StateDriving && in.State != StatePanicking {
		return Decision{DesiredSpeed: 0, DesiredDir: dir}
	}

	stopDist := (in.Speed * in.Speed) / max(2*in.Decel, 1e-6)
	frontDist := calcFrontDist(in, neighbors, stopDist, mem, now, provider)

	desired := in.LaneSpeedLimit * in.SpeedFactor
	if frontDist < baseClearance+stopDist {
		desired = 0
	}
	if mem.Panicking {
		if now >= mem.PanicUntil {
			mem.Panicking = false
		} else {
			desired = 0
		}
	}
	if in.AtLaneEnd && in.Control == mapmodel.ControlStopSign {
		desired = 0
	}

	return Decision{DesiredSpeed: desired, DesiredDir: dir}
}

func resolveDir(in Input) geom.Vec2 {
	if !in.HasWaypoint {
		return in.Heading
	}
	target := in.NextWaypoint.Sub(in.Pos).Normalized()
	if target.Len2() < 1e-12 {
		return in.Heading
	}
	maxAngular := 0.0
	if in.MinTurningRadius > 1e-6 {
		maxAngular = in.Speed / in.MinTurningRadius
	}
	return rotateToward(in.Heading, target, maxAngular)
}

func rotateToward(from, to geom.Vec2, maxAngle float64) geom.Vec2 {
	if from.Len2() < 1e-12 {
		return to
	}
	angle := from.AngleTo(to)
	if angle <= maxAngle || maxAngle <= 0 {
		return to
	}
	sign := 1.0
	if from.Cross(to) < 0 {
		sign = -1.0
	}
	cos, sin := math.Cos(sign*maxAngle), math.Sin(sign*maxAngle)
	return geom.NewVec2(
		from.X*cos-from.Y*sin,
		from.X*sin+from.Y*cos,
	).Normalized()
}

// calcFrontDist walks neighbors and, via ray-cone classification, finds the
// minimum clear distance ahead (spec.md §4.6 step 4), applying the
// gridlock breaker described on Memory (step 6) as it goes.
func calcFrontDist(in Input, neighbors []Neighbor, stopDist float64, mem *Memory, now float64, provider *rng.Provider) float64 {
	queryRadius := neighborQueryBase + stopDist
	best := math.Inf(1)
	var blocker *Neighbor

	for i := range neighbors {
		n := &neighbors[i]
		toN := n.Pos.Sub(in.Pos)
		d := toN.Len()
		if d > queryRadius || d < 1e-6 {
			continue
		}
		cos := toN.Normalized().Dot(in.Heading)
		threshold := frontConeCosThreshold * clamp01(in.Speed/5.0+0.3)
		if cos > threshold {
			if d < best {
				best = d
				blocker = n
			}
			continue
		}
		// Crossing-trajectory case: ray-ray intersection, yield to whoever's
		// ray is hit first.
		if hitDist, theirDist, ok := rayRayIntersect(in.Pos, in.Heading, n.Pos, n.Heading); ok {
			if hitDist < theirDist && hitDist < best {
				best = hitDist
				blocker = n
			}
		}
	}

	if blocker != nil && in.Speed < 0.2 && blocker.Speed < 0.2 {
		if mem.FlaggedBy[blocker.ID] {
			mem.Panicking = true
			mem.PanicUntil = now + 1.0 + provider.Range(0, 1.0)
		} else {
			mem.FlaggedBy[blocker.ID] = true
		}
	}
	return best
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// rayRayIntersect finds where two rays (origin + direction) cross, if they
// do, and returns the travel distance along each ray to that point.
func rayRayIntersect(o1, d1, o2, d2 geom.Vec2) (dist1, dist2 float64, ok bool) {
	denom := d1.Cross(d2)
	if math.Abs(denom) < 1e-9 {
		return 0, 0, false
	}
	diff := o2.Sub(o1)
	t1 := diff.Cross(d2) / denom
	t2 := diff.Cross(d1) / denom
	if t1 < 0 || t2 < 0 {
		return 0, 0, false
	}
	return t1, t2, true
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
