package mapmodel

import "github.com/simcore/simcore/internal/domain/geom"

// railDotThreshold is the "near-straight only" gate for rail turns (spec.md
// §4.2: "Rail turns require dir_in · dir_out ≤ −0.2"). Here dir_in points
// away from the intersection (the reverse of the incoming lane's travel
// direction), so a straight pass has dir_in · dir_out = −1.
const railDotThreshold = -0.2

// laneEnd describes one lane arriving at (incoming) or departing from
// (outgoing) an intersection, with its direction vector at that endpoint.
type laneEnd struct {
	lane LaneID
	dir  geom.Vec2 // direction of travel at the endpoint, pointing INTO the intersection for incoming, OUT for outgoing
	kind LaneKind
}

// regenerateTurns rebuilds every Turn anchored at intersection id, following
// the policy-driven generation rules of spec.md §4.2.
func (m *Map) regenerateTurns(id IntersectionID) {
	i, ok := m.intersections.Get(id)
	if !ok {
		return
	}
	m.clearTurnsAt(id)

	incoming, outgoing := m.laneEndsAt(i)

	switch len(i.roads) {
	case 1:
		m.zipForwardIntoBackward(id, incoming, outgoing)
	case 2:
		m.straightThroughPairings(id, incoming, outgoing, i.turnPolicy.BackTurns)
	default:
		m.crossProductPairings(id, incoming, outgoing, i.turnPolicy)
	}
	m.walkingCorners(id, incoming, outgoing)
	if i.turnPolicy.Crosswalks {
		m.crosswalks(id, incoming, outgoing)
	}
}

func (m *Map) clearTurnsAt(id IntersectionID) {
	var toRemove []TurnID
	m.turns.Each(func(tid TurnID, t *Turn) {
		if t.intersection == id {
			toRemove = append(toRemove, tid)
		}
	})
	for _, tid := range toRemove {
		t, _ := m.turns.Get(tid)
		if t != nil {
			m.unindexTurn(tid, t.src)
		}
		m.turns.Remove(tid)
	}
}

func (m *Map) unindexTurn(tid TurnID, src LaneID) {
	list := m.turnsBySrcLane[src]
	for i, x := range list {
		if x == tid {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(m.turnsBySrcLane, src)
	} else {
		m.turnsBySrcLane[src] = list
	}
}

// laneEndsAt splits every lane incident to i into incoming (arrives at i)
// and outgoing (departs from i) sets, with direction vectors evaluated at
// that endpoint.
func (m *Map) laneEndsAt(i *Intersection) (incoming, outgoing []laneEnd) {
	for _, roadID := range i.roads {
		road, ok := m.roads.Get(roadID)
		if !ok {
			continue
		}
		for _, laneID := range road.forward {
			lane, ok := m.lanes.Get(laneID)
			if !ok || lane.polyline == nil {
				continue
			}
			if road.dst == i.id {
				incoming = append(incoming, endAt(lane, true))
			}
			if road.src == i.id {
				outgoing = append(outgoing, endAt(lane, false))
			}
		}
		for _, laneID := range road.backward {
			lane, ok := m.lanes.Get(laneID)
			if !ok || lane.polyline == nil {
				continue
			}
			// backward lanes travel dst->src
			if road.src == i.id {
				incoming = append(incoming, endAt(lane, true))
			}
			if road.dst == i.id {
				outgoing = append(outgoing, endAt(lane, false))
			}
		}
	}
	return
}

func endAt(lane *Lane, arriving bool) laneEnd {
	pts := lane.polyline.Points()
	var dir geom.Vec2
	if len(pts) >= 2 {
		if arriving {
			dir = pts[len(pts)-1].XY().Sub(pts[len(pts)-2].XY()).Normalized()
		} else {
			dir = pts[1].XY().Sub(pts[0].XY()).Normalized()
		}
	}
	return laneEnd{lane: lane.id, dir: dir, kind: lane.kind}
}

func (m *Map) addTurn(interID IntersectionID, src, dst LaneID, isWalking bool, kind TurnKind) {
	srcLane, ok1 := m.lanes.Get(src)
	dstLane, ok2 := m.lanes.Get(dst)
	if !ok1 || !ok2 || srcLane.polyline == nil || dstLane.polyline == nil {
		return
	}
	pts := []geom.Vec3{srcLane.polyline.Last(), dstLane.polyline.First()}
	pl, err := geom.NewPolyLine3(pts)
	if err != nil {
		return
	}
	tid := m.turns.Insert(Turn{intersection: interID, src: src, dst: dst, isWalking: isWalking, kind: kind, polyline: pl})
	m.turnsBySrcLane[src] = append(m.turnsBySrcLane[src], tid)
}

// zipForwardIntoBackward handles the 1-road dead-end case: every forward
// (driving/rail) lane connects to the corresponding backward lane, a
// U-turn in place.
func (m *Map) zipForwardIntoBackward(id IntersectionID, incoming, outgoing []laneEnd) {
	for _, in := range incoming {
		if in.kind != LaneDriving && in.kind != LaneRail {
			continue
		}
		for _, out := range outgoing {
			if out.kind != in.kind {
				continue
			}
			m.addTurn(id, in.lane, out.lane, false, kindFor(in.kind))
			break
		}
	}
}

// straightThroughPairings handles the 2-road case: lanes of the same kind
// pair straight through, plus U-turns back the way they came if enabled.
func (m *Map) straightThroughPairings(id IntersectionID, incoming, outgoing []laneEnd, backTurns bool) {
	for _, in := range incoming {
		if in.kind != LaneDriving && in.kind != LaneRail {
			continue
		}
		bestDot := -2.0
		var best *laneEnd
		for oi := range outgoing {
			out := &outgoing[oi]
			if out.kind != in.kind {
				continue
			}
			dot := in.dir.Dot(out.dir)
			if in.kind == LaneRail && -dot > railDotThreshold {
				continue
			}
			if dot < -0.9 {
				continue // near-180 (U-turn) pairs are added below if enabled
			}
			if dot > bestDot {
				bestDot = dot
				best = out
			}
		}
		if best != nil {
			m.addTurn(id, in.lane, best.lane, false, kindFor(in.kind))
		}
		if backTurns && in.kind == LaneDriving {
			for _, out := range outgoing {
				if out.kind == in.kind && in.dir.Dot(out.dir) < -0.9 {
					m.addTurn(id, in.lane, out.lane, false, kindFor(in.kind))
				}
			}
		}
	}
}

// crossProductPairings handles intersections with 3+ incident roads: full
// cross product of incoming×outgoing lanes of matching kind, gated by the
// dot-product left-turn test (and the stricter rail test).
func (m *Map) crossProductPairings(id IntersectionID, incoming, outgoing []laneEnd, policy TurnPolicy) {
	for _, in := range incoming {
		if in.kind != LaneDriving && in.kind != LaneRail {
			continue
		}
		for _, out := range outgoing {
			if out.kind != in.kind {
				continue
			}
			dot := in.dir.Dot(out.dir)
			if in.kind == LaneRail {
				if -dot > railDotThreshold {
					continue
				}
			} else {
				isLeft := in.dir.Cross(out.dir) > 0 && dot < 0.2
				if isLeft && !policy.LeftTurns {
					continue
				}
				if dot < -0.95 && !policy.BackTurns {
					continue
				}
			}
			m.addTurn(id, in.lane, out.lane, false, kindFor(in.kind))
		}
	}
}

func kindFor(k LaneKind) TurnKind {
	if k == LaneRail {
		return TurnRail
	}
	return TurnDriving
}

// walkingCorners always connects sidewalks, independent of policy: every
// incoming walking lane is joined to every outgoing walking lane except
// its direct reversal. Adjacency around the intersection is not checked.
func (m *Map) walkingCorners(id IntersectionID, incoming, outgoing []laneEnd) {
	var inW, outW []laneEnd
	for _, e := range incoming {
		if e.kind == LaneWalking {
			inW = append(inW, e)
		}
	}
	for _, e := range outgoing {
		if e.kind == LaneWalking {
			outW = append(outW, e)
		}
	}
	for _, in := range inW {
		for _, out := range outW {
			if in.dir.Dot(out.dir) > -0.99 { // skip direct reversal, handled by crosswalks
				m.addTurn(id, in.lane, out.lane, true, TurnWalkingCorner)
			}
		}
	}
}

// crosswalks connect opposing sidewalks directly across the intersection.
func (m *Map) crosswalks(id IntersectionID, incoming, outgoing []laneEnd) {
	for _, in := range incoming {
		if in.kind != LaneWalking {
			continue
		}
		for _, out := range outgoing {
			if out.kind != LaneWalking {
				continue
			}
			if in.dir.Dot(out.dir) < -0.9 {
				m.addTurn(id, in.lane, out.lane, true, TurnCrosswalk)
			}
		}
	}
}
