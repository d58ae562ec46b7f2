package mapmodel

import "github.com/simcore/simcore/internal/domain/geom"

// splitRoad implements the ProjectRoad case of make_connection (spec.md
// §4.2: "When projecting onto a road, the road is split at the projection
// point into two roads sharing a new intersection"). The split point is
// approximated onto the road's existing centerline as a straight cut; this
// is a deliberate simplification over resampling the original curve (see
// DESIGN.md).
func (m *Map) splitRoad(roadID RoadID, at geom.Vec2) (IntersectionID, error) {
	road, ok := m.roads.Get(roadID)
	if !ok {
		return IntersectionID{}, ErrNotFound
	}
	src, dst := road.src, road.dst
	width := road.width
	forwardLanes := len(road.forward)
	backwardLanes := len(road.backward)

	newInter := m.createIntersection(at)

	pattern := patternFromExisting(road)

	if err := m.RemoveRoad(roadID); err != nil {
		return IntersectionID{}, err
	}

	roadA, err := m.buildSplitSegment(src, newInter, pattern, width, forwardLanes, backwardLanes)
	if err != nil {
		return IntersectionID{}, err
	}
	_ = roadA
	_, err = m.buildSplitSegment(newInter, dst, pattern, width, forwardLanes, backwardLanes)
	if err != nil {
		return IntersectionID{}, err
	}
	return newInter, nil
}

func patternFromExisting(road *Road) LanePattern {
	// Without the original per-lane specs retained, reconstruct a
	// reasonable default pattern matching the lane counts; this loses
	// per-lane speed-limit/control customization across a split, a known
	// limitation recorded in DESIGN.md.
	p := LanePattern{}
	for range road.forward {
		p.Forward = append(p.Forward, LaneSpec{Kind: LaneDriving, Width: 3.5, SpeedLimit: 13.9, Control: ControlAlways})
	}
	for range road.backward {
		p.Backward = append(p.Backward, LaneSpec{Kind: LaneDriving, Width: 3.5, SpeedLimit: 13.9, Control: ControlAlways})
	}
	return p
}

func (m *Map) buildSplitSegment(src, dst IntersectionID, pattern LanePattern, _ float64, _, _ int) (RoadID, error) {
	srcI, ok1 := m.intersections.Get(src)
	dstI, ok2 := m.intersections.Get(dst)
	if !ok1 || !ok2 {
		return RoadID{}, ErrNotFound
	}
	shape, points, err := buildSegmentShape(srcI.pos, dstI.pos, nil)
	if err != nil {
		return RoadID{}, err
	}
	roadID := m.roads.Insert(Road{src: src, dst: dst, shape: shape, width: pattern.totalWidth(), points: points})
	if road, ok := m.roads.Get(roadID); ok {
		road.id = roadID
	}
	m.attachLanes(roadID, pattern)
	m.clampInterfaces(roadID)
	m.regenerateLanePolylines(roadID)
	m.registerRoad(roadID)
	m.appendIncidentRoad(src, roadID)
	m.appendIncidentRoad(dst, roadID)
	m.regenerateTurns(src)
	m.regenerateTurns(dst)
	return roadID, nil
}
