// Package mapmodel implements the road/rail map graph described in
// spec.md §3 ("Map graph") and §4.2 (C3): intersections, roads, lanes,
// turns, lots, and buildings, plus the structural-edit operations that
// keep their invariants intact. Entity encapsulation (private fields,
// accessor methods, constructors that validate) follows
// internal/domain/market/market.go's value-object style in the teacher
// repo.
package mapmodel

import "github.com/simcore/simcore/internal/domain/slotmap"

type (
	intersectionTag struct{}
	roadTag         struct{}
	laneTag         struct{}
	turnTag         struct{}
	lotTag          struct{}
	buildingTag     struct{}
)

type (
	IntersectionID = slotmap.ID[intersectionTag]
	RoadID         = slotmap.ID[roadTag]
	LaneID         = slotmap.ID[laneTag]
	TurnID         = slotmap.ID[turnTag]
	LotID          = slotmap.ID[lotTag]
	BuildingID     = slotmap.ID[buildingTag]
)
