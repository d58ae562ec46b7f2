package mapmodel

// GraphKind tags which arena a GraphRef points into, mirroring the small
// closed-enum dispatch pattern used by world.Kind/EntityRef (spec.md §9
// "Dynamic dispatch... replaced by... a closed enum with a match").
type GraphKind uint8

const (
	GraphIntersection GraphKind = iota
	GraphRoad
	GraphBuilding
	GraphLot
)

// GraphRef is the opaque owner token registered in the map's spatial.Grid
// for invariant 5 ("the spatial index contains an entry for every
// intersection, road, building, and lot; no stale entries").
type GraphRef struct {
	Kind  GraphKind
	Index uint32
	Gen   uint32
}

func refOfIntersection(id IntersectionID) GraphRef {
	return GraphRef{Kind: GraphIntersection, Index: id.Index(), Gen: id.Gen()}
}
func refOfRoad(id RoadID) GraphRef {
	return GraphRef{Kind: GraphRoad, Index: id.Index(), Gen: id.Gen()}
}
func refOfBuilding(id BuildingID) GraphRef {
	return GraphRef{Kind: GraphBuilding, Index: id.Index(), Gen: id.Gen()}
}
func refOfLot(id LotID) GraphRef {
	return GraphRef{Kind: GraphLot, Index: id.Index(), Gen: id.Gen()}
}
