package mapmodel

import "github.com/simcore/simcore/internal/domain/geom"

// SubdivideLots carves lotWidth-wide parcels along the flank of road,
// offset by setback from the road edge, tagged with kind. It is the
// structural-edit counterpart to UpdateZone: callers reshape a road's
// frontage into buildable lots before issuing BuildHouse/BuildSpecialBuilding
// commands.
func (m *Map) SubdivideLots(roadID RoadID, kind LotKind, lotWidth, setback float64) []LotID {
	road, ok := m.roads.Get(roadID)
	if !ok {
		return nil
	}
	base := road.interfacedPoints
	if len(base) == 0 {
		base = road.points
	}
	pl, err := geom.NewPolyLine3(base)
	if err != nil {
		return nil
	}
	total := pl.Length()
	flankOffset := road.width/2 + setback
	var out []LotID
	for d := lotWidth / 2; d < total; d += lotWidth {
		center3, _ := pl.PointAt(d)
		next, _ := pl.PointAt(minF(d+0.5, total))
		dir := next.XY().Sub(center3.XY()).Normalized()
		perp := dir.Perpendicular()
		center := center3.XY().Add(perp.Scale(flankOffset))
		obb := geom.NewOBB(center, geom.NewVec2(lotWidth/2, 10), dir)
		lotID := m.lots.Insert(Lot{road: roadID, kind: kind, shape: obb})
		if l, ok := m.lots.Get(lotID); ok {
			l.id = lotID
		}
		h := m.index.Insert(center, refOfLot(lotID))
		m.lotHandles[lotID] = h
		road.lots = append(road.lots, lotID)
		out = append(out, lotID)
	}
	return out
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
