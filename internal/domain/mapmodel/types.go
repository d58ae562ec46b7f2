package mapmodel

import "github.com/simcore/simcore/internal/domain/geom"

// LaneKind is the travel mode a lane carries.
type LaneKind int

const (
	LaneWalking LaneKind = iota
	LaneDriving
	LaneParking
	LaneRail
)

// TrafficControl governs how a vehicle or train yields at a lane's end.
type TrafficControl int

const (
	ControlAlways TrafficControl = iota
	ControlStopSign
	ControlLight
)

// TurnKind classifies a Turn for pathfinder/traffic filtering.
type TurnKind int

const (
	TurnDriving TurnKind = iota
	TurnWalkingCorner
	TurnCrosswalk
	TurnRail
)

// LotKind classifies a parcel.
type LotKind int

const (
	LotUnassigned LotKind = iota
	LotResidential
	LotCommercial
)

// BuildingKind classifies a Building.
type BuildingKind int

const (
	BuildingHouse BuildingKind = iota
	BuildingGoodsCompany
	BuildingFreightStation
	BuildingExternalTrade
)

// LightPolicy and TurnPolicy are per-intersection editable settings that
// govern generated turns (spec.md §4.2 "turn generation policy").
type TurnPolicy struct {
	LeftTurns bool
	BackTurns bool
	Crosswalks bool
}

type LightPolicy int

const (
	LightNone LightPolicy = iota
	LightTimed
	LightAllWay
)

// Intersection is a map graph node: a position, the incident roads (in the
// order they were connected; they are not sorted by angle), and the
// policies that govern turn generation (spec.md §3 "Map graph" /
// Intersection).
type Intersection struct {
	id         IntersectionID
	pos        geom.Vec2
	roads      []RoadID // in connection order
	turnPolicy TurnPolicy
	lightPolicy LightPolicy
	footprint  []geom.Vec2
}

func (i *Intersection) ID() IntersectionID        { return i.id }
func (i *Intersection) Pos() geom.Vec2            { return i.pos }
func (i *Intersection) Roads() []RoadID           { cp := make([]RoadID, len(i.roads)); copy(cp, i.roads); return cp }
func (i *Intersection) TurnPolicy() TurnPolicy    { return i.turnPolicy }
func (i *Intersection) LightPolicy() LightPolicy  { return i.lightPolicy }
func (i *Intersection) Footprint() []geom.Vec2 {
	cp := make([]geom.Vec2, len(i.footprint))
	copy(cp, i.footprint)
	return cp
}

// SegmentShape is either a straight two-point polyline or a cubic curve
// carrying two derivatives (spec.md §3 "Road" / "segment shape").
type SegmentShape struct {
	Curved    bool
	FromDeriv geom.Vec3
	ToDeriv   geom.Vec3
	// Viaduct marks that the road keeps its spline Z rather than following
	// ground height (spec.md §4.2 "Height follows ground unless the road is
	// a viaduct/bridge").
	Viaduct bool
}

// Road is a directed graph edge between two intersections.
type Road struct {
	id       RoadID
	src, dst IntersectionID
	shape    SegmentShape
	width    float64
	forward  []LaneID
	backward []LaneID
	lots     []LotID

	// interfaceFromSrc/Dst are how far back from each intersection the
	// roadway actually starts (spec.md §3 invariant 3).
	interfaceFromSrc, interfaceFromDst float64

	// points is the road's raw centerline before interface clamping.
	points []geom.Vec3
	// interfacedPoints is points cut by the interface lengths (invariant 3).
	interfacedPoints []geom.Vec3
}

func (r *Road) ID() RoadID          { return r.id }
func (r *Road) Src() IntersectionID { return r.src }
func (r *Road) Dst() IntersectionID { return r.dst }
func (r *Road) Width() float64      { return r.width }
func (r *Road) Forward() []LaneID   { cp := make([]LaneID, len(r.forward)); copy(cp, r.forward); return cp }
func (r *Road) Backward() []LaneID  { cp := make([]LaneID, len(r.backward)); copy(cp, r.backward); return cp }
func (r *Road) Lots() []LotID       { cp := make([]LotID, len(r.lots)); copy(cp, r.lots); return cp }
func (r *Road) Shape() SegmentShape { return r.shape }
func (r *Road) InterfaceLengths() (float64, float64) { return r.interfaceFromSrc, r.interfaceFromDst }
func (r *Road) Points() []geom.Vec3 {
	cp := make([]geom.Vec3, len(r.points))
	copy(cp, r.points)
	return cp
}
func (r *Road) InterfacedPoints() []geom.Vec3 {
	cp := make([]geom.Vec3, len(r.interfacedPoints))
	copy(cp, r.interfacedPoints)
	return cp
}

func (r *Road) length() float64 {
	total := 0.0
	for i := 1; i < len(r.points); i++ {
		total += r.points[i].DistanceTo(r.points[i-1])
	}
	return total
}

// Lane is a single travel lane, carrying its own offset polyline derived
// from the parent road's interfaced centerline.
type Lane struct {
	id         LaneID
	road       RoadID
	kind       LaneKind
	polyline   *geom.PolyLine3
	// lateralOffset is the signed distance from the road centerline used to
	// regenerate polyline on structural edits.
	lateralOffset float64
	speedLimit    float64
	control       TrafficControl
}

func (l *Lane) ID() LaneID                   { return l.id }
func (l *Lane) Road() RoadID                 { return l.road }
func (l *Lane) Kind() LaneKind               { return l.kind }
func (l *Lane) Polyline() *geom.PolyLine3    { return l.polyline }
func (l *Lane) SpeedLimit() float64          { return l.speedLimit }
func (l *Lane) Control() TrafficControl      { return l.control }
func (l *Lane) LateralOffset() float64       { return l.lateralOffset }

// Turn connects one lane to another through an intersection.
type Turn struct {
	id           TurnID
	intersection IntersectionID
	src, dst     LaneID
	isWalking    bool
	kind         TurnKind
	polyline     *geom.PolyLine3
}

func (t *Turn) ID() TurnID                    { return t.id }
func (t *Turn) Intersection() IntersectionID  { return t.intersection }
func (t *Turn) Src() LaneID                   { return t.src }
func (t *Turn) Dst() LaneID                   { return t.dst }
func (t *Turn) IsWalking() bool               { return t.isWalking }
func (t *Turn) Kind() TurnKind                { return t.kind }
func (t *Turn) Polyline() *geom.PolyLine3     { return t.polyline }

func (t *Turn) length() float64 {
	if t.polyline == nil {
		return 0
	}
	return t.polyline.Length()
}

// Lot is a parcel on a road's flank, awaiting a building.
type Lot struct {
	id    LotID
	road  RoadID
	kind  LotKind
	shape geom.OBB
}

func (l *Lot) ID() LotID        { return l.id }
func (l *Lot) Road() RoadID     { return l.road }
func (l *Lot) Kind() LotKind    { return l.kind }
func (l *Lot) Shape() geom.OBB  { return l.shape }

// Building occupies a footprint, optionally zoned.
type Building struct {
	id           BuildingID
	kind         BuildingKind
	footprint    geom.OBB
	door         geom.Vec2
	zone         []geom.Vec2
	connectedRoad RoadID
	hasRoad      bool
}

func (b *Building) ID() BuildingID       { return b.id }
func (b *Building) Kind() BuildingKind   { return b.kind }
func (b *Building) Footprint() geom.OBB  { return b.footprint }
func (b *Building) Door() geom.Vec2      { return b.door }
func (b *Building) Zone() []geom.Vec2 {
	cp := make([]geom.Vec2, len(b.zone))
	copy(cp, b.zone)
	return cp
}
func (b *Building) ConnectedRoad() (RoadID, bool) { return b.connectedRoad, b.hasRoad }
