// Package dispatch implements the "closest free matching entity" lookup of
// spec.md §4.8 (C10): generalized from the teacher's fleet.Selector
// (closest-by-distance selection with a priority/reservation override)
// into a lane-indexed registry searched by backward BFS over the map
// graph. Entities are referenced by an opaque caller-assigned EntityRef,
// keeping this package free of a world import.
package dispatch

import (
	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
)

// Kind is the dispatchable entity category, which determines which lane
// kind it can be indexed against.
type Kind int

const (
	KindFreightTrain Kind = iota
	KindSmallTruck
)

func (k Kind) laneKind() mapmodel.LaneKind {
	if k == KindFreightTrain {
		return mapmodel.LaneRail
	}
	return mapmodel.LaneDriving
}

// EntityRef is an opaque handle to a dispatchable entity (train or truck),
// caller-assigned.
type EntityRef uint64

// RequesterRef is an opaque handle to whatever is asking for an entity
// (e.g. a freight station).
type RequesterRef uint64

// jitterThresholdSq is the squared-distance a cached entity location must
// move before update() bothers re-indexing it (spec.md §4.8 "a precision
// of 5 m avoids reshuffling for jitter").
const jitterThresholdSq = 5.0 * 5.0

type entityState struct {
	pos  geom.Vec2
	lane mapmodel.LaneID
}

// Registry is the process-wide dispatch table: one lane index and
// reservation map per entity kind.
type Registry struct {
	byKind map[Kind]*kindRegistry
}

type kindRegistry struct {
	state       map[EntityRef]entityState
	byLane      map[mapmodel.LaneID][]EntityRef
	reservedBy  map[EntityRef]RequesterRef
	reservation map[RequesterRef]EntityRef
}

func newKindRegistry() *kindRegistry {
	return &kindRegistry{
		state:       make(map[EntityRef]entityState),
		byLane:      make(map[mapmodel.LaneID][]EntityRef),
		reservedBy:  make(map[EntityRef]RequesterRef),
		reservation: make(map[RequesterRef]EntityRef),
	}
}

func NewRegistry() *Registry {
	r := &Registry{byKind: make(map[Kind]*kindRegistry)}
	r.byKind[KindFreightTrain] = newKindRegistry()
	r.byKind[KindSmallTruck] = newKindRegistry()
	return r
}

func (r *Registry) kindReg(k Kind) *kindRegistry { return r.byKind[k] }

// LivenessCheck reports whether a requester holding a reservation is
// still considered active; callers inject liveness since only the world
// knows whether a requester entity still exists.
type LivenessCheck func(RequesterRef) bool

// Update re-indexes every entity of kind k by nearest lane of matching
// kind, skipping entities still held by a live reservation and entities
// that haven't moved past the jitter threshold since last indexed (spec.md
// §4.8 "update(map, world, query)").
func (reg *Registry) Update(m *mapmodel.Map, k Kind, entities map[EntityRef]geom.Vec2, isLive LivenessCheck) {
	kr := reg.kindReg(k)
	for id, pos := range entities {
		if requester, ok := kr.reservedBy[id]; ok && isLive(requester) {
			continue
		}
		if prev, ok := kr.state[id]; ok && prev.pos.DistanceTo2(pos) < jitterThresholdSq {
			continue
		}
		laneID, ok := nearestLaneOfKind(m, pos, k.laneKind())
		if !ok {
			continue
		}
		reindex(kr, id, pos, laneID)
	}
}

func reindex(kr *kindRegistry, id EntityRef, pos geom.Vec2, laneID mapmodel.LaneID) {
	if prev, ok := kr.state[id]; ok {
		removeFromLane(kr, prev.lane, id)
	}
	kr.state[id] = entityState{pos: pos, lane: laneID}
	kr.byLane[laneID] = append(kr.byLane[laneID], id)
}

func removeFromLane(kr *kindRegistry, laneID mapmodel.LaneID, id EntityRef) {
	list := kr.byLane[laneID]
	for i, e := range list {
		if e == id {
			kr.byLane[laneID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(kr.byLane[laneID]) == 0 {
		delete(kr.byLane, laneID)
	}
}

func nearestLaneOfKind(m *mapmodel.Map, pos geom.Vec2, lk mapmodel.LaneKind) (mapmodel.LaneID, bool) {
	best := -1.0
	var bestID mapmodel.LaneID
	found := false
	m.EachLane(func(id mapmodel.LaneID, lane *mapmodel.Lane) {
		if lane.Kind() != lk {
			return
		}
		pts := lane.Polyline().Points()
		if len(pts) == 0 {
			return
		}
		d := pos.DistanceTo2(pts[len(pts)-1].XY())
		if !found || d < best {
			best, bestID, found = d, id, true
		}
	})
	return bestID, found
}

// TargetKind tags a Query target as a position (resolved to its nearest
// lane) or a lane ID directly.
type TargetKind int

const (
	TargetPosition TargetKind = iota
	TargetLane
)

type Target struct {
	Kind TargetKind
	Pos  geom.Vec2
	Lane mapmodel.LaneID
}

func PositionTarget(p geom.Vec2) Target             { return Target{Kind: TargetPosition, Pos: p} }
func LaneTarget(id mapmodel.LaneID) Target          { return Target{Kind: TargetLane, Lane: id} }

// Query performs a backward BFS over the lane graph from target's lane,
// per spec.md §4.8: the dispatchable is approaching from upstream, so
// search predecessor lanes (via turns whose Dst is the current lane)
// layer by layer until one with a matching entity is found, then pick the
// farthest-along candidate at that depth: the one whose indexed position
// is closest to the end of its lane, ties going to the first found.
// Reserves the winner for requester until Free is called.
func (reg *Registry) Query(m *mapmodel.Map, requester RequesterRef, k Kind, target Target) (EntityRef, bool) {
	kr := reg.kindReg(k)
	if existing, ok := kr.reservation[requester]; ok {
		return existing, true
	}

	startLane := target.Lane
	if target.Kind == TargetPosition {
		laneID, ok := nearestLaneOfKind(m, target.Pos, k.laneKind())
		if !ok {
			return 0, false
		}
		startLane = laneID
	}

	visited := map[mapmodel.LaneID]bool{startLane: true}
	frontier := []mapmodel.LaneID{startLane}

	for len(frontier) > 0 {
		var candidates []EntityRef
		for _, lane := range frontier {
			for _, id := range kr.byLane[lane] {
				if _, reserved := kr.reservedBy[id]; reserved {
					continue
				}
				candidates = append(candidates, id)
			}
		}
		if len(candidates) > 0 {
			winner := candidates[0]
			bestDistSq := -1.0
			for _, id := range candidates {
				st := kr.state[id]
				lane, ok := m.Lane(st.lane)
				if !ok {
					continue
				}
				pts := lane.Polyline().Points()
				if len(pts) == 0 {
					continue
				}
				if d := st.pos.DistanceTo2(pts[len(pts)-1].XY()); bestDistSq < 0 || d < bestDistSq {
					winner, bestDistSq = id, d
				}
			}
			kr.reservedBy[winner] = requester
			kr.reservation[requester] = winner
			return winner, true
		}

		var next []mapmodel.LaneID
		for _, lane := range frontier {
			for _, predLane := range predecessorsOf(m, lane) {
				if visited[predLane] {
					continue
				}
				visited[predLane] = true
				next = append(next, predLane)
			}
		}
		frontier = next
	}
	return 0, false
}

// predecessorsOf finds every lane with a turn leading into lane, by
// scanning all turns (small maps; no dedicated reverse index exists since
// turns.go only indexes forward by source lane).
func predecessorsOf(m *mapmodel.Map, lane mapmodel.LaneID) []mapmodel.LaneID {
	var out []mapmodel.LaneID
	m.EachLane(func(srcLaneID mapmodel.LaneID, _ *mapmodel.Lane) {
		for _, turnID := range m.TurnsFrom(srcLaneID) {
			turn, ok := m.Turn(turnID)
			if ok && turn.Dst() == lane {
				out = append(out, srcLaneID)
			}
		}
	})
	return out
}

// Free releases requester's reservation, if any, per spec.md §4.8
// "Reservation is recorded so no other requester takes the entity until
// free()".
func (reg *Registry) Free(k Kind, requester RequesterRef) {
	kr := reg.kindReg(k)
	if id, ok := kr.reservation[requester]; ok {
		delete(kr.reservedBy, id)
		delete(kr.reservation, requester)
	}
}
