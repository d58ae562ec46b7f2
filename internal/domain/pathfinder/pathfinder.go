// Package pathfinder implements the A* search over the map's lane/turn
// graph described in spec.md §4.3 (C4): nodes are lane IDs, edges are
// turns connecting them, filtered by PathKind. It never panics — an
// unreachable destination returns (nil, false) — and callers (itinerary)
// fall back to a wait-for-reroute state.
package pathfinder

import (
	"container/heap"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
)

// PathKind filters which lanes/turns a search may traverse.
type PathKind int

const (
	PathVehicle PathKind = iota
	PathPedestrian
	PathRail
)

// TraversableKind distinguishes a lane hop from a turn hop in a result path.
type TraversableKind int

const (
	TraversableLane TraversableKind = iota
	TraversableTurn
)

// Traversable is one lane or turn, with direction, the unit of a path
// (spec.md Glossary).
type Traversable struct {
	Kind TraversableKind
	Lane mapmodel.LaneID
	Turn mapmodel.TurnID
}

func laneAllowed(kind PathKind, lk mapmodel.LaneKind) bool {
	switch kind {
	case PathVehicle:
		return lk == mapmodel.LaneDriving
	case PathPedestrian:
		return lk == mapmodel.LaneWalking
	case PathRail:
		return lk == mapmodel.LaneRail
	default:
		return false
	}
}

func turnAllowed(kind PathKind, tk mapmodel.TurnKind) bool {
	switch kind {
	case PathVehicle:
		return tk == mapmodel.TurnDriving
	case PathPedestrian:
		return tk == mapmodel.TurnWalkingCorner || tk == mapmodel.TurnCrosswalk
	case PathRail:
		return tk == mapmodel.TurnRail
	default:
		return false
	}
}

type cacheKey struct {
	src, dst mapmodel.LaneID
	kind     PathKind
}

// Pathfinder holds a per-PathKind result cache keyed by (src-lane,
// dst-lane), per spec.md §4.3.
type Pathfinder struct {
	m     *mapmodel.Map
	cache map[cacheKey][]Traversable
}

func New(m *mapmodel.Map) *Pathfinder {
	return &Pathfinder{m: m, cache: make(map[cacheKey][]Traversable)}
}

// InvalidateCache drops all cached queries; called after any structural map
// edit since lane connectivity may have changed.
func (p *Pathfinder) InvalidateCache() {
	p.cache = make(map[cacheKey][]Traversable)
}

// FindPath runs A* from srcLane to dstLane filtered by kind. It returns
// (nil, true) for a same-lane query (spec.md §8 "Path from a lane to
// itself returns a direct local path with no traversables") and (nil,
// false) if no path exists.
func (p *Pathfinder) FindPath(srcLane, dstLane mapmodel.LaneID, kind PathKind) ([]Traversable, bool) {
	if srcLane == dstLane {
		return nil, true
	}
	key := cacheKey{src: srcLane, dst: dstLane, kind: kind}
	if cached, ok := p.cache[key]; ok {
		return cached, true
	}

	dstLaneObj, ok := p.m.Lane(dstLane)
	if !ok {
		return nil, false
	}
	goal := dstLaneObj.Polyline().First().XY()

	open := &nodeHeap{}
	heap.Init(open)
	heap.Push(open, &searchNode{lane: srcLane, g: 0, f: p.heuristic(srcLane, goal)})

	cameFromTurn := make(map[mapmodel.LaneID]mapmodel.TurnID)
	bestG := map[mapmodel.LaneID]float64{srcLane: 0}
	visited := make(map[mapmodel.LaneID]bool)

	for open.Len() > 0 {
		cur := heap.Pop(open).(*searchNode)
		if visited[cur.lane] {
			continue
		}
		visited[cur.lane] = true
		if cur.lane == dstLane {
			path := p.reconstruct(cameFromTurn, srcLane, dstLane)
			p.cache[key] = path
			return path, true
		}

		lane, ok := p.m.Lane(cur.lane)
		if !ok {
			continue
		}
		for _, turnID := range p.m.TurnsFrom(cur.lane) {
			turn, ok := p.m.Turn(turnID)
			if !ok || !turnAllowed(kind, turn.Kind()) {
				continue
			}
			nextLaneID := turn.Dst()
			nextLane, ok := p.m.Lane(nextLaneID)
			if !ok || !laneAllowed(kind, nextLane.Kind()) {
				continue
			}
			edgeCost := lane.Polyline().Length() + turnLength(turn)
			tentativeG := cur.g + edgeCost
			if existing, ok := bestG[nextLaneID]; !ok || tentativeG < existing {
				bestG[nextLaneID] = tentativeG
				cameFromTurn[nextLaneID] = turnID
				heap.Push(open, &searchNode{lane: nextLaneID, g: tentativeG, f: tentativeG + p.heuristic(nextLaneID, goal)})
			}
		}
	}
	return nil, false
}

func (p *Pathfinder) heuristic(laneID mapmodel.LaneID, goal geom.Vec2) float64 {
	lane, ok := p.m.Lane(laneID)
	if !ok {
		return 0
	}
	end := lane.Polyline().Last().XY()
	return end.DistanceTo(goal)
}

func turnLength(t *mapmodel.Turn) float64 {
	if t.Polyline() == nil {
		return 0
	}
	return t.Polyline().Length()
}

// reconstruct walks cameFromTurn backward from dst to src, then emits the
// forward sequence of lane/turn Traversables.
func (p *Pathfinder) reconstruct(cameFromTurn map[mapmodel.LaneID]mapmodel.TurnID, src, dst mapmodel.LaneID) []Traversable {
	var turnChain []mapmodel.TurnID
	node := dst
	for node != src {
		turnID, ok := cameFromTurn[node]
		if !ok {
			return nil
		}
		turnChain = append(turnChain, turnID)
		turn, ok := p.m.Turn(turnID)
		if !ok {
			return nil
		}
		node = turn.Src()
	}

	out := make([]Traversable, 0, len(turnChain)*2+1)
	prevLane := src
	for i := len(turnChain) - 1; i >= 0; i-- {
		turn, _ := p.m.Turn(turnChain[i])
		out = append(out, Traversable{Kind: TraversableLane, Lane: prevLane})
		out = append(out, Traversable{Kind: TraversableTurn, Turn: turnChain[i]})
		prevLane = turn.Dst()
	}
	out = append(out, Traversable{Kind: TraversableLane, Lane: prevLane})
	return out
}
