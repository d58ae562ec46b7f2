// Package itinerary implements the per-agent route state machine of
// spec.md §4.4 (C5): a tagged five-state sum type (None / WaitUntil /
// Simple / Route / WaitForReroute), shaped like the teacher's
// LifecycleStateMachine (closed status enum + explicit transition methods)
// per spec.md §9's guidance to replace dynamic dispatch with "a closed
// enum with a match".
package itinerary

import (
	"bytes"
	"encoding/gob"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/pathfinder"
	"github.com/simcore/simcore/internal/domain/simtime"
)

// State is the closed set of itinerary modes.
type State int

const (
	StateNone State = iota
	StateWaitUntil
	StateSimple
	StateRoute
	StateWaitForReroute
)

// rerouteCooldownTicks is the wait period before WaitForReroute retries
// route(), chosen per spec.md §5 ("cool-down of ~200 ticks to avoid tight
// retry loops").
const rerouteCooldownTicks = 200

// Itinerary is one agent's routing state. Fields beyond `state` are a
// union: only the ones relevant to the current state are meaningful,
// mirroring the teacher's single-struct-with-status-tag shape rather than
// a Go interface per state (a closed enum with a match, not dynamic
// dispatch).
type Itinerary struct {
	state State

	waitUntil simtime.GameTime

	simpleTarget geom.Vec2

	// route is stored in travel order; current indexes the next
	// traversable to take.
	route    []pathfinder.Traversable
	endPos   geom.Vec2
	current  int
	pathKind pathfinder.PathKind

	rerouteKind    pathfinder.PathKind
	rerouteDest    geom.Vec2
	rerouteWaitTicks int

	// reversedLocalPath is shared across all non-None states: the point
	// stack for greedy local-path consumption; its top, the last element,
	// is the next waypoint (spec.md §4.4 "Shared field: reversed_local_path").
	reversedLocalPath []geom.Vec3
}

// New returns an idle itinerary.
func New() *Itinerary { return &Itinerary{state: StateNone} }

func (it *Itinerary) State() State { return it.state }

// SetWaitUntil transitions to WaitUntil(timestamp).
func (it *Itinerary) SetWaitUntil(t simtime.GameTime) {
	*it = Itinerary{state: StateWaitUntil, waitUntil: t}
}

// SetSimple transitions to Simple(target_point), following a local path
// with no graph.
func (it *Itinerary) SetSimple(target geom.Vec2, localPath []geom.Vec3) {
	*it = Itinerary{state: StateSimple, simpleTarget: target, reversedLocalPath: reversed(localPath)}
}

// SetRoute transitions to Route with the given traversable sequence.
func (it *Itinerary) SetRoute(route []pathfinder.Traversable, endPos geom.Vec2, kind pathfinder.PathKind) {
	*it = Itinerary{state: StateRoute, route: route, endPos: endPos, pathKind: kind, current: 0}
}

// SetWaitForReroute transitions to WaitForReroute{kind, dest, wait_ticks}.
func (it *Itinerary) SetWaitForReroute(kind pathfinder.PathKind, dest geom.Vec2) {
	*it = Itinerary{state: StateWaitForReroute, rerouteKind: kind, rerouteDest: dest, rerouteWaitTicks: rerouteCooldownTicks}
}

func reversed(pts []geom.Vec3) []geom.Vec3 {
	out := make([]geom.Vec3, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

// HasEnded reports whether this itinerary is in a terminal condition for
// the current tick: idle, a WaitUntil whose time has passed, a Simple whose
// local path is used up, or a Route whose local path and route are both
// used up. WaitForReroute never counts as ended.
func (it *Itinerary) HasEnded(now simtime.GameTime) bool {
	switch it.state {
	case StateNone:
		return true
	case StateWaitUntil:
		return now.TimestampSeconds >= it.waitUntil.TimestampSeconds
	case StateSimple:
		return len(it.reversedLocalPath) == 0
	case StateRoute:
		return len(it.reversedLocalPath) == 0 && it.current >= len(it.route)
	default:
		return false
	}
}

// Update consumes the local path greedily from position, popping points
// until dist_to_move is spent or the path runs out, per spec.md §4.4.
// Traffic-control gates are not checked here. m is used to inline the next traversable's polyline
// and to check whether the current traversable still exists (a map edit
// may have removed it, transitioning to WaitForReroute).
func (it *Itinerary) Update(position geom.Vec2, distToMove float64, tick simtime.Tick, m *mapmodel.Map) geom.Vec2 {
	switch it.state {
	case StateWaitForReroute:
		if it.rerouteWaitTicks > 0 {
			it.rerouteWaitTicks--
		}
		return position
	case StateNone, StateWaitUntil:
		return position
	}

	remaining := distToMove
	pos := position
	for remaining > 0 {
		if len(it.reversedLocalPath) == 0 {
			if it.state != StateRoute || it.current >= len(it.route) {
				break
			}
			if !it.inlineNextTraversable(m) {
				it.SetWaitForReroute(it.pathKind, it.endPos)
				return pos
			}
			continue
		}
		next := it.reversedLocalPath[len(it.reversedLocalPath)-1].XY()
		d := pos.DistanceTo(next)
		if d <= remaining {
			pos = next
			it.reversedLocalPath = it.reversedLocalPath[:len(it.reversedLocalPath)-1]
			remaining -= d
		} else {
			t := remaining / d
			pos = pos.Lerp(next, t)
			remaining = 0
		}
	}
	return pos
}

// inlineNextTraversable pops the next traversable off the route and
// appends its polyline to reversedLocalPath. Returns false if the
// traversable no longer exists in the map (structural edit invalidated the
// route), the signal to the caller to enter WaitForReroute.
func (it *Itinerary) inlineNextTraversable(m *mapmodel.Map) bool {
	if it.current >= len(it.route) {
		return false
	}
	trav := it.route[it.current]
	it.current++

	var pts []geom.Vec3
	switch trav.Kind {
	case pathfinder.TraversableLane:
		lane, ok := m.Lane(trav.Lane)
		if !ok {
			return false
		}
		pts = lane.Polyline().Points()
	case pathfinder.TraversableTurn:
		turn, ok := m.Turn(trav.Turn)
		if !ok {
			return false
		}
		pts = turn.Polyline().Points()
	}
	it.reversedLocalPath = append(it.reversedLocalPath, reversed(pts)...)
	return true
}

// CurrentTraversable returns the traversable this itinerary is presently
// consuming the local path of, if in StateRoute and past its first step.
func (it *Itinerary) CurrentTraversable() (pathfinder.Traversable, bool) {
	if it.state != StateRoute || it.current == 0 || it.current > len(it.route) {
		return pathfinder.Traversable{}, false
	}
	return it.route[it.current-1], true
}

// UpcomingTraversables returns the remaining route beyond the one
// CurrentTraversable reports, in travel order.
func (it *Itinerary) UpcomingTraversables() []pathfinder.Traversable {
	if it.state != StateRoute || it.current >= len(it.route) {
		return nil
	}
	return it.route[it.current:]
}

// PeekLocalTarget returns the next point this itinerary is walking toward
// along its local path, if any. Callers (the traffic decision step) use it
// to steer; it does not consume the path the way Update does.
func (it *Itinerary) PeekLocalTarget() (geom.Vec2, bool) {
	if len(it.reversedLocalPath) == 0 {
		return geom.Vec2{}, false
	}
	return it.reversedLocalPath[len(it.reversedLocalPath)-1].XY(), true
}

// RerouteReady reports whether a WaitForReroute's cooldown has elapsed and
// callers should retry routing.
func (it *Itinerary) RerouteReady() (pathfinder.PathKind, geom.Vec2, bool) {
	if it.state != StateWaitForReroute || it.rerouteWaitTicks > 0 {
		return 0, geom.Vec2{}, false
	}
	return it.rerouteKind, it.rerouteDest, true
}

// itinerarySnapshot mirrors Itinerary's unexported fields with exported
// ones so gob can reach them; gob silently drops unexported struct fields
// otherwise (see slotmap.ID for the same hazard).
type itinerarySnapshot struct {
	State            State
	WaitUntil        simtime.GameTime
	SimpleTarget     geom.Vec2
	Route            []pathfinder.Traversable
	EndPos           geom.Vec2
	Current          int
	PathKind         pathfinder.PathKind
	RerouteKind      pathfinder.PathKind
	RerouteDest      geom.Vec2
	RerouteWaitTicks int
	ReversedLocalPath []geom.Vec3
}

func (it Itinerary) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	snap := itinerarySnapshot{
		State: it.state, WaitUntil: it.waitUntil, SimpleTarget: it.simpleTarget,
		Route: it.route, EndPos: it.endPos, Current: it.current, PathKind: it.pathKind,
		RerouteKind: it.rerouteKind, RerouteDest: it.rerouteDest,
		RerouteWaitTicks: it.rerouteWaitTicks, ReversedLocalPath: it.reversedLocalPath,
	}
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (it *Itinerary) GobDecode(data []byte) error {
	var snap itinerarySnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	*it = Itinerary{
		state: snap.State, waitUntil: snap.WaitUntil, simpleTarget: snap.SimpleTarget,
		route: snap.Route, endPos: snap.EndPos, current: snap.Current, pathKind: snap.PathKind,
		rerouteKind: snap.RerouteKind, rerouteDest: snap.RerouteDest,
		rerouteWaitTicks: snap.RerouteWaitTicks, reversedLocalPath: snap.ReversedLocalPath,
	}
	return nil
}
