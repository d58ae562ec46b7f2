// Package railway implements the forward-looking intersection reservation
// protocol for rail agents described in spec.md §4.7 (C7). It holds the
// two global tables the spec names (`reservations`, `localisations`) and
// is otherwise a pure function of what the caller (world) feeds it each
// tick — train identity is an opaque, caller-assigned TrainID so this
// package has no dependency on world and cannot import it.
package railway

import (
	"github.com/simcore/simcore/internal/domain/mapmodel"
	"github.com/simcore/simcore/internal/domain/pathfinder"
)

// TrainID is an opaque per-train token assigned by the caller (typically
// derived from world.TrainID's index/gen pair).
type TrainID uint64

// entryForgiveness is the "10 - length" seed value applied when a train
// first registers on a traversable, so it "waits" until fully within
// before counting toward occupancy (spec.md §4.7 step 1; also an
// acknowledged Open Question — see DESIGN.md).
func entryForgiveness(length float64) float64 {
	return 10.0 - length
}

// Memory is the per-train bookkeeping persisted across ticks: how far into
// each currently-occupied traversable this train has progressed, and which
// intersections it currently holds.
type Memory struct {
	PastTravers map[pathfinder.Traversable]float64
	Reserved    []mapmodel.IntersectionID
}

func NewMemory() Memory {
	return Memory{PastTravers: make(map[pathfinder.Traversable]float64)}
}

// ReservationTable is the process-wide shared resource (spec.md §5 "Global
// mutable state... modeled as a keyed resource").
type ReservationTable struct {
	reservations  map[mapmodel.IntersectionID]TrainID
	localisations map[pathfinder.Traversable]map[TrainID]float64
}

func NewReservationTable() *ReservationTable {
	return &ReservationTable{
		reservations:  make(map[mapmodel.IntersectionID]TrainID),
		localisations: make(map[pathfinder.Traversable]map[TrainID]float64),
	}
}

func (t *ReservationTable) localise(trav pathfinder.Traversable, id TrainID, dist float64) {
	m, ok := t.localisations[trav]
	if !ok {
		m = make(map[TrainID]float64)
		t.localisations[trav] = m
	}
	m[id] = dist
}

func (t *ReservationTable) delocalise(trav pathfinder.Traversable, id TrainID) {
	m, ok := t.localisations[trav]
	if !ok {
		return
	}
	delete(m, id)
	if len(m) == 0 {
		delete(t.localisations, trav)
	}
}

// isFrontmost reports whether id has the greatest progress distance among
// all trains currently localised on trav (spec.md §4.7 step 3).
func (t *ReservationTable) isFrontmost(trav pathfinder.Traversable, id TrainID, myDist float64) bool {
	for other, dist := range t.localisations[trav] {
		if other != id && dist > myDist {
			return false
		}
	}
	return true
}

// occupiedByOther reports whether any train other than id is localised on
// trav.
func (t *ReservationTable) occupiedByOther(trav pathfinder.Traversable, id TrainID) bool {
	for other := range t.localisations[trav] {
		if other != id {
			return true
		}
	}
	return false
}

// UpcomingSegment is one traversable ahead on the train's route, annotated
// with whether it passes through an exclusive (>2 incident roads) junction.
type UpcomingSegment struct {
	Trav         pathfinder.Traversable
	Length       float64
	Intersection mapmodel.IntersectionID
	IsExclusive  bool
}

// Result is the outcome of one train's per-tick reservation processing.
type Result struct {
	// Aborted is true if look-ahead hit a conflict and no new reservations
	// were committed this tick.
	Aborted bool
	// DesiredSpeedCapped is true if the train must target zero speed this
	// tick (blocked ahead, or approaching the route's terminal).
	DesiredSpeedCapped bool
}

// Process runs one train's per-tick reservation cycle (spec.md §4.7 steps
// 1-6): registers progress on its current traversable, clears its stale
// reservations, attempts to commit new ones from look-ahead, and sweeps
// past_travers.
func Process(table *ReservationTable, id TrainID, mem *Memory, current pathfinder.Traversable, currentLength float64, speed float64, upcoming []UpcomingSegment, stopDist, trainLength float64, atTerminal bool) Result {
	// Step 1: record progress on the current traversable.
	if _, seen := mem.PastTravers[current]; !seen {
		mem.PastTravers[current] = entryForgiveness(currentLength)
	}
	table.localise(current, id, mem.PastTravers[current])

	// Step 2: clear this train's previously-made upcoming reservations;
	// they are re-asserted below if look-ahead succeeds.
	for _, inter := range mem.Reserved {
		if holder, ok := table.reservations[inter]; ok && holder == id {
			delete(table.reservations, inter)
		}
	}
	mem.Reserved = nil

	// Step 3: only the front-most occupant of the current traversable may
	// reserve ahead.
	if !table.isFrontmost(current, id, mem.PastTravers[current]) {
		return Result{Aborted: true, DesiredSpeedCapped: true}
	}

	// Step 4: look ahead stop_dist+5m, queueing reservations.
	lookAhead := stopDist + 5.0
	var toReserve []mapmodel.IntersectionID
	traveled := 0.0
	aborted := false
	for _, seg := range upcoming {
		if traveled >= lookAhead {
			break
		}
		if table.occupiedByOther(seg.Trav, id) {
			aborted = true
			break
		}
		if seg.IsExclusive {
			if holder, ok := table.reservations[seg.Intersection]; ok && holder != id {
				aborted = true
				break
			}
			toReserve = append(toReserve, seg.Intersection)
		}
		traveled += seg.Length
	}

	capped := atTerminal && !aborted
	if !aborted {
		// Step 5: commit all queued reservations atomically.
		for _, inter := range toReserve {
			table.reservations[inter] = id
		}
		mem.Reserved = toReserve
	} else {
		capped = true
	}

	// Step 6: sweep past_travers.
	sweepPastTravers(table, id, mem, speed, trainLength)

	return Result{Aborted: aborted, DesiredSpeedCapped: capped}
}

// sweepPastTravers advances each occupied traversable's distance by speed
// and drops (delocalises) any the train has now fully cleared (distance >=
// trainLength), per spec.md §4.7 step 6. Releasing the *junction*
// reservation itself happens next tick in Process's step 2, once this
// traversable is no longer in mem.Reserved/current — sweeping here only
// retires occupancy bookkeeping, not the intersection lock.
func sweepPastTravers(table *ReservationTable, id TrainID, mem *Memory, speed, trainLength float64) {
	for trav, dist := range mem.PastTravers {
		next := dist + speed
		if next >= trainLength {
			delete(mem.PastTravers, trav)
			table.delocalise(trav, id)
			continue
		}
		mem.PastTravers[trav] = next
		table.localise(trav, id, next)
	}
}

// ReservationHolder reports which train, if any, currently reserves inter.
func (t *ReservationTable) ReservationHolder(inter mapmodel.IntersectionID) (TrainID, bool) {
	id, ok := t.reservations[inter]
	return id, ok
}
