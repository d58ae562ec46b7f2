// Package spatial implements the uniform-grid spatial index described in
// spec.md §4.1: point/AABB queries over 2D world objects with deferred,
// lazily-maintained position updates and removals. It is grounded on the
// teacher's immutable-snapshot value-object style (internal/domain/shared)
// generalized to an opaque owner-handle design so intersections, roads,
// buildings, lots, and agents can all share one index implementation.
package spatial

import (
	"github.com/simcore/simcore/internal/domain/geom"
)

// Handle identifies one entry in the grid, independent of its owner's own
// identity. It is returned by Insert and used for all subsequent mutation.
type Handle uint32

type cellKey struct{ cx, cy int32 }

type entry[O any] struct {
	owner   O
	pos     geom.Vec2
	cell    cellKey
	removed bool
}

// Grid is a cell-bucketed spatial index, generic over the opaque owner type
// O a caller registers alongside each position (an intersection ID, a
// building ID, or a world.EntityRef for agents). CellSize should be chosen
// to match the typical query radius of its callers (spec.md §4.1: "≈5-50 m
// for the map; 256 m for tree placement").
type Grid[O any] struct {
	cellSize float64
	cells    map[cellKey][]Handle
	entries  map[Handle]*entry[O]
	nextID   Handle
	dirty    map[Handle]struct{}
}

// NewGrid builds an empty grid with the given cell size, in world units.
func NewGrid[O any](cellSize float64) *Grid[O] {
	if cellSize <= 0 {
		cellSize = 10
	}
	return &Grid[O]{
		cellSize: cellSize,
		cells:    make(map[cellKey][]Handle),
		entries:  make(map[Handle]*entry[O]),
		dirty:    make(map[Handle]struct{}),
	}
}

func (g *Grid[O]) keyOf(p geom.Vec2) cellKey {
	return cellKey{
		cx: int32(floorDiv(p.X, g.cellSize)),
		cy: int32(floorDiv(p.Y, g.cellSize)),
	}
}

func floorDiv(v, size float64) float64 {
	q := v / size
	if q < 0 {
		return q - 1
	}
	return q
}

// Insert registers owner at pos and returns a handle for later mutation.
func (g *Grid[O]) Insert(pos geom.Vec2, owner O) Handle {
	g.nextID++
	h := g.nextID
	k := g.keyOf(pos)
	g.entries[h] = &entry[O]{owner: owner, pos: pos, cell: k}
	g.cells[k] = append(g.cells[k], h)
	return h
}

// Remove marks handle for deferred removal, swept out on the next Maintain.
// An unknown handle is a no-op, per spec.md §4.1 ("Failures: none; an
// unknown handle is a no-op and logged").
func (g *Grid[O]) Remove(h Handle) (O, bool) {
	e, ok := g.entries[h]
	if !ok {
		var zero O
		return zero, false
	}
	e.removed = true
	g.dirty[h] = struct{}{}
	return e.owner, true
}

// RemoveMaintain is the O(1) eager variant used for entity death (spec.md
// §4.1 "remove_maintain()"): it removes the entry from its cell bucket
// immediately instead of waiting for the next Maintain sweep.
func (g *Grid[O]) RemoveMaintain(h Handle) (O, bool) {
	e, ok := g.entries[h]
	if !ok {
		var zero O
		return zero, false
	}
	g.evictFromCell(h, e.cell)
	delete(g.entries, h)
	delete(g.dirty, h)
	return e.owner, true
}

// SetPosition marks handle's position changed; the cell relocation itself
// is deferred until Maintain.
func (g *Grid[O]) SetPosition(h Handle, pos geom.Vec2) bool {
	e, ok := g.entries[h]
	if !ok {
		return false
	}
	e.pos = pos
	g.dirty[h] = struct{}{}
	return true
}

// Maintain sweeps all entries marked dirty since the last call, relocating
// those whose cell has changed and evicting those marked removed. Between
// two Maintain calls an entry's cell does not change, so queries look a
// moved entry up under its old cell (and test its current position);
// removed entries are filtered out of query results at once (spec.md §4.1).
func (g *Grid[O]) Maintain() {
	for h := range g.dirty {
		e, ok := g.entries[h]
		if !ok {
			continue
		}
		if e.removed {
			g.evictFromCell(h, e.cell)
			delete(g.entries, h)
			continue
		}
		newKey := g.keyOf(e.pos)
		if newKey != e.cell {
			g.evictFromCell(h, e.cell)
			e.cell = newKey
			g.cells[newKey] = append(g.cells[newKey], h)
		}
	}
	g.dirty = make(map[Handle]struct{})
}

func (g *Grid[O]) evictFromCell(h Handle, k cellKey) {
	bucket := g.cells[k]
	for i, hh := range bucket {
		if hh == h {
			bucket[i] = bucket[len(bucket)-1]
			g.cells[k] = bucket[:len(bucket)-1]
			break
		}
	}
	if len(g.cells[k]) == 0 {
		delete(g.cells, k)
	}
}

// Result is one hit from a query: the owner and its current position (the
// last one given to Insert or SetPosition).
type Result[O any] struct {
	Handle Handle
	Owner  O
	Pos    geom.Vec2
}

// QueryAABB returns every live (non-removed) entry whose cell overlaps box,
// filtered to those whose exact position falls inside it.
func (g *Grid[O]) QueryAABB(box geom.AABB) []Result[O] {
	minKey := g.keyOf(box.Min)
	maxKey := g.keyOf(box.Max)
	var out []Result[O]
	for cx := minKey.cx; cx <= maxKey.cx; cx++ {
		for cy := minKey.cy; cy <= maxKey.cy; cy++ {
			for _, h := range g.cells[cellKey{cx, cy}] {
				e := g.entries[h]
				if e == nil || e.removed {
					continue
				}
				if box.Contains(e.pos) {
					out = append(out, Result[O]{Handle: h, Owner: e.owner, Pos: e.pos})
				}
			}
		}
	}
	return out
}

// QueryAround returns every live entry within radius r of pos.
func (g *Grid[O]) QueryAround(pos geom.Vec2, r float64) []Result[O] {
	box := geom.AABBAround(pos, r)
	r2 := r * r
	candidates := g.QueryAABB(box)
	out := candidates[:0]
	for _, c := range candidates {
		if c.Pos.DistanceTo2(pos) <= r2 {
			out = append(out, c)
		}
	}
	return out
}

// Len reports the number of live entries (removed-but-unswept entries still
// count until Maintain runs, matching the deferred-removal contract).
func (g *Grid[O]) Len() int { return len(g.entries) }
