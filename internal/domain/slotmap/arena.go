package slotmap

// slot holds one component value plus its current generation and liveness.
type slot[T any] struct {
	value T
	gen   uint32
	alive bool
}

// Arena is a generation-checked slot map: the recycling allocator spec.md
// §3 requires for each entity kind ("issued by an arena allocator that
// recycles slots with a generation counter so stale IDs are detectable").
type Arena[K any, T any] struct {
	slots    []slot[T]
	freeList []uint32
}

func NewArena[K any, T any]() *Arena[K, T] {
	return &Arena[K, T]{}
}

// Insert allocates a new ID for value, reusing a freed slot (bumping its
// generation) if one is available.
func (a *Arena[K, T]) Insert(value T) ID[K] {
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		s := &a.slots[idx]
		s.value = value
		s.alive = true
		return ID[K]{index: idx, gen: s.gen}
	}
	idx := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{value: value, gen: 1, alive: true})
	return ID[K]{index: idx, gen: 1}
}

// Get returns the value for id and whether it is still live (a stale
// generation or out-of-range index reports false, never a panic: spec.md
// §1 "recover from partial failure").
func (a *Arena[K, T]) Get(id ID[K]) (*T, bool) {
	if int(id.index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[id.index]
	if !s.alive || s.gen != id.gen {
		return nil, false
	}
	return &s.value, true
}

// Remove frees id's slot, bumping its generation so any other ID still
// pointing at that index becomes detectably stale.
func (a *Arena[K, T]) Remove(id ID[K]) bool {
	if int(id.index) >= len(a.slots) {
		return false
	}
	s := &a.slots[id.index]
	if !s.alive || s.gen != id.gen {
		return false
	}
	s.alive = false
	var zero T
	s.value = zero
	s.gen++
	a.freeList = append(a.freeList, id.index)
	return true
}

// Len returns the number of live entries.
func (a *Arena[K, T]) Len() int {
	n := 0
	for i := range a.slots {
		if a.slots[i].alive {
			n++
		}
	}
	return n
}

// Each calls fn for every live entry, in index order, giving a stable
// iteration order required for deterministic replay.
func (a *Arena[K, T]) Each(fn func(ID[K], *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.alive {
			fn(ID[K]{index: uint32(i), gen: s.gen}, &s.value)
		}
	}
}

// IDs returns the live IDs in index order.
func (a *Arena[K, T]) IDs() []ID[K] {
	out := make([]ID[K], 0, a.Len())
	for i := range a.slots {
		if a.slots[i].alive {
			out = append(out, ID[K]{index: uint32(i), gen: a.slots[i].gen})
		}
	}
	return out
}

// SlotSnapshot is one arena slot's full persisted state: the generation
// counter must survive a save/load round trip even for dead slots, so a
// freed-then-reused ID issued after load still gets a higher generation
// than any ID a client might still be holding from before the save.
type SlotSnapshot[T any] struct {
	Value T
	Gen   uint32
	Alive bool
}

// Export returns every slot, live or dead, in index order — the one column
// a snapshot needs per entity kind (spec.md §4.12).
func (a *Arena[K, T]) Export() []SlotSnapshot[T] {
	out := make([]SlotSnapshot[T], len(a.slots))
	for i, s := range a.slots {
		out[i] = SlotSnapshot[T]{Value: s.value, Gen: s.gen, Alive: s.alive}
	}
	return out
}

// Import replaces the arena's entire contents with slots, rebuilding the
// free list from the dead entries. Used only when loading a snapshot into a
// freshly constructed Arena.
func (a *Arena[K, T]) Import(slots []SlotSnapshot[T]) {
	a.slots = make([]slot[T], len(slots))
	a.freeList = a.freeList[:0]
	for i, s := range slots {
		a.slots[i] = slot[T]{value: s.Value, gen: s.Gen, alive: s.Alive}
		if !s.Alive {
			a.freeList = append(a.freeList, uint32(i))
		}
	}
}
