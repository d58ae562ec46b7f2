// Package slotmap implements the generation-checked recycling allocator
// described in spec.md §3 "IDs": one arena per entity kind, slots recycled
// with a generation counter so a stale ID is detectable. It is a pure leaf
// package with no knowledge of what a Vehicle or a Road actually is, so
// both the map model and the agent world can depend on it without
// depending on each other (spec.md §9 "Cyclic references... resolved by
// never storing cross-references as owning handles: all references are
// typed IDs into an arena").
package slotmap

import (
	"encoding/binary"
	"fmt"
)

// ID is a strongly-typed, generation-checked key into an Arena[K,T]. The
// phantom type parameter K prevents a Vehicle ID from being used where a
// Train ID is expected even though both are structurally {index, gen}
// pairs — a single generic implementation stands in for what the teacher's
// codebase would otherwise hand-write once per entity kind (as in
// `shared.PlayerID`).
type ID[K any] struct {
	index uint32
	gen   uint32
}

// NewID reconstructs an ID from its raw parts, used when recovering a
// typed ID from an untyped EntityRef (see the world package) or when
// deserializing a snapshot.
func NewID[K any](index, gen uint32) ID[K] { return ID[K]{index: index, gen: gen} }

func (id ID[K]) IsNil() bool { return id.gen == 0 }

func (id ID[K]) Index() uint32 { return id.index }
func (id ID[K]) Gen() uint32   { return id.gen }

func (id ID[K]) String() string {
	return fmt.Sprintf("%d#%d", id.index, id.gen)
}

// GobEncode/GobDecode make ID safe to persist despite its unexported
// fields — gob silently zeroes unexported fields it doesn't know how to
// reach, which would turn every saved entity reference into a nil ID. Every
// entity kind's ID is a type alias of ID[K] (see world.VehicleID etc.), so
// this one implementation covers the whole snapshot surface (spec.md §4.12
// "column-oriented serialization... per-entity-kind slot maps").
func (id ID[K]) GobEncode() ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], id.index)
	binary.BigEndian.PutUint32(buf[4:8], id.gen)
	return buf, nil
}

func (id *ID[K]) GobDecode(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("slotmap: ID.GobDecode: want 8 bytes, got %d", len(data))
	}
	id.index = binary.BigEndian.Uint32(data[0:4])
	id.gen = binary.BigEndian.Uint32(data[4:8])
	return nil
}
