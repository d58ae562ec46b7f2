// Package world owns the six agent entity kinds (spec.md §3: Vehicle,
// Human, Train, Wagon, FreightStation, Company), their per-kind arenas, and
// the untyped EntityRef sum type used wherever code needs to hold "any
// entity" without knowing its concrete kind up front (spec.md §9 "Dynamic
// dispatch over entity kind... replaced by an explicit Kind tag plus a
// closed enum with a match").
package world

import (
	"fmt"

	"github.com/simcore/simcore/internal/domain/slotmap"
)

// Kind tags which arena an EntityRef or generic ID belongs to. It is a
// small closed set — callers switch on it explicitly rather than relying on
// dynamic dispatch.
type Kind uint8

const (
	KindVehicle Kind = iota
	KindHuman
	KindTrain
	KindWagon
	KindFreightStation
	KindCompany
)

func (k Kind) String() string {
	switch k {
	case KindVehicle:
		return "vehicle"
	case KindHuman:
		return "human"
	case KindTrain:
		return "train"
	case KindWagon:
		return "wagon"
	case KindFreightStation:
		return "freight_station"
	case KindCompany:
		return "company"
	default:
		return "unknown"
	}
}

// Phantom marker types for slotmap.ID[K], one per entity kind.
type (
	VehicleTag        struct{}
	HumanTag          struct{}
	TrainTag          struct{}
	WagonTag          struct{}
	FreightStationTag struct{}
	CompanyTag        struct{}
)

type (
	VehicleID        = slotmap.ID[VehicleTag]
	HumanID          = slotmap.ID[HumanTag]
	TrainID          = slotmap.ID[TrainTag]
	WagonID          = slotmap.ID[WagonTag]
	FreightStationID = slotmap.ID[FreightStationTag]
	CompanyID        = slotmap.ID[CompanyTag]
)

// EntityRef is an untyped, kind-tagged reference into one of the world's
// arenas — used by lower packages (dispatch, router, traffic) that need to
// name "the agent that holds this reservation" without importing world
// themselves, and by the map model's owner fields.
type EntityRef struct {
	Kind  Kind
	Index uint32
	Gen   uint32
}

func (r EntityRef) IsNil() bool { return r.Gen == 0 }

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d#%d", r.Kind, r.Index, r.Gen)
}

// RefOf erases a typed ID into an untyped EntityRef tagged with kind.
func RefOf[K any](kind Kind, id slotmap.ID[K]) EntityRef {
	return EntityRef{Kind: kind, Index: id.Index(), Gen: id.Gen()}
}

// As recovers a typed ID from an EntityRef. Callers are expected to check
// ref.Kind against the expected kind first; As does not itself validate
// that the kind matches K.
func As[K any](ref EntityRef) slotmap.ID[K] {
	return slotmap.NewID[K](ref.Index, ref.Gen)
}
