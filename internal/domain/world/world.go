// Package world owns the typed slot-map storage for every agent kind
// (spec.md §3 "IDs", §4's C11 "World (entities)"): stable ID issuance via
// the generic slotmap arenas, and two-phase deferred destruction whose
// drop hooks unreserve parking, deregister from market/dispatcher, and
// remove from the transport grid. It is the one package allowed to import
// every leaf domain package, since it is where their concrete agent types
// meet.
package world

import (
	"github.com/simcore/simcore/internal/domain/dispatch"
	"github.com/simcore/simcore/internal/domain/market"
	"github.com/simcore/simcore/internal/domain/router"
	"github.com/simcore/simcore/internal/domain/slotmap"
	"github.com/simcore/simcore/internal/domain/spatial"
)

// World is the full set of per-kind entity arenas plus the shared
// systems that track them (spatial index, dispatcher, market, etc. are
// constructed by the caller and handed to DropHooks — World itself only
// owns entity storage and the pending-death queue).
type World struct {
	Vehicles        *slotmap.Arena[VehicleTag, Vehicle]
	Humans          *slotmap.Arena[HumanTag, Human]
	Trains          *slotmap.Arena[TrainTag, Train]
	Wagons          *slotmap.Arena[WagonTag, Wagon]
	FreightStations *slotmap.Arena[FreightStationTag, FreightStation]
	Companies       *slotmap.Arena[CompanyTag, Company]

	pendingDeath []EntityRef
}

func New() *World {
	return &World{
		Vehicles:        slotmap.NewArena[VehicleTag, Vehicle](),
		Humans:          slotmap.NewArena[HumanTag, Human](),
		Trains:          slotmap.NewArena[TrainTag, Train](),
		Wagons:          slotmap.NewArena[WagonTag, Wagon](),
		FreightStations: slotmap.NewArena[FreightStationTag, FreightStation](),
		Companies:       slotmap.NewArena[CompanyTag, Company](),
	}
}

// SpawnVehicle inserts v, stamps its issued ID onto the stored value, and
// returns that ID.
func (w *World) SpawnVehicle(v Vehicle) VehicleID {
	id := w.Vehicles.Insert(v)
	stored, _ := w.Vehicles.Get(id)
	stored.ID = id
	return id
}

func (w *World) SpawnHuman(h Human) HumanID {
	id := w.Humans.Insert(h)
	stored, _ := w.Humans.Get(id)
	stored.ID = id
	return id
}

func (w *World) SpawnTrain(t Train) TrainID {
	id := w.Trains.Insert(t)
	stored, _ := w.Trains.Get(id)
	stored.ID = id
	return id
}

func (w *World) SpawnWagon(wg Wagon) WagonID {
	id := w.Wagons.Insert(wg)
	stored, _ := w.Wagons.Get(id)
	stored.ID = id
	return id
}

func (w *World) SpawnFreightStation(f FreightStation) FreightStationID {
	id := w.FreightStations.Insert(f)
	stored, _ := w.FreightStations.Get(id)
	stored.ID = id
	return id
}

func (w *World) SpawnCompany(c Company) CompanyID {
	id := w.Companies.Insert(c)
	stored, _ := w.Companies.Get(id)
	stored.ID = id
	return id
}

// MarkForDeath queues ref for destruction at the next Flush (spec.md §3
// "Lifecycles": "a command buffer marks an entity for death, and at tick
// boundary the drop hook runs").
func (w *World) MarkForDeath(ref EntityRef) {
	w.pendingDeath = append(w.pendingDeath, ref)
}

// DropHooks is what Flush calls before removing each kind from storage,
// giving the caller a chance to release cross-cutting resources this
// package doesn't itself own.
type DropHooks struct {
	OnVehicle        func(*Vehicle, *router.Router /* unused, vehicles have no router; present for symmetry */)
	ReleaseParking   func(VehicleID)
	OnHumanDeath     func(*Human)
	OnTrainDeath     func(*Train)
	OnWagonDeath     func(*Wagon)
	DeregisterFreight func(FreightStationID, *dispatch.Registry)
	DeregisterCompany func(CompanyID, *market.Market)
	RemoveFromSpatial func(EntityRef, *spatial.Grid[EntityRef])
}

// Flush processes every queued death: runs the appropriate drop hook, then
// removes the entity from its arena. The queue is cleared even if some
// entities are already gone (double-marking is a no-op), per spec.md §3's
// two-phase destruction.
func (w *World) Flush(hooks DropHooks, registry *dispatch.Registry, mkt *market.Market, grid *spatial.Grid[EntityRef]) {
	pending := w.pendingDeath
	w.pendingDeath = nil

	for _, ref := range pending {
		switch ref.Kind {
		case KindVehicle:
			id := As[VehicleTag](ref)
			if v, ok := w.Vehicles.Get(id); ok {
				if hooks.ReleaseParking != nil {
					hooks.ReleaseParking(id)
				}
				_ = v
			}
			if grid != nil && hooks.RemoveFromSpatial != nil {
				hooks.RemoveFromSpatial(ref, grid)
			}
			w.Vehicles.Remove(id)
		case KindHuman:
			id := As[HumanTag](ref)
			if h, ok := w.Humans.Get(id); ok && hooks.OnHumanDeath != nil {
				hooks.OnHumanDeath(h)
			}
			w.Humans.Remove(id)
		case KindTrain:
			id := As[TrainTag](ref)
			if t, ok := w.Trains.Get(id); ok && hooks.OnTrainDeath != nil {
				hooks.OnTrainDeath(t)
			}
			w.Trains.Remove(id)
		case KindWagon:
			id := As[WagonTag](ref)
			if wg, ok := w.Wagons.Get(id); ok && hooks.OnWagonDeath != nil {
				hooks.OnWagonDeath(wg)
			}
			w.Wagons.Remove(id)
		case KindFreightStation:
			id := As[FreightStationTag](ref)
			if hooks.DeregisterFreight != nil && registry != nil {
				hooks.DeregisterFreight(id, registry)
			}
			w.FreightStations.Remove(id)
		case KindCompany:
			id := As[CompanyTag](ref)
			if hooks.DeregisterCompany != nil && mkt != nil {
				hooks.DeregisterCompany(id, mkt)
			}
			w.Companies.Remove(id)
		}
	}
}
