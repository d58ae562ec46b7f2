// Package persistence implements the save/load surface of spec.md §4.12
// (C15): a column-oriented snapshot (one gob blob per entity-kind slot map,
// one gob blob per named resource) stored through GORM, grounded on the
// teacher's TableName()-per-model, repository-per-aggregate idiom
// (models.go, container_repository.go) rather than a single monolithic
// JSON dump.
package persistence

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/simcore/simcore/internal/domain/market"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/internal/domain/slotmap"
	"github.com/simcore/simcore/internal/domain/world"
	"github.com/simcore/simcore/internal/infrastructure/rng"
)

// FormatVersion gates snapshot compatibility: a mismatch aborts load rather
// than attempting a best-effort upgrade (spec.md §4.12 "version mismatch
// aborts load").
const FormatVersion = "simcore-snapshot-v1"

// Column names, one per world entity-kind arena.
const (
	columnVehicles        = "vehicles"
	columnHumans          = "humans"
	columnTrains          = "trains"
	columnWagons          = "wagons"
	columnFreightStations = "freight_stations"
	columnCompanies       = "companies"
)

// Resource names for process-wide state that lives outside World's arenas.
const (
	resourceMarket = "market"
	resourceRNG    = "rng"
)

// WorldSnapshot is the full in-memory form of one saved simulation state:
// a version gate, the tick it was captured at, one gob blob per world
// column, and one gob blob per named resource. Columns and resources are
// each independently (de)serialized so an unrecognized name is skipped
// rather than failing the whole load (spec.md §4.12).
type WorldSnapshot struct {
	Version   string
	Tick      simtime.Tick
	Columns   map[string][]byte
	Resources map[string][]byte
}

// Capture builds a WorldSnapshot from the live world, market, and RNG
// state. tick is the caller's current simulation tick.
func Capture(w *world.World, mkt *market.Market, rand *rng.Provider, tick simtime.Tick) (WorldSnapshot, error) {
	snap := WorldSnapshot{
		Version:   FormatVersion,
		Tick:      tick,
		Columns:   make(map[string][]byte),
		Resources: make(map[string][]byte),
	}

	columns := map[string]any{
		columnVehicles:        w.Vehicles.Export(),
		columnHumans:          w.Humans.Export(),
		columnTrains:          w.Trains.Export(),
		columnWagons:          w.Wagons.Export(),
		columnFreightStations: w.FreightStations.Export(),
		columnCompanies:       w.Companies.Export(),
	}
	for name, col := range columns {
		buf, err := encodeGob(col)
		if err != nil {
			return WorldSnapshot{}, fmt.Errorf("persistence: encode column %q: %w", name, err)
		}
		snap.Columns[name] = buf
	}

	marketBuf, err := encodeGob(exportMarket(mkt))
	if err != nil {
		return WorldSnapshot{}, fmt.Errorf("persistence: encode market resource: %w", err)
	}
	snap.Resources[resourceMarket] = marketBuf

	if rand != nil {
		rngBuf, err := encodeGob(rand)
		if err != nil {
			return WorldSnapshot{}, fmt.Errorf("persistence: encode rng resource: %w", err)
		}
		snap.Resources[resourceRNG] = rngBuf
	}

	return snap, nil
}

// Restore rebuilds a world (plus market and RNG state) from snap. An
// unrecognized column or resource name is skipped rather than failing the
// whole load, so a snapshot saved by a newer build with extra columns this
// build doesn't know about still loads (spec.md §4.12).
func Restore(snap WorldSnapshot) (*world.World, *market.Market, *rng.Provider, error) {
	if snap.Version != FormatVersion {
		return nil, nil, nil, fmt.Errorf("persistence: snapshot version %q incompatible with %q", snap.Version, FormatVersion)
	}

	w := world.New()
	if buf, ok := snap.Columns[columnVehicles]; ok {
		var col []slotmap.SlotSnapshot[world.Vehicle]
		if err := decodeGob(buf, &col); err != nil {
			return nil, nil, nil, fmt.Errorf("persistence: decode column %q: %w", columnVehicles, err)
		}
		w.Vehicles.Import(col)
	}
	if buf, ok := snap.Columns[columnHumans]; ok {
		var col []slotmap.SlotSnapshot[world.Human]
		if err := decodeGob(buf, &col); err != nil {
			return nil, nil, nil, fmt.Errorf("persistence: decode column %q: %w", columnHumans, err)
		}
		w.Humans.Import(col)
	}
	if buf, ok := snap.Columns[columnTrains]; ok {
		var col []slotmap.SlotSnapshot[world.Train]
		if err := decodeGob(buf, &col); err != nil {
			return nil, nil, nil, fmt.Errorf("persistence: decode column %q: %w", columnTrains, err)
		}
		w.Trains.Import(col)
	}
	if buf, ok := snap.Columns[columnWagons]; ok {
		var col []slotmap.SlotSnapshot[world.Wagon]
		if err := decodeGob(buf, &col); err != nil {
			return nil, nil, nil, fmt.Errorf("persistence: decode column %q: %w", columnWagons, err)
		}
		w.Wagons.Import(col)
	}
	if buf, ok := snap.Columns[columnFreightStations]; ok {
		var col []slotmap.SlotSnapshot[world.FreightStation]
		if err := decodeGob(buf, &col); err != nil {
			return nil, nil, nil, fmt.Errorf("persistence: decode column %q: %w", columnFreightStations, err)
		}
		w.FreightStations.Import(col)
	}
	if buf, ok := snap.Columns[columnCompanies]; ok {
		var col []slotmap.SlotSnapshot[world.Company]
		if err := decodeGob(buf, &col); err != nil {
			return nil, nil, nil, fmt.Errorf("persistence: decode column %q: %w", columnCompanies, err)
		}
		w.Companies.Import(col)
	}

	mkt := market.New()
	if buf, ok := snap.Resources[resourceMarket]; ok {
		var dto marketDTO
		if err := decodeGob(buf, &dto); err != nil {
			return nil, nil, nil, fmt.Errorf("persistence: decode market resource: %w", err)
		}
		importMarket(mkt, dto)
	}

	var rand *rng.Provider
	if buf, ok := snap.Resources[resourceRNG]; ok {
		rand = &rng.Provider{}
		if err := decodeGob(buf, rand); err != nil {
			return nil, nil, nil, fmt.Errorf("persistence: decode rng resource: %w", err)
		}
	}

	return w, mkt, rand, nil
}

// itemDTO mirrors ItemDef's unexported fields with exported ones; ItemDef
// carries no Gob methods of its own since only persistence needs to reach
// across its validated-constructor boundary (every other caller goes
// through NewItemDef).
type itemDTO struct {
	Symbol         string
	ExternalValue  float64
	TransportCost  float64
	OptOutExternal bool
	Capitals       map[market.ParticipantID]int
	Buys           []market.BuyOrder
	Sells          []market.SellOrder
}

type marketDTO struct {
	Items []itemDTO
}

func exportMarket(mkt *market.Market) marketDTO {
	dto := marketDTO{}
	for _, symbol := range mkt.Items() {
		b, ok := mkt.Book(symbol)
		if !ok {
			continue
		}
		dto.Items = append(dto.Items, itemDTO{
			Symbol:         b.Def().Symbol(),
			ExternalValue:  b.Def().ExternalValue(),
			TransportCost:  b.Def().TransportCost(),
			OptOutExternal: b.Def().OptOutExternal(),
			Capitals:       b.Capitals(),
			Buys:           b.Buys(),
			Sells:          b.Sells(),
		})
	}
	return dto
}

func importMarket(mkt *market.Market, dto marketDTO) {
	for _, item := range dto.Items {
		def, err := market.NewItemDef(item.Symbol, item.ExternalValue, item.TransportCost, item.OptOutExternal)
		if err != nil {
			continue
		}
		b := mkt.RegisterItem(def)
		for p, qty := range item.Capitals {
			b.SetCapital(p, qty)
		}
		for _, o := range item.Buys {
			b.RegisterBuy(o)
		}
		for _, o := range item.Sells {
			b.RegisterSell(o)
		}
	}
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
