package persistence

import (
	"sync"

	"github.com/simcore/simcore/internal/domain/market"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/internal/domain/world"
	"github.com/simcore/simcore/internal/infrastructure/rng"
)

// Encode gob-encodes the whole snapshot as one blob, for transfer over
// lockstep's reliable channel (spec.md §4.11 step 3 "server sends the
// current world state").
func (s WorldSnapshot) Encode() ([]byte, error) {
	return encodeGob(s)
}

// DecodeWorldSnapshot is Encode's inverse, used by a lockstep client after
// ResultWorld delivers the transferred bytes.
func DecodeWorldSnapshot(data []byte) (WorldSnapshot, error) {
	var snap WorldSnapshot
	if err := decodeGob(data, &snap); err != nil {
		return WorldSnapshot{}, err
	}
	return snap, nil
}

// LiveWorldSource adapts the running simulation to lockstep.WorldSource
// (internal/adapters/lockstep.WorldSource's Snapshot() ([]byte, simtime.Tick,
// error)): it locks the same mutex the simulation loop holds while
// mutating world/market/rng, captures a WorldSnapshot, and gob-encodes it
// into the single blob the server hands to newly connecting clients.
type LiveWorldSource struct {
	mu    *sync.Mutex
	world *world.World
	mkt   *market.Market
	rand  *rng.Provider
	tick  func() simtime.Tick
}

// NewLiveWorldSource builds a LiveWorldSource. mu must be the same mutex
// the simulation loop holds while advancing world/mkt/rand; tick reports
// the simulation's current tick.
func NewLiveWorldSource(mu *sync.Mutex, w *world.World, mkt *market.Market, rand *rng.Provider, tick func() simtime.Tick) *LiveWorldSource {
	return &LiveWorldSource{mu: mu, world: w, mkt: mkt, rand: rand, tick: tick}
}

func (s *LiveWorldSource) Snapshot() ([]byte, simtime.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tick()
	snap, err := Capture(s.world, s.mkt, s.rand, t)
	if err != nil {
		return nil, 0, err
	}
	buf, err := snap.Encode()
	if err != nil {
		return nil, 0, err
	}
	return buf, t, nil
}
