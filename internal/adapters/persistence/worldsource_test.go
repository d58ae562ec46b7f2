package persistence_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/adapters/persistence"
	"github.com/simcore/simcore/internal/domain/simtime"
)

func TestLiveWorldSource_SnapshotReturnsDecodableWorld(t *testing.T) {
	w, mkt := buildSampleWorld(t)
	var mu sync.Mutex
	tick := simtime.Tick(9)

	src := persistence.NewLiveWorldSource(&mu, w, mkt, nil, func() simtime.Tick { return tick })

	blob, gotTick, err := src.Snapshot()
	require.NoError(t, err)
	require.Equal(t, tick, gotTick)

	snap, err := persistence.DecodeWorldSnapshot(blob)
	require.NoError(t, err)

	gotWorld, gotMarket, _, err := persistence.Restore(snap)
	require.NoError(t, err)
	require.Equal(t, 1, gotWorld.Vehicles.Len())

	_, ok := gotMarket.Book("wheat")
	require.True(t, ok)
}
