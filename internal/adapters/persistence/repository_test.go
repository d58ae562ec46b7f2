package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/adapters/persistence"
	"github.com/simcore/simcore/internal/domain/simtime"
	"github.com/simcore/simcore/test/helpers"
)

func TestSnapshotRepository_SaveAndLoadLatest(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewSnapshotRepository(db)

	snap := persistence.WorldSnapshot{
		Version:   persistence.FormatVersion,
		Tick:      simtime.Tick(10),
		Columns:   map[string][]byte{"vehicles": []byte("vehicle-bytes")},
		Resources: map[string][]byte{"market": []byte("market-bytes")},
	}

	id, err := repo.Save(context.Background(), snap)
	require.NoError(t, err)
	require.NotZero(t, id)

	second := persistence.WorldSnapshot{
		Version:   persistence.FormatVersion,
		Tick:      simtime.Tick(20),
		Columns:   map[string][]byte{"vehicles": []byte("newer-vehicle-bytes")},
		Resources: map[string][]byte{"market": []byte("newer-market-bytes")},
	}
	secondID, err := repo.Save(context.Background(), second)
	require.NoError(t, err)
	require.Greater(t, secondID, id)

	got, err := repo.LoadLatest(context.Background())
	require.NoError(t, err)
	require.Equal(t, second.Version, got.Version)
	require.Equal(t, second.Tick, got.Tick)
	require.Equal(t, second.Columns, got.Columns)
	require.Equal(t, second.Resources, got.Resources)
}

func TestSnapshotRepository_LoadByID(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewSnapshotRepository(db)

	snap := persistence.WorldSnapshot{
		Version:   persistence.FormatVersion,
		Tick:      simtime.Tick(5),
		Columns:   map[string][]byte{"humans": []byte("human-bytes")},
		Resources: map[string][]byte{},
	}
	id, err := repo.Save(context.Background(), snap)
	require.NoError(t, err)

	got, err := repo.LoadByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, snap.Tick, got.Tick)
	require.Equal(t, snap.Columns, got.Columns)
}

func TestSnapshotRepository_LoadLatestEmptyReturnsErrNoSnapshot(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewSnapshotRepository(db)

	_, err := repo.LoadLatest(context.Background())
	require.ErrorIs(t, err, persistence.ErrNoSnapshot)
}
