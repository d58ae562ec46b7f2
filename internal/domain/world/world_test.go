package world

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simcore/simcore/internal/domain/geom"
	"github.com/simcore/simcore/internal/domain/market"
)

func TestSpawnVehicle_StampsIssuedID(t *testing.T) {
	w := New()
	id := w.SpawnVehicle(*NewVehicle(VehicleID{}, geom.NewVec2(1, 2), geom.NewVec2(1, 0), VehicleCar))

	stored, ok := w.Vehicles.Get(id)
	require.True(t, ok)
	require.Equal(t, id, stored.ID)
	require.Equal(t, geom.NewVec2(1, 2), stored.Pos)
}

func TestSpawnHuman_DefaultsToOutsideLocation(t *testing.T) {
	w := New()
	id := w.SpawnHuman(*NewHuman(HumanID{}, geom.NewVec2(0, 0)))

	stored, ok := w.Humans.Get(id)
	require.True(t, ok)
	require.Equal(t, LocationOutside, stored.Location)
	require.Equal(t, id, stored.ID)
}

func TestMarkForDeath_EntityStaysQueryableUntilFlush(t *testing.T) {
	w := New()
	id := w.SpawnVehicle(*NewVehicle(VehicleID{}, geom.NewVec2(0, 0), geom.NewVec2(1, 0), VehicleCar))
	ref := RefOf(KindVehicle, id)

	w.MarkForDeath(ref)

	_, stillThere := w.Vehicles.Get(id)
	require.True(t, stillThere, "entity must remain live until Flush runs")

	released := false
	w.Flush(DropHooks{ReleaseParking: func(VehicleID) { released = true }}, nil, nil, nil)

	require.True(t, released)
	_, gone := w.Vehicles.Get(id)
	require.False(t, gone)
}

func TestFlush_ClearsPendingQueueEvenWithoutHooks(t *testing.T) {
	w := New()
	id := w.SpawnHuman(*NewHuman(HumanID{}, geom.NewVec2(0, 0)))
	w.MarkForDeath(RefOf(KindHuman, id))

	w.Flush(DropHooks{}, nil, nil, nil)
	_, ok := w.Humans.Get(id)
	require.False(t, ok)

	// A second Flush with nothing pending must be a no-op, not a panic.
	w.Flush(DropHooks{}, nil, nil, nil)
}

func TestFlush_DeregistersCompanyFromMarket(t *testing.T) {
	w := New()
	mkt := market.New()
	participant := market.ParticipantID(42)
	id := w.SpawnCompany(*NewCompany(CompanyID{}, geom.NewVec2(5, 5), 0, participant))

	var deregistered market.ParticipantID
	w.MarkForDeath(RefOf(KindCompany, id))
	w.Flush(DropHooks{
		DeregisterCompany: func(cid CompanyID, m *market.Market) {
			c, ok := w.Companies.Get(cid)
			require.True(t, ok)
			deregistered = c.Participant
			_ = m
		},
	}, nil, mkt, nil)

	require.Equal(t, participant, deregistered)
	_, ok := w.Companies.Get(id)
	require.False(t, ok)
}

func TestSpawnTrain_HistorySamplingWalksRecordedPath(t *testing.T) {
	w := New()
	id := w.SpawnTrain(*NewTrain(TrainID{}, 0, geom.NewVec2(0, 0)))
	stored, ok := w.Trains.Get(id)
	require.True(t, ok)

	stored.PushHistory(geom.NewVec2(0, 0), 10)
	stored.PushHistory(geom.NewVec2(5, 0), 10)
	stored.PushHistory(geom.NewVec2(10, 0), 10)

	p, ok := stored.SampleHistory(7)
	require.True(t, ok)
	require.Equal(t, 0.0, p.Z)
}
