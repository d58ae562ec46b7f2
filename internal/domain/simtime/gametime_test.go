package simtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromTick_DerivesHourMinuteSecond(t *testing.T) {
	gt := FromTick(0)
	require.Equal(t, 0, gt.Hour)
	require.Equal(t, 0, gt.Minute)
	require.InDelta(t, 0, gt.Second, 1e-9)

	ticksPerHour := Tick(3600 / TickPeriod)
	gt = FromTick(ticksPerHour)
	require.Equal(t, 1, gt.Hour)
	require.Equal(t, 0, gt.Minute)
}

func TestFromTick_WrapsAtDayBoundary(t *testing.T) {
	ticksPerDay := Tick(SecondsPerDay / TickPeriod)
	gt := FromTick(ticksPerDay)
	require.Equal(t, 0, gt.Hour)
	require.InDelta(t, 0, gt.TimestampSeconds-SecondsPerDay, 1e-6)
}

func TestClock_AdvanceIsMonotonicAndNeverSkips(t *testing.T) {
	c := NewClock(0)
	for i := Tick(1); i <= 5; i++ {
		got := c.Advance()
		require.Equal(t, i, got)
	}
	require.Equal(t, Tick(5), c.Tick())
}

func TestClock_SetOverwritesForSnapshotLoad(t *testing.T) {
	c := NewClock(0)
	c.Set(1000)
	require.Equal(t, Tick(1000), c.Tick())
	require.Equal(t, Tick(1000), c.Now().TickID)
}
