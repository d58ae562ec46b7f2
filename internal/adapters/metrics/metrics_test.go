package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectors_RegisterIsNoOpWithoutRegistry(t *testing.T) {
	Registry = nil
	require.NoError(t, NewTickMetricsCollector().Register())
	require.NoError(t, NewMarketMetricsCollector().Register())
	require.NoError(t, NewNetworkMetricsCollector().Register())
	require.NoError(t, NewCommandMetricsCollector().Register())
}

func TestCollectors_RegisterSucceedsOnceWithRegistry(t *testing.T) {
	InitRegistry()
	defer func() { Registry = nil }()

	require.NoError(t, NewTickMetricsCollector().Register())
	require.NoError(t, NewMarketMetricsCollector().Register())
	require.NoError(t, NewNetworkMetricsCollector().Register())
}

func TestTickMetricsCollector_RecordDoesNotPanic(t *testing.T) {
	c := NewTickMetricsCollector()
	require.NotPanics(t, func() {
		c.RecordStep("itinerary", 0.001)
		c.RecordTick(0.01)
	})
}

func TestMarketMetricsCollector_RecordDoesNotPanic(t *testing.T) {
	c := NewMarketMetricsCollector()
	require.NotPanics(t, func() {
		c.RecordTrade("wheat", "local", 5)
		c.RecordSelfTradeSkip()
	})
}

func TestNetworkMetricsCollector_RecordDoesNotPanic(t *testing.T) {
	c := NewNetworkMetricsCollector()
	require.NotPanics(t, func() {
		c.SetClientsConnected(3)
		c.RecordDisconnect("timeout")
		c.RecordCatchUp(12)
		c.SetInputBufferDepth(4)
	})
}
