package metrics

import "github.com/prometheus/client_golang/prometheus"

// NetworkMetricsCollector tracks lockstep client lifecycle and per-frame
// catch-up behavior (spec.md §4.11), grounded on the teacher's
// CommandMetricsCollector shape.
type NetworkMetricsCollector struct {
	clientsConnected prometheus.Gauge
	disconnectsTotal *prometheus.CounterVec
	catchUpFrames    prometheus.Histogram
	inputBufferDepth prometheus.Gauge
}

func NewNetworkMetricsCollector() *NetworkMetricsCollector {
	return &NetworkMetricsCollector{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "network_clients_connected",
			Help:      "Number of clients currently in the Playing state",
		}),
		disconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "network_disconnects_total",
				Help:      "Total client disconnects, by reason code",
			},
			[]string{"reason"},
		),
		catchUpFrames: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "network_catch_up_frames",
			Help:      "Number of frames a client consumed during catch-up before reaching the Playing state",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		inputBufferDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "network_input_buffer_depth",
			Help:      "Current backlog of frames in the client's playout buffer",
		}),
	}
}

func (c *NetworkMetricsCollector) Register() error {
	if Registry == nil {
		return nil
	}
	for _, m := range []prometheus.Collector{c.clientsConnected, c.disconnectsTotal, c.catchUpFrames, c.inputBufferDepth} {
		if err := Registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *NetworkMetricsCollector) SetClientsConnected(n int) { c.clientsConnected.Set(float64(n)) }
func (c *NetworkMetricsCollector) RecordDisconnect(reason string) {
	c.disconnectsTotal.WithLabelValues(reason).Inc()
}
func (c *NetworkMetricsCollector) RecordCatchUp(frames int) { c.catchUpFrames.Observe(float64(frames)) }
func (c *NetworkMetricsCollector) SetInputBufferDepth(depth int) {
	c.inputBufferDepth.Set(float64(depth))
}
