package metrics

import "github.com/prometheus/client_golang/prometheus"

// TickMetricsCollector records per-system step duration within a tick,
// grounded on the teacher's CommandMetricsCollector shape (one
// HistogramVec plus one CounterVec, both labeled, a constructor and a
// Register()) applied to the scheduler's fixed system sequence instead of
// mediator commands.
type TickMetricsCollector struct {
	stepDuration *prometheus.HistogramVec
	ticksTotal   prometheus.Counter
	tickDuration prometheus.Histogram
}

func NewTickMetricsCollector() *TickMetricsCollector {
	return &TickMetricsCollector{
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tick_step_duration_seconds",
				Help:      "Duration of each scheduler system step within a tick",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
			[]string{"step"},
		),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ticks_total",
			Help:      "Total number of simulation ticks processed",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_duration_seconds",
			Help:      "Total duration of a full tick across all system steps",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}
}

func (c *TickMetricsCollector) Register() error {
	if Registry == nil {
		return nil
	}
	for _, m := range []prometheus.Collector{c.stepDuration, c.ticksTotal, c.tickDuration} {
		if err := Registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// RecordStep records one system step's duration in seconds.
func (c *TickMetricsCollector) RecordStep(step string, seconds float64) {
	c.stepDuration.WithLabelValues(step).Observe(seconds)
}

// RecordTick records a completed tick's total duration.
func (c *TickMetricsCollector) RecordTick(seconds float64) {
	c.ticksTotal.Inc()
	c.tickDuration.Observe(seconds)
}
