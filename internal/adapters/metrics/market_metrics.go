package metrics

import "github.com/prometheus/client_golang/prometheus"

// MarketMetricsCollector tracks order-book clearing outcomes: trades made,
// their kind (local match vs. external fallback), quantity traded, and
// self-trades skipped. Grounded on the teacher's MarketMetricsCollector
// shape (CounterVec/HistogramVec pairs registered together) but scoped down
// to what the deterministic clearing engine in internal/domain/market
// actually emits, since there is no polling-database market scanner here.
type MarketMetricsCollector struct {
	tradesTotal    *prometheus.CounterVec
	tradeQuantity  *prometheus.HistogramVec
	selfTradeSkips prometheus.Counter
}

func NewMarketMetricsCollector() *MarketMetricsCollector {
	return &MarketMetricsCollector{
		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "market_trades_total",
				Help:      "Total trades cleared, by item and kind (local/external_buy/external_sell)",
			},
			[]string{"item", "kind"},
		),
		tradeQuantity: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "market_trade_quantity",
				Help:      "Distribution of traded quantities per cleared trade",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"item"},
		),
		selfTradeSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "market_self_trades_skipped_total",
			Help:      "Number of candidate trades skipped because buyer and seller were the same participant",
		}),
	}
}

func (c *MarketMetricsCollector) Register() error {
	if Registry == nil {
		return nil
	}
	for _, m := range []prometheus.Collector{c.tradesTotal, c.tradeQuantity, c.selfTradeSkips} {
		if err := Registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *MarketMetricsCollector) RecordTrade(item, kind string, qty int) {
	c.tradesTotal.WithLabelValues(item, kind).Inc()
	c.tradeQuantity.WithLabelValues(item).Observe(float64(qty))
}

func (c *MarketMetricsCollector) RecordSelfTradeSkip() {
	c.selfTradeSkips.Inc()
}
