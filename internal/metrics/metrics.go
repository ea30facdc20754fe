// Package metrics exposes the runtime's prometheus surface: quote-loop
// health, order lifecycle counts, and cycle timing, on a dedicated
// registry namespaced kiatrader_*.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry is the custom prometheus registry for this system's metrics.
	Registry = prometheus.NewRegistry()

	mu sync.RWMutex

	// ============================================
	// Quote monitoring loop
	// ============================================

	// QuoteLoopState reports the loop's health as a number: 0=STOPPED,
	// 1=RUNNING, 2=DEGRADED.
	QuoteLoopState = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kiatrader",
			Subsystem: "quote_loop",
			Name:      "state",
			Help:      "Quote monitoring loop state (0=stopped, 1=running, 2=degraded)",
		},
	)

	// QuoteCyclesTotal counts every completed poll cycle.
	QuoteCyclesTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "kiatrader",
			Subsystem: "quote_loop",
			Name:      "cycles_total",
			Help:      "Total number of quote monitoring cycles run",
		},
	)

	// QuoteLastQuoteCount reports how many quotes the most recent cycle fetched.
	QuoteLastQuoteCount = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kiatrader",
			Subsystem: "quote_loop",
			Name:      "last_quote_count",
			Help:      "Number of quotes returned by the most recent cycle",
		},
	)

	// QuoteLastErrorCount reports the most recent cycle's per-symbol error count.
	QuoteLastErrorCount = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kiatrader",
			Subsystem: "quote_loop",
			Name:      "last_error_count",
			Help:      "Per-symbol error count of the most recent cycle",
		},
	)

	// QuoteCycleDuration tracks how long each poll-and-feed cycle takes.
	QuoteCycleDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kiatrader",
			Subsystem: "quote_loop",
			Name:      "cycle_duration_seconds",
			Help:      "Quote monitoring cycle duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	// ============================================
	// Order lifecycle
	// ============================================

	// OrdersSubmittedTotal counts every order submission attempt by side and
	// broker outcome ("accepted", "rejected", "submit_failed").
	OrdersSubmittedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiatrader",
			Subsystem: "order",
			Name:      "submitted_total",
			Help:      "Total number of orders submitted, by side and outcome",
		},
		[]string{"side", "outcome"},
	)

	// PositionOpenGauge is 1 while the single-position gate holds an open
	// position, 0 otherwise.
	PositionOpenGauge = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kiatrader",
			Subsystem: "position",
			Name:      "open",
			Help:      "Whether the single-position slot is currently occupied (1) or flat (0)",
		},
	)

	// PositionProfitRate reports the active position's current profit rate
	// percentage, 0 when flat.
	PositionProfitRate = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kiatrader",
			Subsystem: "position",
			Name:      "current_profit_rate_percent",
			Help:      "Current profit rate percentage of the open position",
		},
	)

	// ============================================
	// Engine
	// ============================================

	// EngineRunning is 1 while the trading engine is started, 0 when idle.
	EngineRunning = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kiatrader",
			Subsystem: "engine",
			Name:      "running",
			Help:      "Whether the trading engine is running (1) or idle (0)",
		},
	)
)

// SetQuoteLoopState maps a loop state label to its numeric gauge value.
func SetQuoteLoopState(state string) {
	mu.Lock()
	defer mu.Unlock()

	switch state {
	case "RUNNING":
		QuoteLoopState.Set(1)
	case "DEGRADED":
		QuoteLoopState.Set(2)
	default:
		QuoteLoopState.Set(0)
	}
}

// RecordCycle updates the quote-loop gauges/counters for one completed cycle.
func RecordCycle(quoteCount, errorCount int, durationSeconds float64) {
	QuoteCyclesTotal.Inc()
	QuoteLastQuoteCount.Set(float64(quoteCount))
	QuoteLastErrorCount.Set(float64(errorCount))
	QuoteCycleDuration.Observe(durationSeconds)
}

// RecordOrderSubmission increments the order outcome counter.
func RecordOrderSubmission(side, outcome string) {
	OrdersSubmittedTotal.WithLabelValues(side, outcome).Inc()
}

// SetPositionState reflects the active position's open/flat state and
// profit rate.
func SetPositionState(open bool, profitRatePercent float64) {
	if open {
		PositionOpenGauge.Set(1)
	} else {
		PositionOpenGauge.Set(0)
	}
	PositionProfitRate.Set(profitRatePercent)
}

// SetEngineRunning reflects the trading engine's start/stop state.
func SetEngineRunning(running bool) {
	if running {
		EngineRunning.Set(1)
	} else {
		EngineRunning.Set(0)
	}
}

// Init registers the default prometheus process/go collectors.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}
