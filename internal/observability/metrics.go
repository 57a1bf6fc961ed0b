// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Feed metrics
	EventsProcessed *prometheus.CounterVec
	FeedErrors      *prometheus.CounterVec
	FeedLatency     prometheus.Histogram
	QueueDepth      prometheus.Gauge
	QueueDropped    prometheus.Counter
	FeedReconnects  prometheus.Counter

	// Strategy metrics
	SignalsEmitted *prometheus.CounterVec
	StrategyErrors *prometheus.CounterVec

	// Execution metrics
	RiskRejections    *prometheus.CounterVec
	Executions        *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	BatchDuration     prometheus.Histogram

	// Position metrics
	ActivePositions prometheus.Gauge
	TotalInvested   prometheus.Gauge
	TotalPnL        prometheus.Gauge
	DailyPnL        prometheus.Gauge

	// Persistence metrics
	TicksDropped prometheus.Counter
	SinkErrors   *prometheus.CounterVec

	lastDropped atomic.Uint64
}

// NewMetrics creates a Metrics instance registered on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "dexbot"
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_processed_total",
			Help:      "Total number of normalized feed events by kind",
		}, []string{"kind"}),
		FeedErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Total number of feed messages that failed normalization",
		}, []string{"reason"}),
		FeedLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "latency_seconds",
			Help:      "Delay between upstream receipt and local receipt",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "queue_depth",
			Help:      "Messages waiting in the feed queue",
		}),
		QueueDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "queue_dropped_total",
			Help:      "Messages dropped from the feed queue on overflow (oldest first)",
		}),
		FeedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Feed websocket reconnect attempts",
		}),

		SignalsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "signals_total",
			Help:      "Trade signals emitted by strategy and side",
		}, []string{"strategy", "type"}),
		StrategyErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "errors_total",
			Help:      "Recovered strategy failures by strategy and hook",
		}, []string{"strategy", "hook"}),

		RiskRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "risk_rejections_total",
			Help:      "Signals rejected by the risk gate by reason",
		}, []string{"reason"}),
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "executions_total",
			Help:      "Executed signals by side and outcome",
		}, []string{"type", "outcome"}),
		ExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "duration_seconds",
			Help:      "Executor round-trip duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "batch_duration_seconds",
			Help:      "Time to process one event or exit sweep end to end",
			Buckets:   prometheus.DefBuckets,
		}),

		ActivePositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "active",
			Help:      "Number of active positions",
		}),
		TotalInvested: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "invested_sol",
			Help:      "SOL invested in active positions",
		}),
		TotalPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "pnl_sol",
			Help:      "Total PnL across active and closed positions",
		}),
		DailyPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "daily_pnl_sol",
			Help:      "PnL of positions opened or closed since local midnight",
		}),

		TicksDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "ticks_dropped_total",
			Help:      "Price ticks dropped because the tick writer queue was full",
		}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "sink_errors_total",
			Help:      "Write failures by sink",
		}, []string{"sink"}),
	}
}

// Handler returns the HTTP handler for the metrics endpoint of reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RecordEvent records a processed event and its feed latency.
func (m *Metrics) RecordEvent(kind string, latencyMs *float64) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(kind).Inc()
	if latencyMs != nil {
		m.FeedLatency.Observe(*latencyMs / 1000)
	}
}

// RecordFeedError records a message that failed normalization.
func (m *Metrics) RecordFeedError(reason string) {
	if m == nil {
		return
	}
	m.FeedErrors.WithLabelValues(reason).Inc()
}

// RecordQueue updates queue depth. dropped is the queue's running total;
// only the increase since the previous call is added.
func (m *Metrics) RecordQueue(depth int, dropped uint64) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
	if prev := m.lastDropped.Swap(dropped); dropped > prev {
		m.QueueDropped.Add(float64(dropped - prev))
	}
}

// RecordReconnect records a feed reconnect attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.FeedReconnects.Inc()
}

// RecordSignal records an emitted trade signal.
func (m *Metrics) RecordSignal(strategy, signalType string) {
	if m == nil {
		return
	}
	m.SignalsEmitted.WithLabelValues(strategy, signalType).Inc()
}

// RecordStrategyError records a recovered strategy failure.
func (m *Metrics) RecordStrategyError(strategy, hook string) {
	if m == nil {
		return
	}
	m.StrategyErrors.WithLabelValues(strategy, hook).Inc()
}

// RecordRejection records a risk gate rejection.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.RiskRejections.WithLabelValues(reason).Inc()
}

// RecordExecution records an executor call.
func (m *Metrics) RecordExecution(signalType string, success bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.Executions.WithLabelValues(signalType, outcome).Inc()
	m.ExecutionDuration.WithLabelValues(signalType).Observe(seconds)
}

// RecordBatch records the duration of one processing pass.
func (m *Metrics) RecordBatch(seconds float64) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(seconds)
}

// UpdatePositions refreshes the position gauges.
func (m *Metrics) UpdatePositions(active int, invested, totalPnL, dailyPnL float64) {
	if m == nil {
		return
	}
	m.ActivePositions.Set(float64(active))
	m.TotalInvested.Set(invested)
	m.TotalPnL.Set(totalPnL)
	m.DailyPnL.Set(dailyPnL)
}

// RecordTickDropped records a price tick lost to a full writer queue.
func (m *Metrics) RecordTickDropped() {
	if m == nil {
		return
	}
	m.TicksDropped.Inc()
}

// RecordSinkError records a failed write to an auxiliary sink.
func (m *Metrics) RecordSinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}
