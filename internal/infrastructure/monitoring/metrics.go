// Package monitoring provides the observability stack: Prometheus metrics,
// the zap logger adapter, and OpenTelemetry tracing.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics manages the Prometheus metrics of the decision engine.
type Metrics struct {
	Decisions        *prometheus.CounterVec
	DecisionLatency  *prometheus.HistogramVec
	DegradedFallback *prometheus.CounterVec
	StoreLatency     *prometheus.HistogramVec
	DenyCacheHits    prometheus.Counter
	ActiveRules      prometheus.Gauge
}

// NewMetrics creates and registers the metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitgate_decisions_total",
				Help: "Admission decisions by rule, strategy, and result.",
			},
			[]string{"rule_id", "strategy", "result"},
		),
		DecisionLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "limitgate_decision_latency_seconds",
				Help:    "End-to-end latency of one admission check.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		DegradedFallback: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limitgate_degraded_decisions_total",
				Help: "Decisions resolved by the fallback policy while the store was unavailable.",
			},
			[]string{"policy"},
		),
		StoreLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "limitgate_store_latency_seconds",
				Help:    "Counter store round trip latency by operation.",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"operation"},
		),
		DenyCacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "limitgate_deny_cache_hits_total",
				Help: "Rejections served from the local deny cache.",
			},
		),
		ActiveRules: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "limitgate_active_rules",
				Help: "Rules in the current registry snapshot.",
			},
		),
	}
}

// RecordDecision records one finished admission check.
func (m *Metrics) RecordDecision(ruleID, strategy, result string, duration time.Duration) {
	m.Decisions.WithLabelValues(ruleID, strategy, result).Inc()
	m.DecisionLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordDegraded records a decision resolved by the fallback policy.
func (m *Metrics) RecordDegraded(policy string) {
	m.DegradedFallback.WithLabelValues(policy).Inc()
}

// ObserveStore records one counter store round trip.
func (m *Metrics) ObserveStore(operation string, duration time.Duration) {
	m.StoreLatency.WithLabelValues(operation).Observe(duration.Seconds())
}
