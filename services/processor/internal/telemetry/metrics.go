package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of a processing run.
type Metrics struct {
	registry *prometheus.Registry

	PairsProcessed    *prometheus.CounterVec
	BaselinesComputed *prometheus.CounterVec
	MatchFailures     *prometheus.CounterVec
	PairDuration      prometheus.Histogram
	EstimateFailures  prometheus.Counter
	RecordsIngested   *prometheus.CounterVec
}

// NewMetrics registers the processor collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		PairsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geosea_pairs_processed_total",
				Help: "Station pairs processed, by outcome",
			},
			[]string{"result"},
		),

		BaselinesComputed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geosea_baselines_computed_total",
				Help: "Baseline lengths computed, by sound-speed source column",
			},
			[]string{"column"},
		),

		MatchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geosea_match_failures_total",
				Help: "Timestamps that could not be matched to a companion value, by column",
			},
			[]string{"column"},
		),

		PairDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "geosea_pair_duration_seconds",
				Help:    "Time taken to enrich one station pair",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),

		EstimateFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "geosea_estimate_failures_total",
				Help: "Constant-baseline fits that could not be computed",
			},
		),

		RecordsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geosea_records_ingested_total",
				Help: "Raw records ingested, by record type",
			},
			[]string{"type"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePair records the outcome of one pair.
func (m *Metrics) ObservePair(elapsed time.Duration, failed bool, successes, failures map[string]int) {
	if m == nil {
		return
	}
	result := "ok"
	if failed {
		result = "error"
	}
	m.PairsProcessed.WithLabelValues(result).Inc()
	m.PairDuration.Observe(elapsed.Seconds())
	for col, n := range successes {
		m.BaselinesComputed.WithLabelValues(col).Add(float64(n))
	}
	for col, n := range failures {
		m.MatchFailures.WithLabelValues(col).Add(float64(n))
	}
}

// ObserveEstimateFailure counts a failed constant-baseline fit.
func (m *Metrics) ObserveEstimateFailure() {
	if m == nil {
		return
	}
	m.EstimateFailures.Inc()
}

// ObserveIngest counts parsed raw records.
func (m *Metrics) ObserveIngest(recordType string, n int) {
	if m == nil {
		return
	}
	m.RecordsIngested.WithLabelValues(recordType).Add(float64(n))
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
