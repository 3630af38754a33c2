// internal/selfmetrics/metrics.go

// Package selfmetrics exposes the engine's own counters on the default Prometheus registry.
package selfmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "georaft_"

var hubEventsPublished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "hub_events_published_total",
		Help: "Events delivered to subscribers, by topic",
	},
	[]string{"topic"},
)

var hubEventsDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "hub_events_dropped_total",
		Help: "Events dropped because a subscriber buffer was full, by topic",
	},
	[]string{"topic"},
)

var hubSubscribers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: prefix + "hub_subscribers",
		Help: "Currently connected subscribers",
	},
)

var sourceQueries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "source_queries_total",
		Help: "Metric source queries, by source and outcome",
	},
	[]string{"source", "outcome"},
)

var sourceQueryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    prefix + "source_query_duration_seconds",
		Help:    "Latency of metric source queries",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"source"},
)

var collectionTicks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "collection_ticks_total",
		Help: "Completed collector ticks, by collector",
	},
	[]string{"collector"},
)

var benchmarkRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "benchmark_runs_total",
		Help: "Finished benchmark runs, by terminal status",
	},
	[]string{"status"},
)

var benchmarkActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: prefix + "benchmark_active",
		Help: "1 while a benchmark run occupies the active slot",
	},
)

// RecordPublished counts one delivered event.
func RecordPublished(topic string) { hubEventsPublished.WithLabelValues(topic).Inc() }

// RecordDropped counts one event lost to a full subscriber buffer.
func RecordDropped(topic string) { hubEventsDropped.WithLabelValues(topic).Inc() }

// SetSubscribers reports the current subscriber count.
func SetSubscribers(n int) { hubSubscribers.Set(float64(n)) }

// RecordSourceQuery counts one query and observes its latency.
func RecordSourceQuery(source string, available bool, took time.Duration) {
	outcome := "available"
	if !available {
		outcome = "unavailable"
	}
	sourceQueries.WithLabelValues(source, outcome).Inc()
	sourceQueryDuration.WithLabelValues(source).Observe(took.Seconds())
}

// RecordTick counts one finished collector tick.
func RecordTick(collector string) { collectionTicks.WithLabelValues(collector).Inc() }

// RecordRun counts one finished benchmark run.
func RecordRun(status string) { benchmarkRuns.WithLabelValues(status).Inc() }

// SetBenchmarkActive reports whether a run is active.
func SetBenchmarkActive(active bool) {
	if active {
		benchmarkActive.Set(1)
		return
	}
	benchmarkActive.Set(0)
}
