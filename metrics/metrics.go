// Package metrics instruments the engine with Prometheus collectors on a
// private registry (spec.md's HTTP façade is out of scope, so nothing here
// serves a "/metrics" endpoint; callers that want one wire Registry() into
// their own handler). Grounded on AleutianFOSS's egress metrics
// (services/trace/agent/providers/egress/metrics.go), generalized from a
// package-level global registry to one private registry per Metrics value
// so tests can instantiate independent instances.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the engine records against. Call New once
// per process (or per test) and pass it to the index Registry; only the
// index package records to it, and nothing increments DictionaryMisses or
// DictionaryConflicts.
type Metrics struct {
	reg *prometheus.Registry

	DocumentsIndexed   *prometheus.CounterVec
	SegmentsFlushed     prometheus.Counter
	DictionaryMisses    prometheus.Counter
	DictionaryConflicts prometheus.Counter
	QueryLatency        *prometheus.HistogramVec
	QueryTotal          *prometheus.CounterVec
}

// New builds a Metrics registered on a fresh, private prometheus.Registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		DocumentsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ftsearch",
			Subsystem: "index",
			Name:      "documents_indexed_total",
			Help:      "Documents successfully prepared and flushed, by index.",
		}, []string{"index"}),
		SegmentsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ftsearch",
			Subsystem: "index",
			Name:      "segments_flushed_total",
			Help:      "Segments written by WriteSegment.",
		}),
		DictionaryMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ftsearch",
			Subsystem: "termdict",
			Name:      "misses_total",
			Help:      "get_or_create calls that allocated a new TermRef.",
		}),
		DictionaryConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ftsearch",
			Subsystem: "termdict",
			Name:      "conflicts_retried_total",
			Help:      "Dictionary write races retried internally (spec.md §7).",
		}),
		QueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ftsearch",
			Subsystem: "query",
			Name:      "latency_seconds",
			Help:      "Query.Execute wall-clock latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"index"}),
		QueryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ftsearch",
			Subsystem: "query",
			Name:      "executions_total",
			Help:      "Query.Execute calls by outcome.",
		}, []string{"index", "outcome"}),
	}
	reg.MustRegister(
		m.DocumentsIndexed,
		m.SegmentsFlushed,
		m.DictionaryMisses,
		m.DictionaryConflicts,
		m.QueryLatency,
		m.QueryTotal,
	)
	return m
}

// Registry exposes the private registry for a caller-owned "/metrics"
// handler; this package never serves HTTP itself.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveQuery records one Execute call's latency and outcome.
func (m *Metrics) ObserveQuery(index string, start time.Time, err error) {
	m.QueryLatency.WithLabelValues(index).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.QueryTotal.WithLabelValues(index, outcome).Inc()
}
