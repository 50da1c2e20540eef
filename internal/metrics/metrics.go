// Package metrics holds the Prometheus metrics exported by leapboard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leapboard"

// Metrics groups every metric family on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	Query      *QueryMetrics
	Dashboards *DashboardMetrics
}

// QueryMetrics instruments the keyed fetch cache.
type QueryMetrics struct {
	HitsTotal        prometheus.Counter
	MissesTotal      prometheus.Counter
	FetchesTotal     prometheus.Counter
	FetchErrorsTotal prometheus.Counter
	SupersededTotal  prometheus.Counter
	EvictionsTotal   prometheus.Counter
	FetchDuration    prometheus.Histogram
	Entries          prometheus.Gauge
}

// DashboardMetrics instruments dashboard mutations and sessions.
type DashboardMetrics struct {
	MutationsTotal *prometheus.CounterVec
	ImportsTotal   *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	ActiveViews    prometheus.Gauge
}

// New creates all metrics on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:   reg,
		Query:      NewQueryMetrics(reg),
		Dashboards: NewDashboardMetrics(reg),
	}
}

// NewQueryMetrics creates the fetch cache metrics on reg. A nil reg gets a
// throwaway registry, which keeps tests independent of each other.
func NewQueryMetrics(reg prometheus.Registerer) *QueryMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &QueryMetrics{
		HitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "cache_hits_total",
			Help:      "Total number of lookups answered from fresh cache entries",
		}),
		MissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "cache_misses_total",
			Help:      "Total number of lookups that required a fetch",
		}),
		FetchesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "fetches_total",
			Help:      "Total number of fetches actually executed",
		}),
		FetchErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "fetch_errors_total",
			Help:      "Total number of fetches that returned an error",
		}),
		SupersededTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "superseded_total",
			Help:      "Total number of results discarded because the observed key changed",
		}),
		EvictionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "cache_evictions_total",
			Help:      "Total number of entries evicted to respect the size bound",
		}),
		FetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of executed fetches",
			Buckets:   prometheus.DefBuckets,
		}),
		Entries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "cache_entries",
			Help:      "Current number of cache entries",
		}),
	}
}

// NewDashboardMetrics creates the dashboard metrics on reg.
func NewDashboardMetrics(reg prometheus.Registerer) *DashboardMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &DashboardMetrics{
		MutationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboards",
			Name:      "mutations_total",
			Help:      "Total number of dashboard mutations by operation and result",
		}, []string{"op", "result"}),
		ImportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboards",
			Name:      "imports_total",
			Help:      "Total number of dashboard imports by source and result",
		}, []string{"source", "result"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of sessions holding a dashboard provider",
		}),
		ActiveViews: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "views",
			Help:      "Number of open dashboard views across all sessions",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Result converts an error into the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
