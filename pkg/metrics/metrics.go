package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	enricher = "enricher"

	// Adapter metrics
	adapterCallsTotal = "adapter_calls_total"
	cacheLookupsTotal = "cache_lookups_total"

	// Job metrics
	jobsTotal = "jobs_total"

	// Labels
	sourceLabel      = "source"
	callStatusLabel  = "status"
	cacheResultLabel = "result"
	jobStatusLabel   = "status"
)

var adapterCallsLabels = []string{
	sourceLabel,
	callStatusLabel,
}

var cacheLookupsLabels = []string{
	sourceLabel,
	cacheResultLabel,
}

var jobsTotalLabels = []string{
	jobStatusLabel,
}

/**
* Metrics definition
**/
var adapterCallsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: enricher,
		Name:      adapterCallsTotal,
		Help:      "number of adapter calls by source and outcome",
	},
	adapterCallsLabels,
)

var cacheLookupsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: enricher,
		Name:      cacheLookupsTotal,
		Help:      "number of batch cache lookups by source and result",
	},
	cacheLookupsLabels,
)

var jobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: enricher,
		Name:      jobsTotal,
		Help:      "number of enrichment jobs by terminal status",
	},
	jobsTotalLabels,
)

var breakerStateMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: enricher,
		Name:      "breaker_state",
		Help:      "circuit breaker state per source (0 closed, 1 half-open, 2 open)",
	},
	[]string{sourceLabel},
)

func IncreaseAdapterCallsTotalMetric(source, status string) {
	labels := prometheus.Labels{
		sourceLabel:     source,
		callStatusLabel: status,
	}
	adapterCallsTotalMetric.With(labels).Inc()
}

func IncreaseCacheLookupsTotalMetric(source, result string) {
	labels := prometheus.Labels{
		sourceLabel:      source,
		cacheResultLabel: result,
	}
	cacheLookupsTotalMetric.With(labels).Inc()
}

func IncreaseJobsTotalMetric(status string) {
	labels := prometheus.Labels{
		jobStatusLabel: status,
	}
	jobsTotalMetric.With(labels).Inc()
}

func UpdateBreakerStateMetric(source string, state float64) {
	breakerStateMetric.With(prometheus.Labels{sourceLabel: source}).Set(state)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(adapterCallsTotalMetric)
	prometheus.MustRegister(cacheLookupsTotalMetric)
	prometheus.MustRegister(jobsTotalMetric)
	prometheus.MustRegister(breakerStateMetric)
}
