package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "opsboard"

// Collector is a prometheus.Collector for the flag cache and the probe runner.
// A nil *Collector is valid and records nothing.
type Collector struct {
	flagReloads   *prometheus.CounterVec
	flagLookups   *prometheus.CounterVec
	probeResults  *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		flagReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "flags",
				Name:      "reloads_total",
				Help:      "Feature flag table reloads by outcome.",
			}, []string{"outcome"},
		),
		flagLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "flags",
				Name:      "lookups_total",
				Help:      "Feature flag reads by cache state.",
			}, []string{"state"},
		),
		probeResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "health",
				Name:      "probe_results_total",
				Help:      "Probe results by service and status.",
			}, []string{"service", "status"},
		),
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "health",
				Name:      "probe_duration_seconds",
				Help:      "Wall time spent in each probe.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			}, []string{"service"},
		),
	}
}

func (c *Collector) FlagReload(outcome string) {
	if c == nil {
		return
	}
	c.flagReloads.WithLabelValues(outcome).Inc()
}

func (c *Collector) FlagLookup(state string) {
	if c == nil {
		return
	}
	c.flagLookups.WithLabelValues(state).Inc()
}

func (c *Collector) ProbeResult(service, status string, seconds float64) {
	if c == nil {
		return
	}
	c.probeResults.WithLabelValues(service, status).Inc()
	c.probeDuration.WithLabelValues(service).Observe(seconds)
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.flagReloads.Describe(ch)
	c.flagLookups.Describe(ch)
	c.probeResults.Describe(ch)
	c.probeDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.flagReloads.Collect(ch)
	c.flagLookups.Collect(ch)
	c.probeResults.Collect(ch)
	c.probeDuration.Collect(ch)
}
