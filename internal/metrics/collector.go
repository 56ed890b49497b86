// Package metrics exposes run loop activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/apply-agent/internal/types"
)

const namespace = "apply_agent"

// Collector records outcomes, scans and run state. A nil *Collector is a valid no-op.
type Collector struct {
	outcomes   *prometheus.CounterVec
	scans      prometheus.Counter
	listings   prometheus.Counter
	running    prometheus.Gauge
	applied    prometheus.Gauge
	driveTicks prometheus.Histogram
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Application attempts by terminal outcome",
		}, []string{"outcome"}),
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of result-pane scans",
		}),
		listings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_scanned_total",
			Help:      "Total number of rendered listings seen by scans",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while a run loop is active",
		}),
		applied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_applied",
			Help:      "Applications submitted in the current session",
		}),
		driveTicks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drive_ticks",
			Help:      "Ticks used per application attempt",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 20},
		}),
	}

	reg.MustRegister(c.outcomes, c.scans, c.listings, c.running, c.applied, c.driveTicks)
	return c
}

// RecordOutcome counts one driver outcome.
func (c *Collector) RecordOutcome(o types.Outcome) {
	if c == nil {
		return
	}
	c.outcomes.WithLabelValues(string(o.Kind)).Inc()
	c.driveTicks.Observe(float64(o.Ticks))
}

// RecordScan counts one scan and the listings it saw.
func (c *Collector) RecordScan(rendered int) {
	if c == nil {
		return
	}
	c.scans.Inc()
	c.listings.Add(float64(rendered))
}

// SetRunning flips the running gauge.
func (c *Collector) SetRunning(running bool) {
	if c == nil {
		return
	}
	if running {
		c.running.Set(1)
	} else {
		c.running.Set(0)
	}
}

// SetApplied mirrors the session counter.
func (c *Collector) SetApplied(n uint) {
	if c == nil {
		return
	}
	c.applied.Set(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
