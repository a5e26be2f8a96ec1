// Package metrics provides Prometheus metrics for vmrange
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the vmrange allocator
type Metrics struct {
	// Allocator operation metrics
	AllocOpsTotal     *prometheus.CounterVec
	AllocDuration     *prometheus.HistogramVec
	FreeOpsTotal      *prometheus.CounterVec
	FreeDuration      prometheus.Histogram
	CoalesceOpsTotal  prometheus.Counter
	ExhaustionsTotal  prometheus.Counter

	// Tree shape metrics
	TreeDepth         prometheus.Gauge
	FreeRangesTotal    prometheus.Gauge
	FreeBytesTotal     prometheus.Gauge
	LargestFreeBytes   prometheus.Gauge

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// Allocator operation metrics
	m.AllocOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmrange_alloc_ops_total",
			Help: "Total number of Alloc calls, by outcome",
		},
		[]string{"status"},
	)

	m.AllocDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vmrange_alloc_duration_seconds",
			Help:    "Duration of Alloc calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	m.FreeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmrange_free_ops_total",
			Help: "Total number of Free/Insert calls, by outcome",
		},
		[]string{"status"},
	)

	m.FreeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vmrange_free_duration_seconds",
			Help:    "Duration of Free/Insert calls in seconds",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	m.CoalesceOpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vmrange_coalesce_ops_total",
			Help: "Total number of Free calls that coalesced into an existing neighbor",
		},
	)

	m.ExhaustionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vmrange_exhaustions_total",
			Help: "Total number of Alloc calls that found no fitting free range",
		},
	)

	// Tree shape metrics
	m.TreeDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmrange_tree_depth",
			Help: "Current depth of the B+ tree, root to leaf",
		},
	)

	m.FreeRangesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmrange_free_ranges_total",
			Help: "Current number of disjoint free ranges tracked",
		},
	)

	m.FreeBytesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmrange_free_bytes_total",
			Help: "Current total free bytes across all ranges",
		},
	)

	m.LargestFreeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmrange_largest_free_bytes",
			Help: "Size of the largest single free range (root subAvail)",
		},
	)

	// Server metrics
	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmrange_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime periodically updates the server uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordAlloc records an Alloc call with its outcome.
func (m *Metrics) RecordAlloc(status string, duration time.Duration) {
	m.AllocOpsTotal.WithLabelValues(status).Inc()
	m.AllocDuration.WithLabelValues(status).Observe(duration.Seconds())
	if status == "exhausted" {
		m.ExhaustionsTotal.Inc()
	}
}

// RecordFree records a Free/Insert call with its outcome.
func (m *Metrics) RecordFree(status string, duration time.Duration, coalesced bool) {
	m.FreeOpsTotal.WithLabelValues(status).Inc()
	m.FreeDuration.Observe(duration.Seconds())
	if coalesced {
		m.CoalesceOpsTotal.Inc()
	}
}

// UpdateTreeStats updates the tree shape gauges, typically sampled after a
// batch of operations rather than on every Alloc/Free.
func (m *Metrics) UpdateTreeStats(depth int, rangeCount int, freeBytes, largestFree uint64) {
	m.TreeDepth.Set(float64(depth))
	m.FreeRangesTotal.Set(float64(rangeCount))
	m.FreeBytesTotal.Set(float64(freeBytes))
	m.LargestFreeBytes.Set(float64(largestFree))
}
