// Package middleware provides cross-cutting observability concerns for the
// operator-graph runtime.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/opgraph/internal/ports"
)

// PrometheusMetrics implements ports.MetricsCollector using Prometheus. It
// backs the JIT core's cache-hit/miss counters and strategy-selection
// latency, and is generic enough for any other RecordCounter/RecordGauge/
// RecordHistogram caller in the runtime.
type PrometheusMetrics struct {
	operationDuration *prometheus.HistogramVec
	operationCounter  *prometheus.CounterVec
	runtimeGauges     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// all required metrics in the global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		operationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opgraph_operation_duration_seconds",
				Help:    "Execution time of operator-graph runtime operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "unit"},
		),
		operationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opgraph_operations_total",
				Help: "Total number of operator-graph runtime events, e.g. jit_cache_hit/jit_cache_miss.",
			},
			[]string{"operation", "status", "unit"},
		),
		runtimeGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "opgraph_runtime_gauge",
				Help: "Current values for operator-graph runtime state.",
			},
			[]string{"metric", "unit"},
		),
	}
}

// RecordLatency implements ports.MetricsCollector by recording execution
// latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	unit, ok := labels["unit"]
	if !ok || unit == "" {
		unit = "unknown"
	}
	pm.operationDuration.WithLabelValues(operation, unit).Observe(duration.Seconds())
}

// RecordCounter implements ports.MetricsCollector by incrementing a
// Prometheus counter, labeled by the caller-supplied metric name.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	unit, ok := labels["unit"]
	if !ok || unit == "" {
		unit = "unknown"
	}
	status := "ok"
	if s, ok := labels["status"]; ok && s != "" {
		status = s
	}
	pm.operationCounter.WithLabelValues(metric, status, unit).Add(value)
}

// RecordGauge implements ports.MetricsCollector by setting a Prometheus
// gauge value, keyed by the caller-supplied metric name.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	unit, ok := labels["unit"]
	if !ok || unit == "" {
		unit = "unknown"
	}
	pm.runtimeGauges.WithLabelValues(metric, unit).Set(value)
}

// RecordHistogram implements ports.MetricsCollector by recording values in
// a Prometheus histogram. This currently routes all histograms to the
// general operation-duration metric, since the runtime has no
// histogram-shaped metric beyond latency today.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	unit, ok := labels["unit"]
	if !ok || unit == "" {
		unit = "unknown"
	}
	pm.operationDuration.WithLabelValues(metric, unit).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
