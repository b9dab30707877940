// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the collector.
type Metrics struct {
	// Invocation metrics
	RunsTotal   *prometheus.CounterVec // by outcome status
	RunDuration prometheus.Histogram

	// Aggregator metrics
	SubprocessDuration prometheus.Histogram
	SubprocessErrors   *prometheus.CounterVec // by error kind

	// Validation metrics
	AttestationsCollected *prometheus.CounterVec // by feed source
	ValidationRejections  *prometheus.CounterVec // by reason

	// Delivery metrics
	DeliveryAttempts prometheus.Histogram
	LastDelivered    prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on the default
// Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a new Metrics instance registered on reg. Tests use
// this with a fresh registry to avoid duplicate-registration panics.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "collector_node"
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total invocations by outcome status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of one invocation",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		SubprocessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "subprocess_duration_seconds",
			Help:      "Wall-clock duration of the aggregator subprocess",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		SubprocessErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "subprocess_errors_total",
			Help:      "Aggregator subprocess failures by kind",
		}, []string{"kind"}),
		AttestationsCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "attestations_collected_total",
			Help:      "Validated attestations by feed source",
		}, []string{"source"}),
		ValidationRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "rejections_total",
			Help:      "Validation rejections by reason",
		}, []string{"reason"}),
		DeliveryAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "attempts",
			Help:      "Delivery attempts used per invocation",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		LastDelivered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last acknowledged delivery",
		}),
	}
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
