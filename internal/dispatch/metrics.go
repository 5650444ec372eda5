package dispatch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "edge"
	subsystem = "dispatch"
)

// Metrics holds the dispatcher's Prometheus metrics.
type Metrics struct {
	RequestsTotal          *prometheus.CounterVec
	ResolveDurationSeconds *prometheus.HistogramVec
	RewritesTotal          *prometheus.CounterVec
	ConfigReloadsTotal     *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// NewMetrics creates the dispatcher metrics, registered via promauto
// on the default global registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Total number of dispatched requests by host and outcome",
			},
			[]string{"host", "outcome"},
		),
		ResolveDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "resolve_duration_seconds",
				Help:      "Time spent resolving a request against the host tree",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 10, 6),
			},
			[]string{"host"},
		),
		RewritesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rewrites_total",
				Help:      "Total number of matched rewrite rules by host and rule type",
			},
			[]string{"host", "type"},
		),
		ConfigReloadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "config_reloads_total",
				Help:      "Total number of configuration tree swaps by status",
			},
			[]string{"status"},
		),
	}
}

// GetMetrics returns the process-wide dispatcher metrics. promauto
// panics on duplicate registration, so the instance is created once.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = NewMetrics()
	})
	return metricsInstance
}
