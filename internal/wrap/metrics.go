package wrap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the transform metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "routewrap").
	Namespace string

	// Buckets are the histogram buckets for link duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the transform metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the Prometheus collectors updated by a Transformer. A nil
// *Metrics records nothing.
type Metrics struct {
	filesTotal   *prometheus.CounterVec
	linkDuration prometheus.Histogram
	fallbacks    *prometheus.CounterVec
}

// NewMetrics registers the transform collectors.
//
// Metrics collected:
//   - routewrap_files_total: files seen, by role and status
//   - routewrap_link_duration_seconds: time spent in the link pass
//   - routewrap_fallbacks_total: files left uninstrumented, by error code
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "routewrap",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	return &Metrics{
		filesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "files_total",
			Help:      "Total number of route files processed",
		}, []string{"role", "status"}),

		linkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "link_duration_seconds",
			Help:      "Link pass duration in seconds",
			Buckets:   config.Buckets,
		}),

		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "fallbacks_total",
			Help:      "Total number of files returned uninstrumented after an error",
		}, []string{"code"}),
	}
}

func (m *Metrics) observeFile(role, status string) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(role, status).Inc()
}

func (m *Metrics) observeLink(seconds float64) {
	if m == nil {
		return
	}
	m.linkDuration.Observe(seconds)
}

func (m *Metrics) observeFallback(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.fallbacks.WithLabelValues(code).Inc()
}
