// Package metrics holds the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "estatekeeper"

type Metrics struct {
	registry       *prometheus.Registry
	Operations     *prometheus.CounterVec
	RetryAttempts  *prometheus.CounterVec
	EncryptionWait prometheus.Histogram
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "operations_total", Help: "Document operations by outcome."},
			[]string{"operation", "outcome"},
		),
		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "retry_attempts_total", Help: "Failed attempts that were retried."},
			[]string{"operation"},
		),
		EncryptionWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encryption_wait_seconds",
			Help:      "Time spent waiting for the storage backend to encrypt an object.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.Operations,
		m.RetryAttempts,
		m.EncryptionWait,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveRetry(operation string) {
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveEncryptionWait(d time.Duration) {
	m.EncryptionWait.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
