// Package metrics exposes fleet and request counters in Prometheus
// format.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements core.Metrics over a private registry so tests
// can run multiple instances in one process.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	listeners prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mocktide_requests_total",
		Help: "Requests handled by managed listeners, by strategy and status code.",
	}, []string{"listener", "strategy", "code"})

	listeners := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mocktide_listeners",
		Help: "Number of live managed listeners.",
	})

	registry.MustRegister(requests, listeners)
	return &Metrics{
		registry:  registry,
		requests:  requests,
		listeners: listeners,
	}
}

func (m *Metrics) ObserveRequest(listener, strategy string, statusCode int) {
	m.requests.WithLabelValues(listener, strategy, strconv.Itoa(statusCode)).Inc()
}

func (m *Metrics) SetListenerCount(n int) {
	m.listeners.Set(float64(n))
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
