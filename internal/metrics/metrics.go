// Package metrics provides Prometheus metrics for the request chain.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is where the metrics endpoint is mounted. It sits inside the reserved
// asset namespace so it never shadows a file in the served directory; only
// this exact path is taken, the rest of the namespace stays with the bundle.
const Path = "/__server_assets__/metrics"

// Metrics holds the collectors for one server instance. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesServed     prometheus.Counter
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devserve_requests_total",
				Help: "Total number of requests by the stage that answered them and status code",
			},
			[]string{"stage", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devserve_request_duration_seconds",
				Help:    "Time spent resolving a request through the stage chain",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		bytesServed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "devserve_response_bytes_total",
				Help: "Total response body bytes produced by the stage chain",
			},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.bytesServed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveStage records a request answered by stage.
func (m *Metrics) ObserveStage(stage string, status int, duration time.Duration, bodyBytes int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(stage, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(stage).Observe(duration.Seconds())
	m.bytesServed.Add(float64(bodyBytes))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
