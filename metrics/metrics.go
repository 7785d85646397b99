// Package metrics exposes fan-out statistics in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rendini/mashup/api/fanout"
)

// Metrics holds the gateway's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	BackendCalls    *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
	BackendItems    *prometheus.CounterVec
	Requests        *prometheus.CounterVec
}

var _ fanout.Observer = (*Metrics)(nil)

// New creates the collectors and registers them together with the Go
// runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		BackendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rendini",
				Subsystem: "backend",
				Name:      "calls_total",
				Help:      "Backend calls made by fan-outs, by outcome",
			},
			[]string{"op", "backend", "status"},
		),

		BackendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rendini",
				Subsystem: "backend",
				Name:      "call_duration_seconds",
				Help:      "Backend call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op", "backend"},
		),

		BackendItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rendini",
				Subsystem: "backend",
				Name:      "items_total",
				Help:      "Items contributed by backends after normalization",
			},
			[]string{"op", "backend"},
		),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rendini",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Inbound HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	m.registry.MustRegister(
		m.BackendCalls,
		m.BackendDuration,
		m.BackendItems,
		m.Requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveBranch implements fanout.Observer
func (m *Metrics) ObserveBranch(op, backend string, d time.Duration, items int, err error) {
	status := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	m.BackendCalls.WithLabelValues(op, backend, status).Inc()
	m.BackendDuration.WithLabelValues(op, backend).Observe(d.Seconds())
	m.BackendItems.WithLabelValues(op, backend).Add(float64(items))
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
