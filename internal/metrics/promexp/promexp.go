// Package promexp implements a Prometheus scrape backend for the metrics
// package.
//
// It adapts metrics.Backend to client_golang CounterVec and HistogramVec
// collectors held in a private registry, and exposes that registry over
// HTTP with promhttp for the /metrics route.
package promexp

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"natto/internal/metrics"
)

// Backend is a Prometheus metrics backend.
type Backend struct {
	reg *prometheus.Registry

	opCounter   *prometheus.CounterVec   // natto_operation_total
	opDuration  *prometheus.HistogramVec // natto_operation_duration_seconds
	rowCounter  *prometheus.CounterVec   // natto_rows_total
	reqCounter  *prometheus.CounterVec   // natto_http_requests_total
	reqDuration *prometheus.HistogramVec // natto_http_request_duration_seconds
}

// NewBackend constructs a Backend with its own registry. When withRuntime
// is set, Go runtime and process collectors are registered too.
func NewBackend(withRuntime bool) (*Backend, error) {
	reg := prometheus.NewRegistry()

	b := &Backend{
		reg: reg,
		opCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.OperationTotal,
				Help: "Total number of table operations, partitioned by op and status.",
			},
			[]string{"op", "status"},
		),
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metrics.OperationDuration,
				Help:    "Duration of table operations in seconds, partitioned by op and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "status"},
		),
		rowCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsTotal,
				Help: "Rows returned or affected by table operations.",
			},
			[]string{"op"},
		),
		reqCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.HTTPRequestsTotal,
				Help: "HTTP requests, partitioned by route and status code.",
			},
			[]string{"route", "code"},
		),
		reqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metrics.HTTPDuration,
				Help:    "HTTP request latency in seconds, partitioned by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	cs := []prometheus.Collector{b.opCounter, b.opDuration, b.rowCounter, b.reqCounter, b.reqDuration}
	if withRuntime {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("promexp: register collector: %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.OperationTotal:
		b.opCounter.WithLabelValues(labels["op"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		b.rowCounter.WithLabelValues(labels["op"]).Add(delta)
	case metrics.HTTPRequestsTotal:
		b.reqCounter.WithLabelValues(labels["route"], labels["code"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.OperationDuration:
		b.opDuration.WithLabelValues(labels["op"], labels["status"]).Observe(value)
	case metrics.HTTPDuration:
		b.reqDuration.WithLabelValues(labels["route"]).Observe(value)
	}
}

// Flush is a no-op: Prometheus scrapes the registry.
func (b *Backend) Flush() error { return nil }

// Handler serves the registry in the Prometheus exposition format.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{})
}
