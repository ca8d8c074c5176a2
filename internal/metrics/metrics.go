// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the table API.
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems live in subpackages (promexp, datadog); the rest
//     of the code depends only on this package.
package metrics

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Metric names shared by every backend.
const (
	OperationTotal    = "natto_operation_total"
	OperationDuration = "natto_operation_duration_seconds"
	RowsTotal         = "natto_rows_total"
	HTTPRequestsTotal = "natto_http_requests_total"
	HTTPDuration      = "natto_http_request_duration_seconds"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

type holder struct{ Backend }

var backend atomic.Value

func init() { backend.Store(holder{nopBackend{}}) }

func current() Backend { return backend.Load().(holder).Backend }

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend.Store(holder{b})
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordOperation counts one CRUD operation and observes its latency.
func RecordOperation(op string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"op": op, "status": status}

	b := current()
	b.IncCounter(OperationTotal, 1, lbls)
	b.ObserveHistogram(OperationDuration, d.Seconds(), lbls)
}

// RecordRows counts rows returned or affected by an operation.
func RecordRows(op string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(n), Labels{"op": op})
}

// RecordRequest counts one HTTP request by route and status code.
func RecordRequest(route string, code int, d time.Duration) {
	b := current()
	b.IncCounter(HTTPRequestsTotal, 1, Labels{"route": route, "code": strconv.Itoa(code)})
	b.ObserveHistogram(HTTPDuration, d.Seconds(), Labels{"route": route})
}
