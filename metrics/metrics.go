// Package metrics exposes Prometheus collectors for the HTTP surface, the
// identity operations and store connectivity.
package metrics

import (
	"errors"
	"net/http"

	"github.com/princinho/authgate/database"
	"github.com/princinho/authgate/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	IdentityOpsTotal *prometheus.CounterVec

	StoreUp prometheus.Gauge
}

// New creates the collectors and registers them, plus the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		IdentityOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_identity_operations_total",
				Help: "Identity operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		StoreUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "authgate_store_up",
			Help: "1 when the credential store answered its last ping",
		}),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.IdentityOpsTotal,
		m.StoreUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveIdentityOp matches services.Observer.
func (m *Metrics) ObserveIdentityOp(op string, err error) {
	m.IdentityOpsTotal.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveStoreState matches the database.Monitor state listener.
func (m *Metrics) ObserveStoreState(s database.State) {
	if s == database.StateConnected {
		m.StoreUp.Set(1)
		return
	}
	m.StoreUp.Set(0)
}

// Outcome is a low-cardinality label for an operation result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, services.ErrValidation):
		return "invalid_input"
	case errors.Is(err, services.ErrConflict):
		return "conflict"
	case errors.Is(err, services.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, services.ErrForbidden):
		return "forbidden"
	case errors.Is(err, services.ErrNotFound):
		return "not_found"
	case errors.Is(err, services.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
