package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opalrpc/opal"
)

// Metrics holds the Prometheus collectors recorded by Interceptor.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the operation-level collectors under the given
// namespace. An empty namespace defaults to "opal".
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "opal"
	}

	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "operations",
				Name:      "requests_total",
				Help:      "Total number of operation invocations",
			},
			[]string{"op", "kind", "outcome"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "operations",
				Name:      "duration_seconds",
				Help:      "Operation handler duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op", "kind"},
		),
	}
}

// MustRegister registers all collectors with reg, panicking on conflicts.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.RequestsTotal, m.RequestDuration)
}

// Interceptor returns an interceptor that counts invocations and observes
// handler durations per operation. The outcome label is "ok" or "error".
func (m *Metrics) Interceptor() opal.UnaryInterceptor {
	return func(ctx context.Context, op opal.OpInfo, payload any, next opal.Invoker) (any, error) {
		start := time.Now()
		res, err := next(ctx, payload)

		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.RequestsTotal.WithLabelValues(op.OpID, string(op.Kind), outcome).Inc()
		m.RequestDuration.WithLabelValues(op.OpID, string(op.Kind)).Observe(time.Since(start).Seconds())

		return res, err
	}
}

// MetricsHandler returns an http.Handler that exposes reg in the Prometheus
// text format, suitable for mounting at /metrics on a separate mux.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
