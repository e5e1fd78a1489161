// Package metrics exposes Prometheus instrumentation for the tool server:
// request counts and latencies by tool, session pool occupancy, and slot wait
// times.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, so callers never need nil checks.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	SessionsLive    prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsReaped  prometheus.Counter
	SessionsFaulted prometheus.Counter

	PoolWaitDuration prometheus.Histogram
}

// New creates a metrics collector registered on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parcelscout_requests_total",
				Help: "Total number of tool-call requests",
			},
			[]string{"tool", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parcelscout_request_duration_seconds",
				Help:    "Tool-call handling duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		SessionsLive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parcelscout_sessions_live",
			Help: "Number of live browser sessions (idle or busy)",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "parcelscout_sessions_created_total",
			Help: "Total browser sessions created",
		}),
		SessionsReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "parcelscout_sessions_reaped_total",
			Help: "Total idle browser sessions closed by the reaper",
		}),
		SessionsFaulted: factory.NewCounter(prometheus.CounterOpts{
			Name: "parcelscout_sessions_faulted_total",
			Help: "Total browser sessions destroyed after an engine fault",
		}),
		PoolWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parcelscout_pool_wait_seconds",
			Help:    "Time spent waiting for a free session slot",
			Buckets: []float64{.001, .01, .1, .5, 1, 5, 15, 30},
		}),
	}
}

// ObserveRequest records the outcome and duration of one tool call.
func (m *Metrics) ObserveRequest(tool, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(tool, status).Inc()
	m.RequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// SessionCreated records a new live session.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsLive.Inc()
}

// SessionClosed records a session leaving the pool.
func (m *Metrics) SessionClosed(reaped, faulted bool) {
	if m == nil {
		return
	}
	m.SessionsLive.Dec()
	if reaped {
		m.SessionsReaped.Inc()
	}
	if faulted {
		m.SessionsFaulted.Inc()
	}
}

// ObservePoolWait records how long a caller waited for a slot.
func (m *Metrics) ObservePoolWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.PoolWaitDuration.Observe(duration.Seconds())
}
