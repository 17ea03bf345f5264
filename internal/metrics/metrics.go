package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	bookings     *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	reschedules  *prometheus.CounterVec
	sweeps       *prometheus.CounterVec
	availability prometheus.Histogram
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Status transition attempts by target status and outcome.",
		}, []string{"to", "outcome"}),
		reschedules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reschedules_total",
			Help:      "Reschedule attempts by outcome.",
		}, []string{"outcome"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_requests_swept_total",
			Help:      "Pending requests cancelled by the sweeper.",
		}, []string{"outcome"}),
		availability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_duration_seconds",
			Help:      "Time spent computing open slots for one provider and date.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.bookings,
		m.transitions,
		m.reschedules,
		m.sweeps,
		m.availability,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(to, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to, outcome).Inc()
}

func (m *Metrics) ObserveReschedule(outcome string) {
	if m == nil {
		return
	}
	m.reschedules.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSweep(outcome string) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAvailability(d time.Duration) {
	if m == nil {
		return
	}
	m.availability.Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
