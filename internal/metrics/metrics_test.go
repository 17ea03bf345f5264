package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBooking("ok")
		m.ObserveTransition("scheduled", "ok")
		m.ObserveReschedule("ok")
		m.ObserveSweep("ok")
		m.ObserveAvailability(time.Millisecond)
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry(), "clinic")

	m.ObserveBooking("ok")
	m.ObserveBooking("ok")
	m.ObserveBooking("slot_unavailable")
	m.ObserveTransition("cancelled", "invalid_transition")
	m.ObserveHTTP("POST", "/appointments", 409, time.Millisecond)
	m.ObserveHTTP("POST", "/appointments", 422, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookings.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("slot_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("cancelled", "invalid_transition")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/appointments", "4xx")))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(201))
	assert.Equal(t, "3xx", statusClass(304))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(503))
}
