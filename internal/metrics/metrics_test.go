package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestClinicMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClinicMetrics(reg)

	m.ObserveBooking("online", "created")
	m.ObserveBooking("online", "created")
	m.ObserveBooking("walk_in", "conflict")
	m.ObserveTransition("appointment", "booked", "checked_in")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("online", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("walk_in", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("appointment", "booked", "checked_in")))
}

func TestClinicMetricsRefreshSetsLengthOnlyWhenApplied(t *testing.T) {
	m := NewClinicMetrics(prometheus.NewRegistry())

	m.ObserveRefresh(RefreshApplied, 4)
	m.ObserveRefresh(RefreshStale, 9)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueLength))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshesTotal.WithLabelValues(RefreshStale)))
}

func TestClinicMetricsHTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClinicMetrics(reg)
	m.ObserveHTTP("GET", "/queue", 200, 0.01)

	assert.Equal(t, 1, testutil.CollectAndCount(m.httpLatency))
}

func TestClinicMetricsNilSafe(t *testing.T) {
	var m *ClinicMetrics
	m.ObserveBooking("online", "created")
	m.ObserveTransition("queue_entry", "waiting", "called")
	m.ObserveRefresh(RefreshError, 0)
	m.ObserveHTTP("GET", "/", 500, 0.1)
}
