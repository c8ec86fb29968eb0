package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes of the queue board.
const (
	RefreshApplied = "applied"
	RefreshStale   = "stale"
	RefreshError   = "error"
)

// ClinicMetrics exposes counters for bookings, status changes and the queue board.
type ClinicMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	refreshesTotal   *prometheus.CounterVec
	queueLength      prometheus.Gauge
	httpLatency      *prometheus.HistogramVec
}

func NewClinicMetrics(reg prometheus.Registerer) *ClinicMetrics {
	m := &ClinicMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Booking attempts by channel and outcome",
		}, []string{"channel", "outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "status_transitions_total",
			Help:      "Applied status transitions",
		}, []string{"entity", "from", "to"}),
		refreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "queue",
			Name:      "board_refreshes_total",
			Help:      "Queue board refreshes by result",
		}, []string{"result"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "queue",
			Name:      "active_entries",
			Help:      "Active queue entries in the last applied board snapshot",
		}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.refreshesTotal, m.queueLength, m.httpLatency)
	return m
}

func (m *ClinicMetrics) ObserveBooking(channel, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *ClinicMetrics) ObserveTransition(entity, from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(entity, from, to).Inc()
}

// ObserveRefresh counts one board refresh; length is only recorded for applied ones.
func (m *ClinicMetrics) ObserveRefresh(result string, length int) {
	if m == nil {
		return
	}
	m.refreshesTotal.WithLabelValues(result).Inc()
	if result == RefreshApplied {
		m.queueLength.Set(float64(length))
	}
}

func (m *ClinicMetrics) ObserveHTTP(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}
