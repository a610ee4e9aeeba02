package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prokat",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prokat",
			Name:      "booking_conflicts_total",
			Help:      "Booking requests rejected by the overlap check.",
		},
	)

	auditDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prokat",
			Name:      "audit_events_dropped_total",
			Help:      "Audit events dropped because the queue was full.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingConflicts, auditDropped)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncConflict counts a rejected overlapping booking.
func IncConflict() {
	bookingConflicts.Inc()
}

// IncAuditDropped counts an audit event lost to queue overflow.
func IncAuditDropped() {
	auditDropped.Inc()
}
