package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housing_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "housing_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	reservationOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housing_reservation_operations_total",
		Help: "Reservation operations by operation and result",
	}, []string{"op", "result"})

	keyOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housing_key_operations_total",
		Help: "Key inventory and custody operations by operation and result",
	}, []string{"op", "result"})

	sweepTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housing_sweep_transitions_total",
		Help: "Rows changed by the periodic sweep, by kind",
	}, []string{"kind"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "housing_sweep_duration_seconds",
		Help:    "Duration of sweep runs",
		Buckets: prometheus.DefBuckets,
	})

	notificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housing_notification_failures_total",
		Help: "Notifications that could not be handed to the sink",
	}, []string{"type"})

	catalogCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "housing_catalog_cache_lookups_total",
		Help: "Resource catalog cache lookups by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveReservationOp counts a reservation operation with its result label.
func ObserveReservationOp(op, result string) {
	reservationOperations.WithLabelValues(op, result).Inc()
}

// ObserveKeyOp counts a key operation with its result label.
func ObserveKeyOp(op, result string) {
	keyOperations.WithLabelValues(op, result).Inc()
}

// ObserveSweep records one sweep run and the rows it changed per kind.
func ObserveSweep(duration time.Duration, counts map[string]int) {
	sweepDuration.Observe(duration.Seconds())
	for kind, n := range counts {
		if n > 0 {
			sweepTransitions.WithLabelValues(kind).Add(float64(n))
		}
	}
}

// ObserveNotificationFailure counts an event that did not reach the sink.
func ObserveNotificationFailure(eventType string) {
	notificationFailures.WithLabelValues(eventType).Inc()
}

// ObserveCacheLookup counts a catalog cache hit, miss or error.
func ObserveCacheLookup(result string) {
	catalogCacheLookups.WithLabelValues(result).Inc()
}
