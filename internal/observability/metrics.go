// Package observability exposes Prometheus metrics for shift transitions,
// geofence decisions and HTTP traffic.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/fieldops/internal/geo"
)

var (
	geofenceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldops",
		Subsystem: "geofence",
		Name:      "evaluations_total",
		Help:      "Geofence evaluations grouped by operation and verdict.",
	}, []string{"operation", "verdict"})

	geofenceDistance = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fieldops",
		Subsystem: "geofence",
		Name:      "distance_miles",
		Help:      "Distance between worker and site at each geofence evaluation.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 50},
	}, []string{"operation"})

	transitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fieldops",
		Subsystem: "shift",
		Name:      "transitions_total",
		Help:      "Shift lifecycle operations grouped by outcome.",
	}, []string{"operation", "outcome"})

	pinLockoutCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldops",
		Subsystem: "pin",
		Name:      "lockouts_total",
		Help:      "Manager PIN attempts refused because the attempt limit was reached.",
	})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fieldops",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency grouped by method and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status"})
)

func init() {
	prometheus.MustRegister(geofenceCounter, geofenceDistance, transitionCounter, pinLockoutCounter, httpRequestDuration)
}

// ShiftObserver records lifecycle metrics. It satisfies shift.Observer.
type ShiftObserver struct{}

// ObserveGeofence counts the verdict and records the measured distance.
func (ShiftObserver) ObserveGeofence(operation string, verdict geo.Verdict) {
	label := "denied"
	if verdict.Allowed {
		label = "allowed"
	}
	geofenceCounter.WithLabelValues(operation, label).Inc()
	geofenceDistance.WithLabelValues(operation).Observe(verdict.DistanceMiles)
}

// ObserveTransition counts a completed or refused transition.
func (ShiftObserver) ObserveTransition(operation, outcome string) {
	transitionCounter.WithLabelValues(operation, outcome).Inc()
}

// RecordPinLockout counts a PIN attempt refused by the attempt guard.
func RecordPinLockout() {
	pinLockoutCounter.Inc()
}

// ObserveHTTPRequest records request latency.
func ObserveHTTPRequest(method string, status int, elapsed time.Duration) {
	httpRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
