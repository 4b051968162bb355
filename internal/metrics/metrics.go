// Package metrics holds the console's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dicer"

// Login outcomes.
const (
	LoginSuccess     = "success"
	LoginInvalid     = "invalid"
	LoginValidation  = "validation"
	LoginUnavailable = "unavailable"
	LoginError       = "error"
	LoginThrottled   = "throttled"
	LoginInFlight    = "in_flight"
)

var (
	// LoginAttempts counts login submissions by outcome.
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login submissions by outcome",
		},
		[]string{"outcome"},
	)

	// ForcedLogouts counts sessions ended by a 401 from the backend.
	ForcedLogouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_logouts_total",
			Help:      "Sessions cleared because the backend answered 401",
		},
	)

	// SessionTransitions counts session state changes by target state.
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state changes by new state",
		},
		[]string{"state"},
	)

	// ServiceAvailability is 1 when the last status check allowed logins.
	ServiceAvailability = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_available",
			Help:      "Result of the last service status check (1 available, 0 unavailable)",
		},
	)

	// BackendRequestDuration tracks backend API latency.
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend API request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks console page latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Console HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status_code"},
	)
)

// ObserveBackend records one backend call. status 0 means transport error.
func ObserveBackend(method, route string, status int, d time.Duration) {
	BackendRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveHTTP records one console request.
func ObserveHTTP(method string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}

// SetAvailable records the outcome of a status check.
func SetAvailable(ok bool) {
	if ok {
		ServiceAvailability.Set(1)
		return
	}
	ServiceAvailability.Set(0)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
