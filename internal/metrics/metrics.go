// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sipstreak",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sipstreak",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	friendOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sipstreak",
			Subsystem: "friends",
			Name:      "operations_total",
			Help:      "Friend engine operations by outcome.",
		},
		[]string{"op", "outcome"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sipstreak",
			Subsystem: "notify",
			Name:      "events_total",
			Help:      "Change notifications by delivery result.",
		},
		[]string{"result"},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sipstreak",
			Subsystem: "notify",
			Name:      "websocket_clients",
			Help:      "Currently connected notification websockets.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		friendOps,
		notifications,
		wsClients,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest captures one served request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordFriendOp counts an engine operation. Outcome is one of ok, rejected,
// conflict, unauthorized, error.
func RecordFriendOp(op, outcome string) {
	friendOps.WithLabelValues(op, outcome).Inc()
}

// RecordNotification counts a relay delivery attempt.
func RecordNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

// WebsocketConnected adjusts the connected client gauge by delta.
func WebsocketConnected(delta int) {
	wsClients.Add(float64(delta))
}
