// Package metrics holds the storefront's Prometheus collectors. They register
// on the default registry and are served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
	}, []string{"method", "route"})

	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Orders placed at checkout",
	})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_transitions_total",
		Help: "Order status changes by target status",
	}, []string{"to"})

	TicketTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_ticket_transitions_total",
		Help: "Support ticket status changes by target status",
	}, []string{"to"})

	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_events_consumed_total",
		Help: "Lifecycle events handled by the notifier, by type and result",
	}, []string{"event_type", "result"})
)

// WatchSessions exports the number of signed-in sessions held in memory.
// Call it once per process.
func WatchSessions(count func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "storefront_sessions_active",
		Help: "Signed-in sessions held in memory",
	}, func() float64 { return float64(count()) })
}
