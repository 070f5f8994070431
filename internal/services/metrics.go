package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the service counters. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	Registry          *prometheus.Registry
	Logins            *prometheus.CounterVec
	OrdersCreated     prometheus.Counter
	OrderTransitions  *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
	SessionsSwept     prometheus.Counter
}

// NewMetrics registers the marketplace collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "orders_created_total",
			Help:      "Orders placed.",
		}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "order_transitions_total",
			Help:      "Order status transitions by target status.",
		}, []string{"to"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "notifications_total",
			Help:      "Notification rows written by event.",
		}, []string{"event"}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "sessions_expired_total",
			Help:      "Sessions deactivated by expiry cleanup.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Logins,
		m.OrdersCreated,
		m.OrderTransitions,
		m.NotificationsSent,
		m.SessionsSwept,
	)
	return m
}
