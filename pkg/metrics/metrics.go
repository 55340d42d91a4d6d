package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure|locked|inactive).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lgu_portal_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// AuthorizationChecks counts gate evaluations by guard and outcome (allowed|denied).
	AuthorizationChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lgu_portal_authorization_checks_total",
			Help: "Total number of role and capability checks",
		},
		[]string{"guard", "result"},
	)

	// ActiveSessions is set from a count of the session store, never incremented in process.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lgu_portal_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// NotificationsCreated counts notifications by type and outcome (stored|failed).
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lgu_portal_notifications_total",
			Help: "Notifications written to the ledger",
		},
		[]string{"type", "result"},
	)

	// SideEffectFailures counts swallowed best-effort write failures by kind.
	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lgu_portal_side_effect_failures_total",
			Help: "Best-effort writes that failed and were swallowed",
		},
		[]string{"kind"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lgu_portal_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestsInFlight tracks requests currently being served.
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lgu_portal_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)
)
