// Package metrics defines the Prometheus collectors shared across the
// service. Collectors are registered at import time via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway metrics
var (
	GatewayActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_active_sessions",
			Help: "Currently connected websocket sessions",
		},
	)

	GatewayActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_active_subscriptions",
			Help: "Current topic subscriptions across all sessions",
		},
	)

	GatewaySessionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_sessions_rejected_total",
			Help: "Sessions rejected before registration by reason",
		},
		[]string{"reason"},
	)

	GatewayPublishedFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_published_frames_total",
			Help: "Frames fanned out to session queues by frame type",
		},
		[]string{"type"},
	)

	GatewayDroppedFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_dropped_frames_total",
			Help: "Frames dropped instead of delivered by reason",
		},
		[]string{"reason"},
	)

	GatewayOverflowClosesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_overflow_closes_total",
			Help: "Sessions closed because their delivery queue filled with non-discardable frames",
		},
	)

	GatewayProtocolErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_protocol_errors_total",
			Help: "Connections closed for protocol violations by kind",
		},
		[]string{"kind"},
	)

	GatewayCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_command_channel_depth",
			Help: "Current depth of the gateway actor command channel",
		},
	)
)

// Session writer metrics
var (
	SessionSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_send_duration_seconds",
			Help:    "Websocket write duration per frame in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	SessionPingFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_ping_failures_total",
			Help: "Websocket-level ping writes that failed",
		},
	)
)

// Feed bridge metrics
var (
	FeedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_messages_total",
			Help: "Ingest feed messages by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// Reconciliation metrics
var (
	StatusAnomaliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "status_anomalies_total",
			Help: "Regressive status transitions applied without a correction flag",
		},
	)
)

// Database metrics
var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration by query name",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"query"},
	)

	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Database errors by query name",
		},
		[]string{"query"},
	)
)

// Redis metrics
var (
	RedisCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_command_duration_seconds",
			Help:    "Redis command duration by command name",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"command"},
	)

	RedisErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Redis errors by command name",
		},
		[]string{"command"},
	)

	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState is 0 when closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// HTTP surface metrics
var (
	// HTTPErrorsTotal lives in the errors package next to its middleware.
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the tiered rate limiter by tier",
		},
		[]string{"tier"},
	)
)
