package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// User reconciliation
	ReconcileOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_reconcile_operations_total",
			Help: "User reconciliation operations by outcome",
		},
		[]string{"operation", "outcome"}, // outcome: created, existing, updated, deleted, failed
	)

	ReconcileSecondaryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_reconcile_secondary_failures_total",
			Help: "Best-effort reconciliation steps that failed without failing the operation",
		},
		[]string{"step"}, // store_auth_link, store_auth_delete, claims
	)

	SweepUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_sweep_users_total",
			Help: "Identity users visited by the bulk sweep",
		},
		[]string{"result"}, // created, existing, failed
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cinematch_sweep_duration_seconds",
			Help:    "Duration of a full identity sweep",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// Background work
	BackgroundTaskFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_background_task_failures_total",
			Help: "Background tasks that returned an error or timed out",
		},
		[]string{"task"},
	)

	BackgroundTasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinematch_background_tasks_in_flight",
			Help: "Background tasks currently running",
		},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_jobs_processed_total",
			Help: "Queue jobs handled by the worker",
		},
		[]string{"type", "outcome"}, // outcome: success, retried, dead_lettered, dropped
	)

	DeadLettersPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinematch_dead_letters_purged_total",
			Help: "Dead-lettered jobs dropped after the retention period",
		},
	)

	// Outbound clients
	ExternalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinematch_external_request_duration_seconds",
			Help:    "Duration of calls to external services",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_cache_lookups_total",
			Help: "Cache lookups by result",
		},
		[]string{"cache", "result"}, // hit, miss, error
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_http_requests_total",
			Help: "HTTP requests by route template and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinematch_http_request_duration_seconds",
			Help:    "HTTP request latency by route template",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_http_panics_total",
			Help: "Handler panics recovered by route template",
		},
		[]string{"route"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinematch_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	AuthResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_auth_results_total",
			Help: "Request authentication outcomes by method",
		},
		[]string{"method", "result"}, // method: firebase, session, dev
	)

	// Chat
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinematch_websocket_connections",
			Help: "Open chat websocket connections",
		},
	)
)
