package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benvon/cinematch/internal/queue"
)

const healthCheckTimeout = 5 * time.Second

// Pinger is satisfied by *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// CheckFunc reports the health of one dependency.
type CheckFunc func(ctx context.Context) error

// HealthChecker handles health check requests
type HealthChecker struct {
	names  []string
	checks map[string]CheckFunc
}

// HealthOption adds a dependency check.
type HealthOption func(*HealthChecker)

// WithRedis checks the Redis connection.
func WithRedis(client *redis.Client) HealthOption {
	return WithCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// WithQueue checks the job queue connection.
func WithQueue(q queue.JobQueue) HealthOption {
	return WithCheck("rabbitmq", q.HealthCheck)
}

// WithCheck adds a named check.
func WithCheck(name string, fn CheckFunc) HealthOption {
	return func(h *HealthChecker) {
		if _, exists := h.checks[name]; !exists {
			h.names = append(h.names, name)
		}
		h.checks[name] = fn
	}
}

// NewHealthChecker creates a health checker that always checks the database.
func NewHealthChecker(db Pinger, opts ...HealthOption) *HealthChecker {
	h := &HealthChecker{checks: make(map[string]CheckFunc)}
	WithCheck("database", db.PingContext)(h)
	for _, opt := range opts {
		opt(h)
	}
	sort.Strings(h.names)
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles /healthz. Basic mode only reports that the process is
// serving; ?mode=extended runs every dependency check.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = h.runChecks(r.Context())
		for _, result := range response.Checks {
			if result != "healthy" {
				response.Status = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				break
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

type checkResult struct {
	name string
	err  error
}

// runChecks runs every check concurrently under one timeout.
func (h *HealthChecker) runChecks(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make(chan checkResult, len(h.names))
	for _, name := range h.names {
		go func(name string, fn CheckFunc) {
			results <- checkResult{name: name, err: fn(ctx)}
		}(name, h.checks[name])
	}

	checks := make(map[string]string, len(h.names))
	for range h.names {
		res := <-results
		if res.err != nil {
			checks[res.name] = "unhealthy: " + sanitizeErrorMessage(res.err.Error())
			continue
		}
		checks[res.name] = "healthy"
	}
	return checks
}
