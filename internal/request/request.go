package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/segmentio/ksuid"

	"github.com/benvon/cinematch/internal/models"
)

type contextKey string

const (
	identityContextKey  contextKey = "identity"
	requestIDContextKey contextKey = "request_id"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// IdentityContextKey returns the context key used for the caller identity. Exposed for tests that inject non-identity values.
func IdentityContextKey() contextKey { return identityContextKey }

// ClientIP is the caller address used for rate limiting and audit logs. The
// API runs behind a proxy, so the left-most X-Forwarded-For hop wins, then
// X-Real-IP, then the peer host without its port.
func ClientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithIdentity returns a context with the caller identity attached.
func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the caller identity, or nil if missing or wrong type.
func IdentityFromContext(ctx context.Context) *models.Identity {
	id, _ := ctx.Value(identityContextKey).(*models.Identity)
	return id
}

// Identity returns the caller identity from the request context.
func Identity(r *http.Request) *models.Identity {
	return IdentityFromContext(r.Context())
}

// NewRequestID returns a sortable unique request id.
func NewRequestID() string {
	return ksuid.New().String()
}

// WithRequestID attaches a request id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext returns the request id, or "" when none is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
