package middleware

import (
	"net/http"

	"go.uber.org/zap"

	logpkg "github.com/benvon/cinematch/internal/logger"
	"github.com/benvon/cinematch/internal/request"
)

var auditEvents = map[int]string{
	http.StatusUnauthorized:    "auth_rejected",
	http.StatusForbidden:       "access_denied",
	http.StatusTooManyRequests: "rate_limit_violation",
}

// Audit writes a warn entry for every response that refused the caller.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			event, ok := auditEvents[rec.statusCode]
			if !ok {
				return
			}
			logger.Warn(event,
				zap.Int("status_code", rec.statusCode),
				zap.String("method", r.Method),
				zap.String("route", routeTemplate(r)),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				zap.String("request_id", request.RequestIDFromContext(r.Context())),
			)
		})
	}
}
