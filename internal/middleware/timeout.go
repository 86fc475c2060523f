package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultRequestTimeout bounds handler time for ordinary API requests.
const DefaultRequestTimeout = 30 * time.Second

var timeoutBody = func() string {
	b, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   "Request Timeout",
		"message": "The request took too long to process",
	})
	return string(b)
}()

// Timeout cancels the handler's context after timeout and answers 503 with
// the JSON error envelope. Websocket upgrades are long-lived and bypass it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		limited := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			// Applies to the timeout reply; handlers that answer in time
			// set their own Content-Type.
			w.Header().Set("Content-Type", "application/json")
			limited.ServeHTTP(w, r)
		})
	}
}
