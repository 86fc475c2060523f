package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/benvon/cinematch/internal/metrics"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
	}{
		{name: "GET request", method: "GET", path: "/test", handlerStatus: http.StatusOK},
		{name: "POST request", method: "POST", path: "/api/v1/movies/import/603", handlerStatus: http.StatusCreated},
		{name: "404 request", method: "GET", path: "/notfound", handlerStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			Logging(zap.New(core))(handler).ServeHTTP(w, req)

			if w.Code != tt.handlerStatus {
				t.Errorf("Expected status %d, got %d", tt.handlerStatus, w.Code)
			}
			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 http_request log entry, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if got := fields["status_code"]; got != int64(tt.handlerStatus) {
				t.Errorf("Expected logged status_code %d, got %v", tt.handlerStatus, got)
			}
			if got := fields["route"]; got != "unmatched" {
				t.Errorf("Expected route 'unmatched' outside a router, got %v", got)
			}
		})
	}
}

func TestLoggingRouteTemplateMetrics(t *testing.T) {
	t.Parallel()

	r := mux.NewRouter()
	r.Use(Logging(zap.NewNop()))
	r.HandleFunc("/api/v1/movies/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	counter := metrics.HTTPRequests.WithLabelValues("GET", "/api/v1/movies/{id}", "200")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2", "3"} {
		req := httptest.NewRequest("GET", "/api/v1/movies/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("Expected 3 requests counted under the route template, got %v", got)
	}
}

func TestStatusRecorder(t *testing.T) {
	t.Parallel()

	t.Run("first status wins", func(t *testing.T) {
		t.Parallel()
		rec := newStatusRecorder(httptest.NewRecorder())
		rec.WriteHeader(http.StatusCreated)
		rec.WriteHeader(http.StatusInternalServerError)
		if rec.statusCode != http.StatusCreated {
			t.Errorf("Expected status 201, got %d", rec.statusCode)
		}
	})

	t.Run("implicit 200 on write", func(t *testing.T) {
		t.Parallel()
		rec := newStatusRecorder(httptest.NewRecorder())
		_, _ = rec.Write([]byte("ok"))
		rec.WriteHeader(http.StatusTeapot)
		if rec.statusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.statusCode)
		}
	})

	t.Run("hijack unsupported", func(t *testing.T) {
		t.Parallel()
		rec := newStatusRecorder(httptest.NewRecorder())
		if _, _, err := rec.Hijack(); err == nil {
			t.Error("Expected error hijacking a recorder")
		}
	})
}
