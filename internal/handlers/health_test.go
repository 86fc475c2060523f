package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

func TestHealthChecker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mode        string
		dbErr       error
		queueErr    error
		wantStatus  int
		wantHealthy string
		wantChecks  map[string]string
	}{
		{
			name:        "basic mode skips checks",
			dbErr:       errors.New("down"),
			wantStatus:  http.StatusOK,
			wantHealthy: "healthy",
		},
		{
			name:        "extended all healthy",
			mode:        "extended",
			wantStatus:  http.StatusOK,
			wantHealthy: "healthy",
			wantChecks:  map[string]string{"database": "healthy", "rabbitmq": "healthy"},
		},
		{
			name:        "extended queue down",
			mode:        "extended",
			queueErr:    errors.New("connection closed"),
			wantStatus:  http.StatusServiceUnavailable,
			wantHealthy: "unhealthy",
			wantChecks:  map[string]string{"database": "healthy", "rabbitmq": "unhealthy: connection closed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			queueErr := tt.queueErr
			h := NewHealthChecker(&mockPinger{err: tt.dbErr}, WithCheck("rabbitmq", func(ctx context.Context) error {
				return queueErr
			}))

			url := "/healthz"
			if tt.mode != "" {
				url += "?mode=" + tt.mode
			}
			w := httptest.NewRecorder()
			h.HealthCheck(w, httptest.NewRequest("GET", url, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var body HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Status != tt.wantHealthy {
				t.Errorf("Expected status %q, got %q", tt.wantHealthy, body.Status)
			}
			if len(body.Checks) != len(tt.wantChecks) {
				t.Fatalf("Expected %d checks, got %v", len(tt.wantChecks), body.Checks)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name]; !strings.EqualFold(got, want) {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}
