package request

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/segmentio/ksuid"

	"github.com/benvon/cinematch/internal/models"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{name: "forwarded chain uses first hop", xff: " 203.0.113.9 , 10.0.0.2", remote: "10.0.0.2:443", want: "203.0.113.9"},
		{name: "forwarded beats real ip", xff: "203.0.113.9", realIP: "198.51.100.1", want: "203.0.113.9"},
		{name: "real ip", realIP: " 198.51.100.1 ", remote: "10.0.0.2:443", want: "198.51.100.1"},
		{name: "blank forwarded ignored", xff: " ", realIP: "198.51.100.1", want: "198.51.100.1"},
		{name: "peer port stripped", remote: "192.0.2.4:51234", want: "192.0.2.4"},
		{name: "ipv6 peer", remote: "[2001:db8::1]:8080", want: "2001:db8::1"},
		{name: "peer without port", remote: "192.0.2.4", want: "192.0.2.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/api/v1/movies", nil)
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.remote != "" {
				r.RemoteAddr = tt.remote
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	caller := &models.Identity{UserID: 7, Email: "ana@cinematch.app", Provider: models.AuthProviderFirebase}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	if Identity(r) != nil {
		t.Fatal("fresh request carries an identity")
	}

	r = r.WithContext(WithIdentity(r.Context(), caller))
	if got := Identity(r); got != caller {
		t.Errorf("Identity() = %+v, want %+v", got, caller)
	}

	wrong := context.WithValue(context.Background(), IdentityContextKey(), "uid-7")
	if got := IdentityFromContext(wrong); got != nil {
		t.Errorf("IdentityFromContext(string value) = %+v, want nil", got)
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	a, b := NewRequestID(), NewRequestID()
	if a == b {
		t.Errorf("NewRequestID() repeated %q", a)
	}
	if _, err := ksuid.Parse(a); err != nil {
		t.Fatalf("NewRequestID() = %q: %v", a, err)
	}

	if got := RequestIDFromContext(WithRequestID(context.Background(), a)); got != a {
		t.Errorf("RequestIDFromContext() = %q, want %q", got, a)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext(empty) = %q", got)
	}
}
