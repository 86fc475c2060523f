package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/request"
)

type mockTokenVerifier struct {
	VerifyFunc func(ctx context.Context, token string) (*models.JWTClaims, error)
}

func (m *mockTokenVerifier) Verify(ctx context.Context, token string) (*models.JWTClaims, error) {
	return m.VerifyFunc(ctx, token)
}

type mockSessionVerifier struct {
	VerifyFunc func(token string, kind models.TokenKind) (*models.JWTClaims, error)
}

func (m *mockSessionVerifier) Verify(token string, kind models.TokenKind) (*models.JWTClaims, error) {
	return m.VerifyFunc(token, kind)
}

type mockUserReconciler struct {
	ReconcileCreateFunc func(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error)
}

func (m *mockUserReconciler) ReconcileCreate(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error) {
	return m.ReconcileCreateFunc(ctx, u)
}

type mockUserLookup struct {
	GetByIDFunc    func(ctx context.Context, id int64) (*models.StoreUser, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.StoreUser, error)
}

func (m *mockUserLookup) GetByID(ctx context.Context, id int64) (*models.StoreUser, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockUserLookup) GetByEmail(ctx context.Context, email string) (*models.StoreUser, error) {
	return m.GetByEmailFunc(ctx, email)
}

func strPtr(s string) *string { return &s }

// sessionToken has the header of an HS256 token, which is all IsSessionToken inspects.
const sessionToken = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiI0MiJ9.c2ln"

func newTestAuthenticator(devMode bool) (*Authenticator, *[]*models.IdentityUser) {
	var reconciled []*models.IdentityUser
	cfg := AuthConfig{
		Tokens: &mockTokenVerifier{VerifyFunc: func(ctx context.Context, token string) (*models.JWTClaims, error) {
			if token != "firebase-token" {
				return nil, errors.New("signature invalid")
			}
			return &models.JWTClaims{Kind: models.TokenKindFirebase, Sub: "uid-1", Email: "jdoe@example.com"}, nil
		}},
		Sessions: &mockSessionVerifier{VerifyFunc: func(token string, kind models.TokenKind) (*models.JWTClaims, error) {
			if kind != models.TokenKindSession {
				return nil, fmt.Errorf("unexpected kind %s", kind)
			}
			return &models.JWTClaims{Kind: kind, Sub: "42"}, nil
		}},
		Reconciler: &mockUserReconciler{ReconcileCreateFunc: func(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error) {
			reconciled = append(reconciled, u)
			return &models.StoreUser{ID: 7, Email: u.Email, DisplayName: u.DerivedDisplayName(), FirebaseUID: strPtr(u.UID)}, nil
		}},
		Users: &mockUserLookup{
			GetByIDFunc: func(ctx context.Context, id int64) (*models.StoreUser, error) {
				if id != 42 {
					return nil, fmt.Errorf("user %d: %w", id, database.ErrNotFound)
				}
				return &models.StoreUser{ID: 42, Email: "legacy@example.com", DisplayName: "Legacy", AuthProvider: models.AuthProviderLegacy}, nil
			},
			GetByEmailFunc: func(ctx context.Context, email string) (*models.StoreUser, error) {
				if email != "dev@example.com" {
					return nil, database.ErrNotFound
				}
				return &models.StoreUser{ID: 3, Email: email, DisplayName: "Dev"}, nil
			},
		},
		DevMode: devMode,
		Logger:  zap.NewNop(),
	}
	return NewAuthenticator(cfg), &reconciled
}

func TestAuthenticator_Middleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		devMode      bool
		setup        func(r *http.Request)
		wantStatus   int
		wantUserID   int64
		wantProvider models.AuthProvider
		wantUID      string
	}{
		{
			name:       "missing header",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Token abc") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:         "firebase token reconciles caller",
			setup:        func(r *http.Request) { r.Header.Set("Authorization", "Bearer firebase-token") },
			wantStatus:   http.StatusOK,
			wantUserID:   7,
			wantProvider: models.AuthProviderFirebase,
			wantUID:      "uid-1",
		},
		{
			name:       "firebase token rejected",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:         "legacy session token",
			setup:        func(r *http.Request) { r.Header.Set("Authorization", "bearer "+sessionToken) },
			wantStatus:   http.StatusOK,
			wantUserID:   42,
			wantProvider: models.AuthProviderLegacy,
		},
		{
			name:       "dev header ignored outside dev mode",
			setup:      func(r *http.Request) { r.Header.Set(DevEmailHeader, "dev@example.com") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:         "dev header in dev mode",
			devMode:      true,
			setup:        func(r *http.Request) { r.Header.Set(DevEmailHeader, "dev@example.com") },
			wantStatus:   http.StatusOK,
			wantUserID:   3,
			wantProvider: models.AuthProviderLegacy,
		},
		{
			name:       "dev header unknown email",
			devMode:    true,
			setup:      func(r *http.Request) { r.Header.Set(DevEmailHeader, "ghost@example.com") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "websocket query token",
			setup: func(r *http.Request) {
				r.URL.RawQuery = "token=firebase-token"
				r.Header.Set("Connection", "Upgrade")
				r.Header.Set("Upgrade", "websocket")
			},
			wantStatus:   http.StatusOK,
			wantUserID:   7,
			wantProvider: models.AuthProviderFirebase,
			wantUID:      "uid-1",
		},
		{
			name:       "query token ignored without upgrade",
			setup:      func(r *http.Request) { r.URL.RawQuery = "token=firebase-token" },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			auth, _ := newTestAuthenticator(tt.devMode)
			var got *models.Identity
			handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = request.Identity(r)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if got != nil {
					t.Error("Expected handler not to run")
				}
				return
			}
			if got == nil {
				t.Fatal("Expected identity in context")
			}
			if got.UserID != tt.wantUserID {
				t.Errorf("Expected user id %d, got %d", tt.wantUserID, got.UserID)
			}
			if got.Provider != tt.wantProvider {
				t.Errorf("Expected provider %s, got %s", tt.wantProvider, got.Provider)
			}
			if got.FirebaseUID != tt.wantUID {
				t.Errorf("Expected firebase uid %q, got %q", tt.wantUID, got.FirebaseUID)
			}
		})
	}
}

func TestAuthenticator_ReconcileFailureIs500(t *testing.T) {
	t.Parallel()

	auth, _ := newTestAuthenticator(false)
	auth.cfg.Reconciler = &mockUserReconciler{ReconcileCreateFunc: func(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error) {
		return nil, errors.New("store unavailable")
	}}

	req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer firebase-token")
	w := httptest.NewRecorder()
	auth.Middleware(http.NotFoundHandler()).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestAuthenticator_FirebaseClaimsMapped(t *testing.T) {
	t.Parallel()

	auth, reconciled := newTestAuthenticator(false)
	req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer firebase-token")

	if _, _, err := auth.Authenticate(req); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if len(*reconciled) != 1 {
		t.Fatalf("Expected 1 reconcile call, got %d", len(*reconciled))
	}
	u := (*reconciled)[0]
	if u.UID != "uid-1" || u.Email != "jdoe@example.com" {
		t.Errorf("Unexpected identity user %+v", u)
	}
	if u.DerivedDisplayName() != "jdoe" {
		t.Errorf("Expected derived display name 'jdoe', got %q", u.DerivedDisplayName())
	}
}
