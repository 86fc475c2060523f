package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/database"
	logpkg "github.com/benvon/cinematch/internal/logger"
	"github.com/benvon/cinematch/internal/metrics"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/request"
	"github.com/benvon/cinematch/internal/services/identity"
)

// DevEmailHeader selects the caller by email when dev mode is on.
const DevEmailHeader = "X-Dev-Email"

// TokenVerifier verifies identity provider ID tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

// SessionVerifier verifies locally issued session tokens.
type SessionVerifier interface {
	Verify(token string, kind models.TokenKind) (*models.JWTClaims, error)
}

// UserReconciler resolves an identity user to its store row, creating it on first sight.
type UserReconciler interface {
	ReconcileCreate(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error)
}

// UserLookup loads store users for session and dev authentication.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.StoreUser, error)
	GetByEmail(ctx context.Context, email string) (*models.StoreUser, error)
}

// AuthConfig wires the authenticator. Tokens and Sessions may each be nil to
// disable that path.
type AuthConfig struct {
	Tokens     TokenVerifier
	Sessions   SessionVerifier
	Reconciler UserReconciler
	Users      UserLookup
	DevMode    bool
	Logger     *zap.Logger
}

// Authenticator turns a bearer token into a models.Identity on the request context.
type Authenticator struct {
	cfg AuthConfig
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Authenticator{cfg: cfg}
}

var (
	errMissingToken = errors.New("missing bearer token")
	errBadHeader    = errors.New("invalid Authorization header format")
)

// Middleware rejects requests without a valid caller.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, status, err := a.Authenticate(r)
		if err != nil {
			a.cfg.Logger.Debug("authentication_failed",
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("request_id", request.RequestIDFromContext(r.Context())),
				zap.String("error", logpkg.SanitizeError(err)),
			)
			message := "Invalid or expired token"
			if status == http.StatusInternalServerError {
				message = "Failed to resolve user"
			} else if errors.Is(err, errMissingToken) || errors.Is(err, errBadHeader) {
				message = err.Error()
			}
			respondError(w, status, message)
			return
		}
		next.ServeHTTP(w, r.WithContext(request.WithIdentity(r.Context(), id)))
	})
}

// Authenticate resolves the caller. The returned status is meaningful only
// when err is non-nil.
func (a *Authenticator) Authenticate(r *http.Request) (*models.Identity, int, error) {
	ctx := r.Context()

	token, err := bearerToken(r)
	if errors.Is(err, errMissingToken) && a.cfg.DevMode {
		if email := strings.TrimSpace(r.Header.Get(DevEmailHeader)); email != "" {
			return a.devIdentity(ctx, email)
		}
	}
	if err != nil {
		return nil, http.StatusUnauthorized, err
	}

	if a.cfg.Sessions != nil && identity.IsSessionToken(token) {
		return a.sessionIdentity(ctx, token)
	}
	if a.cfg.Tokens == nil {
		metrics.AuthResults.WithLabelValues("firebase", "disabled").Inc()
		return nil, http.StatusUnauthorized, errors.New("identity provider tokens are not accepted")
	}
	return a.firebaseIdentity(ctx, token)
}

func (a *Authenticator) firebaseIdentity(ctx context.Context, token string) (*models.Identity, int, error) {
	claims, err := a.cfg.Tokens.Verify(ctx, token)
	if err != nil {
		metrics.AuthResults.WithLabelValues("firebase", "rejected").Inc()
		return nil, http.StatusUnauthorized, err
	}

	iu := &models.IdentityUser{
		UID:         claims.Sub,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}
	if claims.Role != "" {
		iu.CustomClaims = map[string]any{"role": claims.Role}
	}
	user, err := a.cfg.Reconciler.ReconcileCreate(ctx, iu)
	if err != nil {
		metrics.AuthResults.WithLabelValues("firebase", "error").Inc()
		a.cfg.Logger.Error("auth_reconcile_failed",
			zap.String("uid", logpkg.SanitizeUserID(claims.Sub)),
			zap.Error(err),
		)
		return nil, http.StatusInternalServerError, err
	}
	metrics.AuthResults.WithLabelValues("firebase", "ok").Inc()
	return models.NewIdentity(user), 0, nil
}

func (a *Authenticator) sessionIdentity(ctx context.Context, token string) (*models.Identity, int, error) {
	claims, err := a.cfg.Sessions.Verify(token, models.TokenKindSession)
	if err != nil {
		metrics.AuthResults.WithLabelValues("session", "rejected").Inc()
		return nil, http.StatusUnauthorized, err
	}
	userID, err := identity.UserID(claims)
	if err != nil {
		metrics.AuthResults.WithLabelValues("session", "rejected").Inc()
		return nil, http.StatusUnauthorized, err
	}
	user, err := a.cfg.Users.GetByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		metrics.AuthResults.WithLabelValues("session", "rejected").Inc()
		return nil, http.StatusUnauthorized, err
	}
	if err != nil {
		metrics.AuthResults.WithLabelValues("session", "error").Inc()
		return nil, http.StatusInternalServerError, err
	}
	metrics.AuthResults.WithLabelValues("session", "ok").Inc()
	return models.NewIdentity(user), 0, nil
}

func (a *Authenticator) devIdentity(ctx context.Context, email string) (*models.Identity, int, error) {
	user, err := a.cfg.Users.GetByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		metrics.AuthResults.WithLabelValues("dev", "rejected").Inc()
		return nil, http.StatusUnauthorized, err
	}
	if err != nil {
		metrics.AuthResults.WithLabelValues("dev", "error").Inc()
		return nil, http.StatusInternalServerError, err
	}
	metrics.AuthResults.WithLabelValues("dev", "ok").Inc()
	a.cfg.Logger.Debug("dev_auth_used", zap.String("email", logpkg.MaskEmail(email)))
	return models.NewIdentity(user), 0, nil
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// websocket upgrades, so those may pass the token as ?token= instead.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(r) {
			if t := r.URL.Query().Get("token"); t != "" {
				return t, nil
			}
		}
		return "", errMissingToken
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errBadHeader
	}
	return strings.TrimSpace(token), nil
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   message,
	}
	_ = json.NewEncoder(w).Encode(response)
}
