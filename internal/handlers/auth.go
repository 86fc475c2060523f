package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/benvon/cinematch/internal/database"
	logpkg "github.com/benvon/cinematch/internal/logger"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/services/identity"
	"github.com/benvon/cinematch/internal/validation"
)

// IdentityCreator creates users in the identity provider.
type IdentityCreator interface {
	CreateUser(ctx context.Context, nu identity.NewUser) (*models.IdentityUser, error)
}

// UserCreator resolves an identity user to its store row, creating it if needed.
type UserCreator interface {
	ReconcileCreate(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error)
}

// SessionIssuer issues and verifies legacy session tokens.
type SessionIssuer interface {
	Issue(u *models.StoreUser) (*models.TokenPair, error)
	Verify(token string, kind models.TokenKind) (*models.JWTClaims, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	identity   IdentityCreator
	reconciler UserCreator
	users      database.UserRepositoryInterface
	profiles   database.ProfileRepositoryInterface
	sessions   SessionIssuer
	logger     *zap.Logger
}

// NewAuthHandler creates a new auth handler. identity or sessions may be nil
// to disable registration or legacy login respectively.
func NewAuthHandler(identity IdentityCreator, reconciler UserCreator, users database.UserRepositoryInterface, profiles database.ProfileRepositoryInterface, sessions SessionIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		identity:   identity,
		reconciler: reconciler,
		users:      users,
		profiles:   profiles,
		sessions:   sessions,
		logger:     logger,
	}
}

// RegisterPublicRoutes registers the unauthenticated auth routes on a router
// with the /api/v1/auth prefix.
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/refresh", h.Refresh).Methods("POST")
}

// RegisterRoutes registers the authenticated auth routes.
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
}

// RegisterRequest creates an identity provider account.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// LoginRequest is a legacy email/password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// MeResponse is the caller with their profiles.
type MeResponse struct {
	*models.Identity
	Profiles []*models.Profile `json:"profiles"`
}

// Register creates the identity user and reconciles it inline so the response
// carries the store user id.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.identity == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Registration is not configured")
		return
	}

	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	created, err := h.identity.CreateUser(ctx, identity.NewUser{
		Email:       strings.TrimSpace(req.Email),
		Password:    req.Password,
		DisplayName: validation.SanitizeText(req.DisplayName),
	})
	if errors.Is(err, identity.ErrEmailExists) {
		respondJSONError(w, http.StatusConflict, "Conflict", "Email already registered")
		return
	}
	if err != nil {
		h.logger.Error("register_identity_create_failed",
			zap.String("email", logpkg.MaskEmail(req.Email)),
			zap.Error(err),
		)
		respondBadRequest(w, "Failed to create user")
		return
	}

	user, err := h.reconciler.ReconcileCreate(ctx, created)
	if err != nil {
		h.logger.Error("register_reconcile_failed",
			zap.String("uid", logpkg.SanitizeUserID(created.UID)),
			zap.Error(err),
		)
		respondInternal(w, "User created but could not be synchronized")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// Login authenticates a legacy user by email and bcrypt password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Password login is not configured")
		return
	}

	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		respondInternal(w, "Failed to look up user")
		return
	}
	if user == nil || !checkPassword(user, req.Password) {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid email or password")
		return
	}

	pair, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("session_issue_failed", zap.Int64("user_id", user.ID), zap.Error(err))
		respondInternal(w, "Failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

// checkPassword reports whether password matches a legacy user's hash.
// Federated users keep a sentinel in the column and never match.
func checkPassword(u *models.StoreUser, password string) bool {
	if u.IsFederated() || u.PasswordHash == models.FederatedPasswordSentinel {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Refresh trades a refresh token for a new token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Password login is not configured")
		return
	}

	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims, err := h.sessions.Verify(req.RefreshToken, models.TokenKindRefresh)
	if err != nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid or expired refresh token")
		return
	}
	userID, err := identity.UserID(claims)
	if err != nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid or expired refresh token")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User no longer exists")
		return
	}
	if err != nil {
		respondInternal(w, "Failed to look up user")
		return
	}

	pair, err := h.sessions.Issue(user)
	if err != nil {
		respondInternal(w, "Failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	profiles, err := h.profiles.ListByUser(r.Context(), caller.UserID)
	if err != nil {
		respondInternal(w, "Failed to load profiles")
		return
	}
	if profiles == nil {
		profiles = []*models.Profile{}
	}

	respondJSON(w, http.StatusOK, MeResponse{Identity: caller, Profiles: profiles})
}
