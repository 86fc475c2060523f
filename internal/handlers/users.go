package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	logpkg "github.com/benvon/cinematch/internal/logger"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/queue"
	"github.com/benvon/cinematch/internal/services/identity"
	"github.com/benvon/cinematch/internal/tasks"
	"github.com/benvon/cinematch/internal/validation"
)

const maxUIDLength = 128

// UserReconciler is the reconciler surface used by the user routes.
type UserReconciler interface {
	ReconcileUID(ctx context.Context, uid string) (*models.StoreUser, error)
	ReconcileCreate(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error)
	ReconcileUpdate(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error)
	ReconcileDelete(ctx context.Context, uid string) (bool, error)
}

// BackgroundRunner runs detached work.
type BackgroundRunner interface {
	Go(parent context.Context, name string, fn func(ctx context.Context) error, opts ...tasks.Option) *tasks.Task
}

// UsersHandler manages identity provider users and keeps the store in sync.
type UsersHandler struct {
	identity   identity.Admin
	reconciler UserReconciler
	runner     BackgroundRunner
	jobs       queue.Enqueuer
	logger     *zap.Logger
}

// NewUsersHandler creates a users handler. jobs may be nil, in which case
// full sweeps cannot be queued.
func NewUsersHandler(admin identity.Admin, reconciler UserReconciler, runner BackgroundRunner, jobs queue.Enqueuer, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{
		identity:   admin,
		reconciler: reconciler,
		runner:     runner,
		jobs:       jobs,
		logger:     logger,
	}
}

// RegisterRoutes registers user routes on a router with the /users prefix.
func (h *UsersHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.CreateUser).Methods("POST")
	r.HandleFunc("/list_all", h.ListUsers).Methods("GET")
	r.HandleFunc("/sync", h.SyncAll).Methods("POST")
	r.HandleFunc("/sync/{uid}", h.SyncUser).Methods("POST")
	r.HandleFunc("/{uid}", h.GetUser).Methods("GET")
	r.HandleFunc("/{uid}", h.UpdateUser).Methods("PUT")
	r.HandleFunc("/{uid}", h.DeleteUser).Methods("DELETE")
}

// CreateUserRequest creates an identity provider user.
type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=128"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

// UpdateUserRequest changes identity fields; omitted fields are unchanged.
type UpdateUserRequest struct {
	Email       *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=6,max=128"`
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Disabled    *bool   `json:"disabled,omitempty"`
}

// ListUsersResponse is one page of identity users.
type ListUsersResponse struct {
	Users         []*models.IdentityUser `json:"users"`
	NextPageToken string                 `json:"next_page_token,omitempty"`
}

// CreateUser creates the identity user and reconciles it in the background.
func (h *UsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.identity.CreateUser(r.Context(), identity.NewUser{
		Email:       strings.TrimSpace(req.Email),
		Password:    req.Password,
		DisplayName: validation.SanitizeText(req.DisplayName),
	})
	if errors.Is(err, identity.ErrEmailExists) {
		respondJSONError(w, http.StatusConflict, "Conflict", "Email already registered")
		return
	}
	if err != nil {
		respondBadRequest(w, "Failed to create user")
		return
	}

	h.runner.Go(r.Context(), "reconcile_create", func(ctx context.Context) error {
		_, err := h.reconciler.ReconcileCreate(ctx, created)
		return err
	}, h.logFailure(created.UID))

	respondJSON(w, http.StatusCreated, created)
}

// ListUsers pages through identity users.
func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	pageSize := 100
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 {
			pageSize = min(parsed, 1000)
		}
	}

	users, next, err := h.identity.ListUsers(r.Context(), r.URL.Query().Get("page_token"), pageSize)
	if err != nil {
		h.logger.Error("list_identity_users_failed", zap.Error(err))
		respondInternal(w, "Failed to list users")
		return
	}
	if users == nil {
		users = []*models.IdentityUser{}
	}
	respondJSON(w, http.StatusOK, ListUsersResponse{Users: users, NextPageToken: next})
}

// GetUser returns one identity user.
func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uidParam(w, r)
	if !ok {
		return
	}

	u, err := h.identity.GetUser(r.Context(), uid)
	if errors.Is(err, identity.ErrUserNotFound) {
		respondNotFound(w, "User not found")
		return
	}
	if err != nil {
		respondInternal(w, "Failed to get user")
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// UpdateUser updates the caller's own identity user and reconciles the
// store row in the background.
func (h *UsersHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.selfParam(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DisplayName != nil {
		name := validation.SanitizeText(*req.DisplayName)
		req.DisplayName = &name
	}

	updated, err := h.identity.UpdateUser(r.Context(), uid, identity.UserUpdate{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Disabled:    req.Disabled,
	})
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		respondNotFound(w, "User not found")
		return
	case errors.Is(err, identity.ErrEmailExists):
		respondJSONError(w, http.StatusConflict, "Conflict", "Email already registered")
		return
	case err != nil:
		respondBadRequest(w, "Failed to update user")
		return
	}

	h.runner.Go(r.Context(), "reconcile_update", func(ctx context.Context) error {
		_, err := h.reconciler.ReconcileUpdate(ctx, updated)
		return err
	}, h.logFailure(uid))

	respondJSON(w, http.StatusOK, updated)
}

// DeleteUser deletes the caller's own identity user and removes the store
// row in the background.
func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.selfParam(w, r)
	if !ok {
		return
	}

	err := h.identity.DeleteUser(r.Context(), uid)
	if errors.Is(err, identity.ErrUserNotFound) {
		respondNotFound(w, "User not found")
		return
	}
	if err != nil {
		respondBadRequest(w, "Failed to delete user")
		return
	}

	h.runner.Go(r.Context(), "reconcile_delete", func(ctx context.Context) error {
		_, err := h.reconciler.ReconcileDelete(ctx, uid)
		return err
	}, h.logFailure(uid))

	respondJSON(w, http.StatusOK, map[string]any{"uid": uid, "deleted": true})
}

// SyncAll queues a full sweep for the worker.
func (h *UsersHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Job queue is not configured")
		return
	}

	job := queue.NewSweepJob()
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("enqueue_sweep_failed", zap.Error(err))
		respondInternal(w, "Failed to queue synchronization")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": "queued"})
}

// SyncUser reconciles one identity user inline.
func (h *UsersHandler) SyncUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.uidParam(w, r)
	if !ok {
		return
	}

	user, err := h.reconciler.ReconcileUID(r.Context(), uid)
	if errors.Is(err, identity.ErrUserNotFound) {
		respondNotFound(w, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("sync_user_failed", zap.String("uid", logpkg.SanitizeUserID(uid)), zap.Error(err))
		respondInternal(w, "Failed to synchronize user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// logFailure records a failed background reconcile. The store row is left
// for the next sweep or the caller's next authenticated request.
func (h *UsersHandler) logFailure(uid string) tasks.Option {
	return tasks.WithFailureCallback(func(name string, taskErr error) {
		h.logger.Warn("reconcile_failed",
			zap.String("task", name),
			zap.String("uid", logpkg.SanitizeUserID(uid)),
			zap.Error(taskErr),
		)
	})
}

func (h *UsersHandler) uidParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := mux.Vars(r)["uid"]
	if uid == "" || len(uid) > maxUIDLength {
		respondBadRequest(w, "Invalid user id")
		return "", false
	}
	return uid, true
}

// selfParam returns the uid only when it is the caller's own.
func (h *UsersHandler) selfParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := callerIdentity(w, r)
	if !ok {
		return "", false
	}
	uid, ok := h.uidParam(w, r)
	if !ok {
		return "", false
	}
	if caller.FirebaseUID != uid {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Users may only modify their own account")
		return "", false
	}
	return uid, true
}
