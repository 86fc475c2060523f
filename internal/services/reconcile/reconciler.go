// Package reconcile keeps one store user, with a default profile, for every
// identity provider user.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/logger"
	"github.com/benvon/cinematch/internal/metrics"
	"github.com/benvon/cinematch/internal/models"
)

// RoleAuthenticated is the custom claim value the store's row-level security keys on.
const RoleAuthenticated = "authenticated"

const (
	defaultPageSize     = 1000
	randomPasswordExtra = 8
	tracerName          = "github.com/benvon/cinematch/internal/services/reconcile"
	outcomeCreated      = "created"
	outcomeExisting     = "existing"
	outcomeUpdated      = "updated"
	outcomeDeleted      = "deleted"
	outcomeFailed       = "failed"
	stepStoreAuthLink   = "store_auth_link"
	stepStoreAuthDelete = "store_auth_delete"
	stepClaims          = "claims"
)

var (
	// ErrInvalidIdentity is returned for a nil identity user or one without a uid.
	ErrInvalidIdentity = errors.New("identity user requires a uid")
	// ErrUserVanished is returned when an update matched no row after the
	// lookup found one.
	ErrUserVanished = errors.New("user disappeared between lookup and update")
)

// Reconciler syncs identity provider users into the user store.
type Reconciler struct {
	store     UserStore
	identity  IdentityProvider
	authAdmin AuthAdmin
	logger    *zap.Logger
	tracer    trace.Tracer
	locks     *keyedMutex
	pageSize  int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPageSize sets the identity listing page size used by Sweep.
func WithPageSize(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// New creates a Reconciler. authAdmin may be nil, in which case store-auth
// correlation is skipped.
func New(store UserStore, identity IdentityProvider, authAdmin AuthAdmin, log *zap.Logger, opts ...Option) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reconciler{
		store:     store,
		identity:  identity,
		authAdmin: authAdmin,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		locks:     newKeyedMutex(),
		pageSize:  defaultPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReconcileCreate returns the store user for u, creating it and its default
// profile on first sight.
func (r *Reconciler) ReconcileCreate(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error) {
	if u == nil || u.UID == "" {
		return nil, ErrInvalidIdentity
	}
	ctx, span := r.tracer.Start(ctx, "reconcile.create", trace.WithAttributes(attribute.String("identity.uid", u.UID)))
	defer span.End()

	unlock := r.locks.Lock(u.UID)
	defer unlock()

	user, _, err := r.ensureLocked(ctx, u, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile create failed")
	}
	return user, err
}

// ReconcileUID fetches the identity user and reconciles it.
func (r *Reconciler) ReconcileUID(ctx context.Context, uid string) (*models.StoreUser, error) {
	if uid == "" {
		return nil, ErrInvalidIdentity
	}
	u, err := r.identity.GetUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get identity user: %w", err)
	}
	return r.ReconcileCreate(ctx, u)
}

// ReconcileUpdate copies email and display name onto the existing store user,
// or creates it when missing.
func (r *Reconciler) ReconcileUpdate(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error) {
	if u == nil || u.UID == "" {
		return nil, ErrInvalidIdentity
	}
	ctx, span := r.tracer.Start(ctx, "reconcile.update", trace.WithAttributes(attribute.String("identity.uid", u.UID)))
	defer span.End()

	unlock := r.locks.Lock(u.UID)
	defer unlock()

	_, err := r.store.GetByFirebaseUID(ctx, u.UID)
	if errors.Is(err, database.ErrNotFound) {
		user, _, err := r.ensureLocked(ctx, u, true)
		return user, err
	}
	if err != nil {
		metrics.ReconcileOperations.WithLabelValues("update", outcomeFailed).Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user, err := r.store.UpdateIdentity(ctx, u.UID, u.Email, u.DisplayName)
	if errors.Is(err, database.ErrNotFound) {
		metrics.ReconcileOperations.WithLabelValues("update", outcomeFailed).Inc()
		return nil, fmt.Errorf("uid %s: %w", u.UID, ErrUserVanished)
	}
	if err != nil {
		metrics.ReconcileOperations.WithLabelValues("update", outcomeFailed).Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	metrics.ReconcileOperations.WithLabelValues("update", outcomeUpdated).Inc()
	r.logger.Info("user_reconciled",
		zap.String("operation", "update"),
		zap.String("uid", logger.SanitizeUserID(u.UID)),
		zap.Int64("user_id", user.ID),
	)
	return user, nil
}

// ReconcileDelete removes the store user linked to uid and, best-effort, the
// matching store-auth user. It returns true once the primary delete has been
// issued, even if no row matched.
func (r *Reconciler) ReconcileDelete(ctx context.Context, uid string) (bool, error) {
	if uid == "" {
		return false, ErrInvalidIdentity
	}
	ctx, span := r.tracer.Start(ctx, "reconcile.delete", trace.WithAttributes(attribute.String("identity.uid", uid)))
	defer span.End()

	unlock := r.locks.Lock(uid)
	defer unlock()

	n, err := r.store.DeleteByFirebaseUID(ctx, uid)
	if err != nil {
		metrics.ReconcileOperations.WithLabelValues("delete", outcomeFailed).Inc()
		span.RecordError(err)
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	metrics.ReconcileOperations.WithLabelValues("delete", outcomeDeleted).Inc()
	r.logger.Info("user_deleted",
		zap.String("uid", logger.SanitizeUserID(uid)),
		zap.Int64("rows", n),
	)

	r.unlinkStoreAuth(ctx, uid)
	return true, nil
}

// SweepResult counts what a sweep did.
type SweepResult struct {
	Processed int           `json:"processed"`
	Created   int           `json:"created"`
	Existing  int           `json:"existing"`
	Failed    int           `json:"failed"`
	ClaimsSet int           `json:"claims_set"`
	Duration  time.Duration `json:"duration"`
}

// Sweep reconciles every identity user. Per-user failures are logged and
// counted; a failed page fetch or context cancellation stops the sweep and
// returns the partial counts.
func (r *Reconciler) Sweep(ctx context.Context) (res SweepResult, err error) {
	ctx, span := r.tracer.Start(ctx, "reconcile.sweep")
	defer span.End()

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		metrics.SweepDuration.Observe(res.Duration.Seconds())
	}()

	pageToken := ""
	for {
		users, next, err := r.identity.ListUsers(ctx, pageToken, r.pageSize)
		if err != nil {
			span.RecordError(err)
			return res, fmt.Errorf("failed to list identity users: %w", err)
		}

		for _, u := range users {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			r.sweepOne(ctx, u, &res)
		}

		if next == "" {
			break
		}
		pageToken = next
	}

	r.logger.Info("user_sweep_completed",
		zap.Int("processed", res.Processed),
		zap.Int("created", res.Created),
		zap.Int("existing", res.Existing),
		zap.Int("failed", res.Failed),
		zap.Int("claims_set", res.ClaimsSet),
		zap.Duration("duration", time.Since(start)),
	)
	span.SetAttributes(
		attribute.Int("sweep.processed", res.Processed),
		attribute.Int("sweep.failed", res.Failed),
	)
	return res, nil
}

func (r *Reconciler) sweepOne(ctx context.Context, u *models.IdentityUser, res *SweepResult) {
	res.Processed++
	if u == nil || u.UID == "" {
		res.Failed++
		metrics.SweepUsers.WithLabelValues(outcomeFailed).Inc()
		return
	}

	if !u.HasRole(RoleAuthenticated) {
		if granted, err := r.grantRole(ctx, u); err == nil && granted {
			res.ClaimsSet++
		}
	}

	// The role was already attempted above, so create must not retry it.
	unlock := r.locks.Lock(u.UID)
	_, created, err := r.ensureLocked(ctx, u, false)
	unlock()

	switch {
	case err != nil:
		res.Failed++
		metrics.SweepUsers.WithLabelValues(outcomeFailed).Inc()
		r.logger.Error("user_sweep_item_failed",
			zap.String("uid", logger.SanitizeUserID(u.UID)),
			zap.Error(err),
		)
	case created:
		res.Created++
		metrics.SweepUsers.WithLabelValues(outcomeCreated).Inc()
	default:
		res.Existing++
		metrics.SweepUsers.WithLabelValues(outcomeExisting).Inc()
	}
}

// ensureLocked implements create; the caller holds the lock for u.UID. When
// grant is set a newly created user also receives the authenticated role.
func (r *Reconciler) ensureLocked(ctx context.Context, u *models.IdentityUser, grant bool) (*models.StoreUser, bool, error) {
	existing, err := r.store.GetByFirebaseUID(ctx, u.UID)
	if err == nil {
		metrics.ReconcileOperations.WithLabelValues("create", outcomeExisting).Inc()
		return existing, false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		metrics.ReconcileOperations.WithLabelValues("create", outcomeFailed).Inc()
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	uid := u.UID
	candidate := &models.StoreUser{
		DisplayName:  u.DerivedDisplayName(),
		Email:        u.Email,
		FirebaseUID:  &uid,
		AuthProvider: models.AuthProviderFirebase,
		StoreAuthUID: r.linkStoreAuth(ctx, u),
	}

	user, created, err := r.store.CreateFederated(ctx, candidate)
	if err != nil {
		metrics.ReconcileOperations.WithLabelValues("create", outcomeFailed).Inc()
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	if !created {
		metrics.ReconcileOperations.WithLabelValues("create", outcomeExisting).Inc()
		return user, false, nil
	}

	metrics.ReconcileOperations.WithLabelValues("create", outcomeCreated).Inc()
	r.logger.Info("user_reconciled",
		zap.String("operation", "create"),
		zap.String("uid", logger.SanitizeUserID(uid)),
		zap.Int64("user_id", user.ID),
		zap.Bool("store_auth_linked", user.StoreAuthUID != nil),
	)

	if grant && !u.HasRole(RoleAuthenticated) {
		_, _ = r.grantRole(ctx, u)
	}
	return user, true, nil
}

// grantRole merges the authenticated role into the provider's current claims
// for u. The claims are re-read first because SetCustomClaims replaces the
// whole set and u may be a stale snapshot. It reports whether claims were
// written. Failures are logged and counted, never returned to the caller's
// caller.
func (r *Reconciler) grantRole(ctx context.Context, u *models.IdentityUser) (bool, error) {
	current, err := r.identity.GetUser(ctx, u.UID)
	if err != nil {
		r.claimsFailed(u.UID, fmt.Errorf("failed to read current claims: %w", err))
		return false, err
	}
	if current.HasRole(RoleAuthenticated) {
		u.CustomClaims = current.CustomClaims
		return false, nil
	}

	claims := make(map[string]any, len(current.CustomClaims)+1)
	maps.Copy(claims, current.CustomClaims)
	claims["role"] = RoleAuthenticated

	if err := r.identity.SetCustomClaims(ctx, u.UID, claims); err != nil {
		r.claimsFailed(u.UID, err)
		return false, err
	}
	u.CustomClaims = claims
	return true, nil
}

func (r *Reconciler) claimsFailed(uid string, err error) {
	metrics.ReconcileSecondaryFailures.WithLabelValues(stepClaims).Inc()
	r.logger.Error("set_custom_claims_failed",
		zap.String("uid", logger.SanitizeUserID(uid)),
		zap.Error(err),
	)
}

// linkStoreAuth finds or creates the store-auth user for u's email and
// returns its id, or nil when correlation is unavailable or fails.
func (r *Reconciler) linkStoreAuth(ctx context.Context, u *models.IdentityUser) *string {
	if r.authAdmin == nil || u.Email == "" {
		return nil
	}

	existing, err := r.authAdmin.FindUserByEmail(ctx, u.Email)
	if err != nil {
		r.storeAuthFailed(stepStoreAuthLink, u.UID, err)
		return nil
	}
	if existing != nil {
		return &existing.ID
	}

	password, err := randomPassword(randomPasswordExtra)
	if err != nil {
		r.storeAuthFailed(stepStoreAuthLink, u.UID, err)
		return nil
	}
	created, err := r.authAdmin.CreateUser(ctx, u.Email, password, map[string]any{"firebase_uid": u.UID})
	if err != nil {
		r.storeAuthFailed(stepStoreAuthLink, u.UID, err)
		return nil
	}
	return &created.ID
}

// unlinkStoreAuth deletes store-auth users whose metadata points at uid.
func (r *Reconciler) unlinkStoreAuth(ctx context.Context, uid string) {
	if r.authAdmin == nil {
		return
	}
	users, err := r.authAdmin.ListUsers(ctx)
	if err != nil {
		r.storeAuthFailed(stepStoreAuthDelete, uid, err)
		return
	}
	for _, au := range users {
		if au.FirebaseUID() != uid {
			continue
		}
		if err := r.authAdmin.DeleteUser(ctx, au.ID); err != nil {
			r.storeAuthFailed(stepStoreAuthDelete, uid, err)
		}
	}
}

func (r *Reconciler) storeAuthFailed(step, uid string, err error) {
	metrics.ReconcileSecondaryFailures.WithLabelValues(step).Inc()
	r.logger.Error("store_auth_step_failed",
		zap.String("step", step),
		zap.String("uid", logger.SanitizeUserID(uid)),
		zap.Error(err),
	)
}
